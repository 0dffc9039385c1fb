// Package pll implements the bit-timing recovery and code translation
// stage: a phase-locked loop that turns a stream of pulse-edge sample
// positions into recovered bytes, tracking lock state from the
// preamble through sync-mark recognition into steady decoding.
package pll

import (
	"fmt"
	"math"

	"github.com/dbehnke/dmr-nexus/pkg/format"
)

// State is the PLL's coarse lock state (spec.md §4.1).
type State int

const (
	StateLocking State = iota
	StateScanningSyncMark
	StateDecoding
)

func (s State) String() string {
	switch s {
	case StateLocking:
		return "LOCKING"
	case StateScanningSyncMark:
		return "SCANNING_SYNC_MARK"
	case StateDecoding:
		return "DECODING"
	default:
		return "UNKNOWN"
	}
}

// Options configures a new Engine.
type Options struct {
	HalfbitNom     float64 // nominal half-bit duration, in samples
	Kp, Ki         float64
	SyncToleranceF float64 // fraction of halfbit_nom, e.g. 0.25
	SyncPulseCount int     // intervals at SyncPulse width required to declare lock; 0 derives it

	// LegacyTiming selects WindowAverageTiming instead of PITiming
	// (spec.md §4.8); off by default.
	LegacyTiming     bool
	LegacyWindowSize int

	// OnReset, if set, is called whenever the engine performs a full
	// reset, so an owning decoder can cross-reset its record state
	// machine in lockstep (spec.md §3 Lifecycle note).
	OnReset func(reason string)
}

// syncTry is one sync mark candidate partway through matching,
// tracked by how many of its leading widths have matched so far.
type syncTry struct {
	mark *format.SyncMark
	pos  int
}

// Result reports everything one Step call produced: annotated
// windows, a decoded byte if one completed, and any error condition.
type Result struct {
	Windows []Window

	ByteReady bool
	Byte      byte

	SyncMarkMatched  bool
	MatchedMarkIndex int

	ExtraPulse      bool
	OutOfTolerance  string // "", "short", "long"
	Unrecoverable   bool
	Reset           bool
	ResetReason     string
	LockThresholdHit bool
}

// Engine is the stateful PLL + code translator for one Descriptor.
type Engine struct {
	desc   *format.Descriptor
	timing Timing
	onReset func(string)

	state State

	halfbitNom           float64
	syncToleranceSamples float64
	syncLockThreshold    int
	syncLockCount        int

	haveLast   bool
	lastSample float64

	shift      uint32
	shiftIndex int

	// pendingReset holds a reset reason deferred from a too-long
	// interval that still completed the in-flight byte; it fires at
	// the top of the next Step call, mirroring pd.py's
	// unsync_after_decode flag.
	pendingReset string

	byteAcc     uint32
	byteAccBits int

	tries []syncTry

	ring *Ring

	rllTable format.RLLTable
}

// NewEngine builds a PLL engine for desc using opt's tuning knobs.
func NewEngine(desc *format.Descriptor, opt Options) *Engine {
	if opt.HalfbitNom <= 0 {
		opt.HalfbitNom = 1.0
	}
	threshold := opt.SyncPulseCount
	if threshold <= 0 {
		if desc.SyncPulse > 0 {
			threshold = int(math.Round(32.0 / float64(desc.SyncPulse)))
		}
		if threshold < 2 {
			threshold = 2
		}
	}

	var timing Timing
	if opt.LegacyTiming {
		timing = NewWindowAverageTiming(opt.HalfbitNom, opt.LegacyWindowSize)
	} else {
		kp, ki := opt.Kp, opt.Ki
		if kp == 0 {
			kp = 0.5
		}
		if ki == 0 {
			ki = 0.0005
		}
		timing = NewPITiming(opt.HalfbitNom, kp, ki)
	}

	tol := opt.SyncToleranceF
	if tol <= 0 {
		tol = 0.25
	}

	e := &Engine{
		desc:                 desc,
		timing:               timing,
		onReset:              opt.OnReset,
		halfbitNom:           opt.HalfbitNom,
		syncToleranceSamples: tol * opt.HalfbitNom,
		syncLockThreshold:    threshold,
		ring:                 NewRing(),
		rllTable:             format.RLLTableFor(desc.Codemap),
	}
	return e
}

// State reports the engine's current coarse lock state.
func (e *Engine) State() State { return e.state }

// Halfbit reports the current half-bit duration estimate, in samples.
func (e *Engine) Halfbit() float64 { return e.timing.Halfbit() }

// Reset performs a full PLL reset: lock state, shift register, sync
// mark tries, and timing estimator all return to their initial
// values. The sample position history is preserved so the next edge
// can still compute a valid interval.
func (e *Engine) Reset(reason string) {
	e.state = StateLocking
	e.syncLockCount = 0
	e.shift = 0
	e.shiftIndex = 0
	e.byteAcc = 0
	e.byteAccBits = 0
	e.tries = e.tries[:0]
	e.timing.Reset()
	if e.onReset != nil {
		e.onReset(reason)
	}
}

// Step processes one pulse-edge sample position (monotonically
// increasing across calls) and returns the windows/bytes it produced.
func (e *Engine) Step(t uint64) (Result, error) {
	if t > math.MaxInt64 {
		return Result{}, fmt.Errorf("pll: sample position %d exceeds representable range", t)
	}
	edge := float64(t)

	if e.pendingReset != "" {
		reason := e.pendingReset
		e.pendingReset = ""
		e.Reset(reason)
	}

	if !e.haveLast {
		e.haveLast = true
		e.lastSample = edge
		return Result{}, nil
	}

	prev := e.lastSample
	delta := edge - prev
	e.lastSample = edge

	halfbit := e.timing.Halfbit()
	k := int(math.Round(delta / halfbit))

	if k == 0 {
		e.Reset("extra_pulse")
		return Result{ExtraPulse: true, Reset: true, ResetReason: "extra_pulse"}, nil
	}
	if k < e.desc.LimitsMin {
		e.Reset("out_of_tolerance_short")
		return Result{OutOfTolerance: "short", Reset: true, ResetReason: "out_of_tolerance_short"}, nil
	}
	if k > e.desc.LimitsMax {
		// A too-long pulse that lands mid-decode and still completes
		// the in-flight byte is processed as a normal interval; the
		// reset is deferred to the top of the next Step call so the
		// final byte is still emitted (spec.md §4.1 DECODING, S5).
		if e.state == StateDecoding && e.shiftIndex+k >= 16 {
			e.pendingReset = "out_of_tolerance_long"
		} else {
			e.Reset("out_of_tolerance_long")
			return Result{OutOfTolerance: "long", Reset: true, ResetReason: "out_of_tolerance_long"}, nil
		}
	}

	if e.state == StateLocking {
		return e.stepLocking(k, edge)
	}
	return e.stepTracking(k, prev, edge)
}

func (e *Engine) stepLocking(k int, edge float64) (Result, error) {
	if k == e.desc.SyncPulse {
		e.syncLockCount++
		if e.syncLockCount >= e.syncLockThreshold {
			e.state = StateScanningSyncMark
			e.tries = e.tries[:0]
			return Result{LockThresholdHit: true}, nil
		}
		e.timing.Observe(k, edge)
		return Result{}, nil
	}
	if e.syncLockCount > 0 {
		e.Reset("lock_interval_mismatch")
		return Result{Reset: true, ResetReason: "lock_interval_mismatch"}, nil
	}
	return Result{}, nil
}

func (e *Engine) stepTracking(k int, prevSample, edge float64) (Result, error) {
	halfbit := e.timing.Observe(k, edge)

	res := Result{Windows: e.writeWindows(k, prevSample, edge, halfbit)}

	e.shift = (e.shift<<uint(k) + 1) & 0xffffffff
	e.shiftIndex += k

	matched, idx := e.updateSyncTries(k)
	if matched {
		mark := e.desc.SyncMarks[idx]
		if isRLLCodemap(e.desc.Codemap) {
			e.shift ^= format.SyncMarkXORFixup(e.desc.Kind)
		}
		e.shiftIndex = mark.ShiftIndex
		e.byteAcc = 0
		e.byteAccBits = 0
		e.state = StateDecoding
		e.tries = e.tries[:0]
		res.SyncMarkMatched = true
		res.MatchedMarkIndex = idx
		return res, nil
	}

	if len(e.tries) == 0 && k == e.desc.SyncPulse {
		e.syncLockCount++
	}

	if e.state != StateDecoding {
		return res, nil
	}

	if e.desc.Codemap == format.CodemapFMMFM {
		if e.shiftIndex >= 16 {
			raw := uint16((e.shift >> uint(e.shiftIndex-16)) & 0xffff)
			res.Byte = DecodeFMMFM(raw)
			res.ByteReady = true
			e.shiftIndex -= 16
		}
		return res, nil
	}

	decoded, nbits, consumed, unrecoverable, ok := DecodeRLL(e.rllTable, e.shift, e.shiftIndex)
	if unrecoverable {
		res.Unrecoverable = true
		res.Reset = true
		res.ResetReason = "rll_unrecoverable"
		e.Reset("rll_unrecoverable")
		return res, nil
	}
	if !ok {
		return res, nil
	}
	e.shiftIndex -= consumed
	e.byteAcc = (e.byteAcc << uint(nbits)) | uint32(decoded)
	e.byteAccBits += nbits
	if e.byteAccBits >= 8 {
		shift := uint(e.byteAccBits - 8)
		res.Byte = byte(e.byteAcc >> shift)
		res.ByteReady = true
		e.byteAccBits -= 8
		e.byteAcc &= (1 << uint(e.byteAccBits)) - 1
	}
	return res, nil
}

// writeWindows subdivides [prevSample, edge] into k equal-width
// half-bit-cell windows (spec.md §4.4's literal description), pushing
// each into the ring and flagging the last as the pulse cell.
func (e *Engine) writeWindows(k int, prevSample, edge, halfbit float64) []Window {
	windows := make([]Window, 0, k)
	width := (edge - prevSample) / float64(k)
	cellStart := prevSample
	for i := 0; i < k; i++ {
		cellEnd := cellStart + width
		if i == k-1 {
			cellEnd = edge
		}
		w := Window{
			Start:   uint64(cellStart),
			End:     uint64(cellEnd),
			Value:   0,
			IsClock: i%2 == 0,
		}
		if i == k-1 {
			w.Value = 1
		}
		e.ring.Push(w)
		windows = append(windows, w)
		cellStart = cellEnd
	}
	return windows
}

// updateSyncTries advances every in-flight sync mark candidate by one
// observed interval width k, starting fresh candidates where k matches
// a mark's first width, and reports the first candidate (if any) that
// just reached full length.
func (e *Engine) updateSyncTries(k int) (matched bool, index int) {
	next := e.tries[:0]
	fullIdx := -1
	for _, tr := range e.tries {
		if tr.mark.Widths[tr.pos] != k {
			continue
		}
		tr.pos++
		if tr.pos == len(tr.mark.Widths) {
			if fullIdx < 0 {
				fullIdx = markIndex(e.desc.SyncMarks, tr.mark)
			}
			continue
		}
		next = append(next, tr)
	}
	for i := range e.desc.SyncMarks {
		m := &e.desc.SyncMarks[i]
		if m.Widths[0] != k {
			continue
		}
		if len(m.Widths) == 1 {
			if fullIdx < 0 {
				fullIdx = i
			}
			continue
		}
		next = append(next, syncTry{mark: m, pos: 1})
	}
	e.tries = next
	if fullIdx >= 0 {
		return true, fullIdx
	}
	return false, 0
}

func markIndex(marks []format.SyncMark, m *format.SyncMark) int {
	for i := range marks {
		if &marks[i] == m {
			return i
		}
	}
	return -1
}

func isRLLCodemap(cm format.Codemap) bool {
	return cm == format.CodemapRLLIBM || cm == format.CodemapRLLWD
}
