package pll

// Timing abstracts the half-bit-duration estimator the PLL consults
// after every accepted pulse interval. PITiming is the default
// (spec.md §4.1); WindowAverageTiming is the legacy alternative
// (spec.md §4.8), kept opt-in behind Options.LegacyTiming.
type Timing interface {
	// Observe reports an accepted interval of k half-bit cells whose
	// trailing edge landed at absolute sample position edgeSample, and
	// returns the updated half-bit duration estimate.
	Observe(k int, edgeSample float64) float64
	Reset()
	Halfbit() float64
}

// PITiming is a proportional-integral controller tracking halfbit
// duration and an absolute phase reference, exactly the shape spec.md
// §4.1 describes: phase_ref advances by k*halfbit each interval, the
// discrepancy against the observed edge feeds both an immediate phase
// correction (kp) and a slow frequency correction via an integrator
// (ki), and halfbit is clamped to [0.5x, 1.5x] nominal.
type PITiming struct {
	halfbitNom, halfbitMin, halfbitMax float64
	kp, ki                             float64

	halfbit    float64
	integrator float64
	phaseRef   float64
	havePhase  bool
}

// NewPITiming builds a PI timing strategy for the given nominal
// half-bit duration (samples) and loop gains.
func NewPITiming(halfbitNom, kp, ki float64) *PITiming {
	return &PITiming{
		halfbitNom: halfbitNom,
		halfbitMin: halfbitNom * 0.5,
		halfbitMax: halfbitNom * 1.5,
		kp:         kp,
		ki:         ki,
		halfbit:    halfbitNom,
	}
}

func (t *PITiming) Reset() {
	t.halfbit = t.halfbitNom
	t.integrator = 0
	t.havePhase = false
}

func (t *PITiming) Halfbit() float64 { return t.halfbit }

func (t *PITiming) Observe(k int, edgeSample float64) float64 {
	if !t.havePhase {
		t.phaseRef = edgeSample
		t.havePhase = true
		return t.halfbit
	}
	t.phaseRef += float64(k) * t.halfbit
	phaseErr := edgeSample - t.phaseRef
	t.phaseRef += t.kp * phaseErr
	t.integrator += t.ki * (phaseErr / t.halfbitNom)
	t.halfbit += t.integrator
	if t.halfbit < t.halfbitMin {
		t.halfbit = t.halfbitMin
	}
	if t.halfbit > t.halfbitMax {
		t.halfbit = t.halfbitMax
	}
	return t.halfbit
}

// DefaultWindowAverageSize is the number of trailing per-cell sample
// widths WindowAverageTiming keeps when estimating halfbit.
const DefaultWindowAverageSize = 32

// WindowAverageTiming is the legacy timing strategy: halfbit is the
// simple moving average of (interval width / k) over the last N
// accepted intervals, with no phase tracking. It is a coarser
// estimator than PITiming and is offered only for comparison against
// captures the reference decoder's older tool version produced
// (spec.md §4.8); it is not exercised by the primary decode path.
type WindowAverageTiming struct {
	halfbitNom, halfbitMin, halfbitMax float64
	size                               int

	halfbit    float64
	lastSample float64
	haveLast   bool
	history    []float64
}

func NewWindowAverageTiming(halfbitNom float64, size int) *WindowAverageTiming {
	if size <= 0 {
		size = DefaultWindowAverageSize
	}
	return &WindowAverageTiming{
		halfbitNom: halfbitNom,
		halfbitMin: halfbitNom * 0.5,
		halfbitMax: halfbitNom * 1.5,
		size:       size,
		halfbit:    halfbitNom,
	}
}

func (t *WindowAverageTiming) Reset() {
	t.halfbit = t.halfbitNom
	t.haveLast = false
	t.history = t.history[:0]
}

func (t *WindowAverageTiming) Halfbit() float64 { return t.halfbit }

func (t *WindowAverageTiming) Observe(k int, edgeSample float64) float64 {
	if !t.haveLast {
		t.lastSample = edgeSample
		t.haveLast = true
		return t.halfbit
	}
	delta := edgeSample - t.lastSample
	t.lastSample = edgeSample
	if k <= 0 {
		return t.halfbit
	}
	t.history = append(t.history, delta/float64(k))
	if len(t.history) > t.size {
		t.history = t.history[1:]
	}
	sum := 0.0
	for _, s := range t.history {
		sum += s
	}
	avg := sum / float64(len(t.history))
	if avg < t.halfbitMin {
		avg = t.halfbitMin
	}
	if avg > t.halfbitMax {
		avg = t.halfbitMax
	}
	t.halfbit = avg
	return t.halfbit
}
