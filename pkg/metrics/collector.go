package metrics

import "sync"

// Collector accumulates the decode-run counters spec.md §4.7's
// periodic report names: address-mark tallies, CRC outcomes, and the
// PLL error classes (extra pulse, clock error, out-of-tolerance).
type Collector struct {
	mu sync.RWMutex

	iam  uint64 // Index Address Marks
	idam uint64 // ID Address Marks
	dam  uint64 // Data Address Marks
	ddam uint64 // Deleted Data Address Marks

	crcOK  uint64
	crcErr uint64

	eipw uint64 // extra pulse in window
	cker uint64 // clock/sync-mark error
	ooti uint64 // out-of-tolerance interval

	intervals uint64 // total accepted pulse intervals observed
}

// NewCollector returns a zeroed Collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) IndexMark()   { c.mu.Lock(); c.iam++; c.mu.Unlock() }
func (c *Collector) IDMark()      { c.mu.Lock(); c.idam++; c.mu.Unlock() }
func (c *Collector) DataMark()    { c.mu.Lock(); c.dam++; c.mu.Unlock() }
func (c *Collector) DeletedData() { c.mu.Lock(); c.ddam++; c.mu.Unlock() }

func (c *Collector) CRCOK()  { c.mu.Lock(); c.crcOK++; c.mu.Unlock() }
func (c *Collector) CRCErr() { c.mu.Lock(); c.crcErr++; c.mu.Unlock() }

func (c *Collector) ExtraPulse()     { c.mu.Lock(); c.eipw++; c.mu.Unlock() }
func (c *Collector) ClockError()     { c.mu.Lock(); c.cker++; c.mu.Unlock() }
func (c *Collector) OutOfTolerance() { c.mu.Lock(); c.ooti++; c.mu.Unlock() }
func (c *Collector) Interval()       { c.mu.Lock(); c.intervals++; c.mu.Unlock() }

// Snapshot is an immutable copy of the counters at one instant, the
// shape pkg/report hands to the periodic-report annotation.
type Snapshot struct {
	IAM, IDAM, DAM, DDAM   uint64
	CRCOK, CRCErr          uint64
	EiPW, CkEr, OoTI       uint64
	Intervals              uint64
}

// Snapshot returns the current counter values without resetting them.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		IAM: c.iam, IDAM: c.idam, DAM: c.dam, DDAM: c.ddam,
		CRCOK: c.crcOK, CRCErr: c.crcErr,
		EiPW: c.eipw, CkEr: c.cker, OoTI: c.ooti,
		Intervals: c.intervals,
	}
}

// Reset zeroes every counter, as pkg/report does after each snapshot
// is emitted (spec.md §4.7: "counters reset after each snapshot").
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iam, c.idam, c.dam, c.ddam = 0, 0, 0, 0
	c.crcOK, c.crcErr = 0, 0
	c.eipw, c.cker, c.ooti = 0, 0, 0
	c.intervals = 0
}
