package annotate

import (
	"encoding/json"
	"io"
	"sync"
)

// MemorySink accumulates regions and binaries in memory, guarded by a
// mutex the same way metrics.Collector guards its counters — useful
// for tests and for a host that wants to inspect a full run's output
// after the fact rather than streaming it.
type MemorySink struct {
	mu       sync.Mutex
	regions  []Region
	binaries []Binary
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Put(r Region) {
	s.mu.Lock()
	s.regions = append(s.regions, r)
	s.mu.Unlock()
}

func (s *MemorySink) PutBinary(b Binary) {
	s.mu.Lock()
	s.binaries = append(s.binaries, b)
	s.mu.Unlock()
}

// Regions returns a copy of the regions accumulated so far.
func (s *MemorySink) Regions() []Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Region, len(s.regions))
	copy(out, s.regions)
	return out
}

// Binaries returns a copy of the binary artifacts accumulated so far.
func (s *MemorySink) Binaries() []Binary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Binary, len(s.binaries))
	copy(out, s.binaries)
	return out
}

// WriterSink writes each region/binary as one newline-delimited JSON
// object to an underlying io.Writer (a file, stdout, or a pipe feeding
// pkg/livestream's broadcaster), using Region/Binary's own
// MarshalJSON so every consumer sees the same wire shape.
type WriterSink struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w, enc: json.NewEncoder(w)}
}

func (s *WriterSink) Put(r Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(r)
}

func (s *WriterSink) PutBinary(b Binary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(b)
}
