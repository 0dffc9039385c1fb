package pulse

import (
	"context"
	"io"
)

// Interval is one synthetic pulse interval: Delta samples since the
// previous edge, optionally on the "extra" channel.
type Interval struct {
	Delta uint64
	Extra bool
}

// Generator is a synthetic Source that replays a fixed list of
// intervals, for the §8 test scenarios (S1-S6) and for exercising the
// decoder without a captured .tr file.
type Generator struct {
	sampleRate uint64
	dataRate   uint64
	intervals  []Interval

	idx     int
	current uint64
}

// NewGenerator builds a synthetic Source. intervals are consumed in
// order; Next returns io.EOF once exhausted.
func NewGenerator(sampleRate, dataRate uint64, intervals []Interval) *Generator {
	return &Generator{sampleRate: sampleRate, dataRate: dataRate, intervals: intervals}
}

func (g *Generator) Next(ctx context.Context) (Edge, error) {
	select {
	case <-ctx.Done():
		return Edge{}, ctx.Err()
	default:
	}
	if g.idx >= len(g.intervals) {
		return Edge{}, io.EOF
	}
	iv := g.intervals[g.idx]
	g.idx++
	g.current += iv.Delta
	return Edge{SampleIndex: g.current, Extra: iv.Extra}, nil
}

func (g *Generator) SampleRate() uint64 { return g.sampleRate }
func (g *Generator) DataRate() uint64   { return g.dataRate }

// Remaining reports how many intervals have not yet been consumed,
// mainly useful in tests that want to assert a generator ran dry.
func (g *Generator) Remaining() int { return len(g.intervals) - g.idx }
