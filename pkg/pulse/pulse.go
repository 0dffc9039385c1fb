// Package pulse defines the decoder's one external collaborator
// boundary: a blocking source of flux-transition (leading-edge)
// events, per spec.md §6.
package pulse

import (
	"context"
)

// Edge is one flux-transition event. Extra is true when the event
// arrived on the auxiliary "extra" channel, which spec.md §6 treats
// identically to a data-channel pulse at the same sample index.
type Edge struct {
	SampleIndex uint64
	Extra       bool
}

// Source is the pulse-sampling contract the decode loop pulls from.
// Next blocks until the next accepted edge and returns io.EOF once the
// source signals end-of-data. A high level on the source's internal
// "suppress" channel (spec.md §6) gates edges before they ever reach
// Next — callers never see suppressed intervals.
type Source interface {
	// Next blocks until the next edge, ctx cancellation, or
	// end-of-data (io.EOF).
	Next(ctx context.Context) (Edge, error)

	// SampleRate is the sampling clock in Hz.
	SampleRate() uint64

	// DataRate is the nominal encoded bit rate in bits/s.
	DataRate() uint64
}
