package pulse

import (
	"context"
	"fmt"
	"io"

	"github.com/dbehnke/dmr-nexus/pkg/trfile"
)

// TrackSource adapts one already-decoded trfile.Track (transition
// variant) into a Source, letting the decode loop pull from a
// captured .tr file the same way it would from live hardware.
type TrackSource struct {
	sampleRate uint64
	dataRate   uint64
	deltas     []uint32

	idx     int
	current uint64
}

// NewTrackSource builds a Source over one transition track's delta
// stream. sampleRate is the file's bit_rate (always 200,000,000 for
// transition files, per spec.md §6); dataRate is the nominal encoded
// bit rate the caller configured the decoder with.
func NewTrackSource(t *trfile.Track, sampleRate, dataRate uint64) (*TrackSource, error) {
	if t.IsEndMarker() {
		return nil, fmt.Errorf("pulse: cannot build a TrackSource from the end-marker track")
	}
	return &TrackSource{sampleRate: sampleRate, dataRate: dataRate, deltas: t.Deltas}, nil
}

func (s *TrackSource) Next(ctx context.Context) (Edge, error) {
	select {
	case <-ctx.Done():
		return Edge{}, ctx.Err()
	default:
	}
	if s.idx >= len(s.deltas) {
		return Edge{}, io.EOF
	}
	s.current += uint64(s.deltas[s.idx])
	s.idx++
	return Edge{SampleIndex: s.current}, nil
}

func (s *TrackSource) SampleRate() uint64 { return s.sampleRate }
func (s *TrackSource) DataRate() uint64   { return s.dataRate }
