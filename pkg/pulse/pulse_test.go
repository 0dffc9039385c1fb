package pulse

import (
	"context"
	"io"
	"testing"

	"github.com/dbehnke/dmr-nexus/pkg/trfile"
)

func TestGeneratorReplaysIntervalsInOrder(t *testing.T) {
	g := NewGenerator(500_000_000, 5_000_000, []Interval{
		{Delta: 10}, {Delta: 20}, {Delta: 5, Extra: true},
	})

	ctx := context.Background()
	want := []uint64{10, 30, 35}
	wantExtra := []bool{false, false, true}
	for i, w := range want {
		e, err := g.Next(ctx)
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if e.SampleIndex != w {
			t.Errorf("edge %d: SampleIndex = %d, want %d", i, e.SampleIndex, w)
		}
		if e.Extra != wantExtra[i] {
			t.Errorf("edge %d: Extra = %v, want %v", i, e.Extra, wantExtra[i])
		}
	}

	if _, err := g.Next(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF after exhausting intervals, got %v", err)
	}
	if g.Remaining() != 0 {
		t.Errorf("expected 0 remaining, got %d", g.Remaining())
	}
}

func TestGeneratorRespectsContextCancellation(t *testing.T) {
	g := NewGenerator(500_000_000, 5_000_000, []Interval{{Delta: 10}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Next(ctx); err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}

func TestGeneratorReportsRatesVerbatim(t *testing.T) {
	g := NewGenerator(500_000_000, 5_000_000, nil)
	if g.SampleRate() != 500_000_000 {
		t.Errorf("SampleRate = %d", g.SampleRate())
	}
	if g.DataRate() != 5_000_000 {
		t.Errorf("DataRate = %d", g.DataRate())
	}
}

func TestTrackSourceReplaysDeltasAsCumulativeSampleIndices(t *testing.T) {
	track := &trfile.Track{Cylinder: 0, Head: 0, Deltas: []uint32{100, 100, 50}}
	src, err := NewTrackSource(track, 200_000_000, 5_000_000)
	if err != nil {
		t.Fatalf("NewTrackSource: %v", err)
	}

	ctx := context.Background()
	want := []uint64{100, 200, 250}
	for i, w := range want {
		e, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if e.SampleIndex != w {
			t.Errorf("edge %d: SampleIndex = %d, want %d", i, e.SampleIndex, w)
		}
	}
	if _, err := src.Next(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestTrackSourceRejectsEndMarker(t *testing.T) {
	track := &trfile.Track{Cylinder: trfile.EndMarkerCylHead, Head: trfile.EndMarkerCylHead}
	if _, err := NewTrackSource(track, 200_000_000, 5_000_000); err == nil {
		t.Fatal("expected an error building a TrackSource from the end-marker track")
	}
}
