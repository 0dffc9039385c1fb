package pll

import "testing"

func TestPITimingTracksExactNominalIntervals(t *testing.T) {
	pt := NewPITiming(100, 0.5, 0.0005)
	pt.Observe(2, 0)
	for i := 1; i <= 20; i++ {
		pt.Observe(2, float64(i*200))
	}
	if hb := pt.Halfbit(); hb < 99 || hb > 101 {
		t.Fatalf("halfbit drifted off nominal under perfectly regular input: %v", hb)
	}
}

func TestPITimingClampsToBounds(t *testing.T) {
	pt := NewPITiming(100, 0.5, 0.9)
	pt.Observe(2, 0)
	sample := 0.0
	for i := 0; i < 50; i++ {
		sample += 400 // way outside what k=2 intervals should look like
		pt.Observe(2, sample)
	}
	if hb := pt.Halfbit(); hb > 150.0001 {
		t.Fatalf("halfbit exceeded the 1.5x nominal clamp: %v", hb)
	}
}

func TestWindowAverageTimingConvergesToMean(t *testing.T) {
	wt := NewWindowAverageTiming(100, 4)
	sample := 0.0
	wt.Observe(2, sample)
	for i := 0; i < 8; i++ {
		sample += 210 // k=2 intervals of width 210 -> halfbit 105
		wt.Observe(2, sample)
	}
	if hb := wt.Halfbit(); hb < 104 || hb > 106 {
		t.Fatalf("window average did not converge near 105: %v", hb)
	}
}

func TestWindowAverageTimingResetReturnsToNominal(t *testing.T) {
	wt := NewWindowAverageTiming(100, 4)
	wt.Observe(2, 0)
	wt.Observe(2, 300)
	wt.Reset()
	if wt.Halfbit() != 100 {
		t.Fatalf("Reset did not restore nominal halfbit, got %v", wt.Halfbit())
	}
}
