package report

import (
	"strings"
	"testing"

	"github.com/dbehnke/dmr-nexus/pkg/annotate"
	"github.com/dbehnke/dmr-nexus/pkg/metrics"
)

func TestReporterEmitsAtThreshold(t *testing.T) {
	collector := metrics.NewCollector()
	sink := annotate.NewMemorySink()
	r := New(collector, sink, TriggerIDAM, 3)

	collector.IDMark()
	r.Observe(TriggerIDAM, 100)
	collector.IDMark()
	r.Observe(TriggerIDAM, 200)
	if len(sink.Regions()) != 0 {
		t.Fatalf("expected no report before threshold, got %d", len(sink.Regions()))
	}

	collector.IDMark()
	r.Observe(TriggerIDAM, 300)

	regions := sink.Regions()
	if len(regions) != 1 {
		t.Fatalf("expected 1 report region, got %d", len(regions))
	}
	reg := regions[0]
	if reg.Stream != annotate.StreamReports {
		t.Errorf("expected StreamReports, got %v", reg.Stream)
	}
	if reg.Start != 0 || reg.End != 300 {
		t.Errorf("expected span [0,300), got [%d,%d)", reg.Start, reg.End)
	}
	if !strings.Contains(reg.Variants[0], "IDAM=3") {
		t.Errorf("expected summary to mention IDAM=3, got %q", reg.Variants[0])
	}

	if snap := collector.Snapshot(); snap.IDAM != 0 {
		t.Errorf("expected counters reset after snapshot, got IDAM=%d", snap.IDAM)
	}
}

// TestReporterEmitsAfterThreeDataAddressMarks is the literal
// report=DAM, report_qty=3 scenario: after three Data Address Marks
// exactly one report annotation is emitted and the counters return to
// zero, regardless of how many unrelated events (here, ID Address
// Marks) were observed in between.
func TestReporterEmitsAfterThreeDataAddressMarks(t *testing.T) {
	collector := metrics.NewCollector()
	sink := annotate.NewMemorySink()
	r := New(collector, sink, TriggerDAM, 3)

	collector.DataMark()
	r.Observe(TriggerDAM, 1000)
	collector.IDMark()
	r.Observe(TriggerIDAM, 1500) // unrelated trigger, must not advance DAM count
	collector.DataMark()
	r.Observe(TriggerDAM, 2000)
	if len(sink.Regions()) != 0 {
		t.Fatalf("expected no report before the third DAM, got %d", len(sink.Regions()))
	}

	collector.DataMark()
	r.Observe(TriggerDAM, 3000)

	regions := sink.Regions()
	if len(regions) != 1 {
		t.Fatalf("expected exactly 1 report region, got %d", len(regions))
	}
	if !strings.Contains(regions[0].Variants[0], "DAM=3") {
		t.Errorf("expected summary to mention DAM=3, got %q", regions[0].Variants[0])
	}
	if snap := collector.Snapshot(); snap.DAM != 0 || snap.IDAM != 0 {
		t.Errorf("expected counters reset to zero after the report, got DAM=%d IDAM=%d", snap.DAM, snap.IDAM)
	}
}

func TestReporterIgnoresNonMatchingTrigger(t *testing.T) {
	collector := metrics.NewCollector()
	sink := annotate.NewMemorySink()
	r := New(collector, sink, TriggerDAM, 1)

	collector.IDMark()
	r.Observe(TriggerIDAM, 100)

	if len(sink.Regions()) != 0 {
		t.Fatalf("expected DAM-triggered reporter to ignore IDAM events")
	}
}

func TestReporterDisabledWhenTriggerNone(t *testing.T) {
	collector := metrics.NewCollector()
	sink := annotate.NewMemorySink()
	r := New(collector, sink, TriggerNone, 1)

	collector.IDMark()
	r.Observe(TriggerIDAM, 100)
	r.Flush(200)

	if len(sink.Regions()) != 0 {
		t.Fatalf("expected no reports when trigger is none")
	}
}

func TestReporterSecondSpanStartsAtPreviousEnd(t *testing.T) {
	collector := metrics.NewCollector()
	sink := annotate.NewMemorySink()
	r := New(collector, sink, TriggerIDAM, 1)

	collector.IDMark()
	r.Observe(TriggerIDAM, 100)
	collector.IDMark()
	r.Observe(TriggerIDAM, 250)

	regions := sink.Regions()
	if len(regions) != 2 {
		t.Fatalf("expected 2 report regions, got %d", len(regions))
	}
	if regions[1].Start != regions[0].End {
		t.Errorf("expected second span to start at first span's end (%d), got %d", regions[0].End, regions[1].Start)
	}
}

func TestReporterFlushEmitsFinalPartialSpan(t *testing.T) {
	collector := metrics.NewCollector()
	sink := annotate.NewMemorySink()
	r := New(collector, sink, TriggerIDAM, 10)

	collector.IDMark()
	r.Observe(TriggerIDAM, 100)
	r.Flush(500)

	regions := sink.Regions()
	if len(regions) != 1 {
		t.Fatalf("expected 1 flushed report region, got %d", len(regions))
	}
	if regions[0].End != 500 {
		t.Errorf("expected flush span to end at 500, got %d", regions[0].End)
	}
}
