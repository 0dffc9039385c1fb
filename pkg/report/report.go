// Package report implements the periodic counter-snapshot reporter of
// spec.md §4.7: every N occurrences of a configured trigger mark, it
// emits a report annotation spanning the previous snapshot's end to
// the current byte's start, then resets the counters.
package report

import (
	"github.com/dbehnke/dmr-nexus/pkg/annotate"
	"github.com/dbehnke/dmr-nexus/pkg/metrics"
	"github.com/dustin/go-humanize"
)

// Trigger selects which address-mark counter drives the reporter.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerIAM
	TriggerIDAM
	TriggerDAM
	TriggerDDAM
)

func (t Trigger) String() string {
	switch t {
	case TriggerIAM:
		return "IAM"
	case TriggerIDAM:
		return "IDAM"
	case TriggerDAM:
		return "DAM"
	case TriggerDDAM:
		return "DDAM"
	default:
		return "no"
	}
}

// Reporter counts occurrences of its configured Trigger and emits a
// snapshot annotation (and, optionally, archives it) every Threshold
// occurrences.
type Reporter struct {
	collector *metrics.Collector
	sink      annotate.Sink
	trigger   Trigger
	threshold uint64

	count   uint64
	prevEnd uint64
}

// New builds a Reporter. trigger == TriggerNone disables reporting
// entirely: Observe becomes a no-op, matching spec.md §6's `report ∈
// {no, IAM, IDAM, DAM, DDAM}` surface.
func New(collector *metrics.Collector, sink annotate.Sink, trigger Trigger, threshold uint64) *Reporter {
	return &Reporter{collector: collector, sink: sink, trigger: trigger, threshold: threshold}
}

// Observe is called once per recognized address mark. kind must be
// one of TriggerIAM/IDAM/DAM/DDAM; byteStart is the sample index the
// mark byte began at. When kind matches the configured trigger and
// the threshold is reached, a report annotation is emitted and the
// counters reset.
func (r *Reporter) Observe(kind Trigger, byteStart uint64) {
	if r.trigger == TriggerNone || kind != r.trigger || r.threshold == 0 {
		return
	}
	r.count++
	if r.count < r.threshold {
		return
	}
	r.emit(byteStart)
}

func (r *Reporter) emit(byteStart uint64) {
	snap := r.collector.Snapshot()
	if r.sink != nil {
		r.sink.Put(annotate.Region{
			Start:    r.prevEnd,
			End:      byteStart,
			Stream:   annotate.StreamReports,
			Class:    "report",
			Variants: []string{metrics.Summarize(snap), humanize.Comma(int64(byteStart - r.prevEnd)) + " samples"},
		})
	}
	r.collector.Reset()
	r.count = 0
	r.prevEnd = byteStart
}

// Flush forces a final report at end-of-stream (byteStart is the last
// observed sample index), regardless of whether the threshold was
// reached, so a run's tail counters are never silently dropped.
func (r *Reporter) Flush(byteStart uint64) {
	if r.trigger == TriggerNone {
		return
	}
	r.emit(byteStart)
}
