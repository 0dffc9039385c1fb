// Package decoder wires the PLL engine and record state machine
// together into the single-threaded pull pipeline spec.md §3
// describes: a pulse.Source feeds edges in, the PLL recovers bytes,
// the record state machine assembles ID/Data records from them, and
// every intermediate event is pushed to an annotate.Sink (and,
// optionally, an archive.RecordRepository) as it happens.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dbehnke/dmr-nexus/pkg/annotate"
	"github.com/dbehnke/dmr-nexus/pkg/archive"
	"github.com/dbehnke/dmr-nexus/pkg/format"
	"github.com/dbehnke/dmr-nexus/pkg/logger"
	"github.com/dbehnke/dmr-nexus/pkg/metrics"
	"github.com/dbehnke/dmr-nexus/pkg/pll"
	"github.com/dbehnke/dmr-nexus/pkg/pulse"
	"github.com/dbehnke/dmr-nexus/pkg/record"
	"github.com/dbehnke/dmr-nexus/pkg/report"
)

// Options configures a Decoder.
type Options struct {
	Descriptor *format.Descriptor
	PLL        pll.Options
	SectorSize int

	Collector *metrics.Collector
	Sink      annotate.Sink
	BinSink   annotate.BinarySink

	ReportTrigger   report.Trigger
	ReportThreshold uint64

	// Records/Reports persist completed artifacts if set; either or
	// both may be left nil to run without archiving.
	Records *archive.RecordRepository
	Reports *archive.ReportRepository

	Log *logger.Logger
}

// Decoder is the stateful pipeline for one decode run: one PLL engine
// and one record state machine, kept in lockstep so a PLL reset always
// forces a matching record-machine reset (spec.md §3 Lifecycle note).
type Decoder struct {
	desc    *format.Descriptor
	engine  *pll.Engine
	machine *record.Machine

	collector *metrics.Collector
	sink      annotate.Sink
	binSink   annotate.BinarySink
	reporter  *report.Reporter

	records *archive.RecordRepository
	reports *archive.ReportRepository

	log *logger.Logger

	byteStart uint64
	lastID    record.ID
	haveID    bool
}

// New builds a Decoder. The PLL's OnReset hook is wired to also reset
// the record state machine, so the two never drift out of sync.
func New(opt Options) *Decoder {
	log := opt.Log
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	d := &Decoder{
		desc:      opt.Descriptor,
		machine:   record.New(opt.Descriptor, opt.SectorSize),
		collector: opt.Collector,
		sink:      opt.Sink,
		binSink:   opt.BinSink,
		records:   opt.Records,
		reports:   opt.Reports,
		log:       log.WithComponent("decoder"),
	}

	reportSink := opt.Sink
	if opt.Reports != nil {
		reportSink = &reportArchiveSink{inner: opt.Sink, collector: opt.Collector, reports: opt.Reports, log: d.log}
	}
	d.reporter = report.New(opt.Collector, reportSink, opt.ReportTrigger, opt.ReportThreshold)

	pllOpt := opt.PLL
	userOnReset := pllOpt.OnReset
	pllOpt.OnReset = func(reason string) {
		d.machine.Reset()
		if userOnReset != nil {
			userOnReset(reason)
		}
	}
	d.engine = pll.NewEngine(opt.Descriptor, pllOpt)
	return d
}

// Reset forces a full PLL + record-machine reset, for a caller driving
// the same Decoder across multiple independent pulse sources in turn
// (e.g. successive tracks of a .tr file), where each track restarts
// from an unlocked PLL.
func (d *Decoder) Reset(reason string) {
	d.engine.Reset(reason)
}

// Run pulls edges from src until it reports io.EOF or ctx is
// cancelled, driving the PLL and record state machine on every edge
// and flushing the reporter's final partial span at end-of-stream.
func (d *Decoder) Run(ctx context.Context, src pulse.Source) error {
	if src.SampleRate() == 0 {
		return fmt.Errorf("decoder: pulse source reports no sample rate")
	}
	for {
		edge, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("decoder: pulse source: %w", err)
		}

		res, err := d.engine.Step(edge.SampleIndex)
		if err != nil {
			return fmt.Errorf("decoder: pll step: %w", err)
		}
		if err := d.handleResult(res, edge.SampleIndex); err != nil {
			return err
		}
	}
	if d.reporter != nil {
		d.reporter.Flush(d.byteStart)
	}
	return nil
}

func (d *Decoder) putRegion(stream annotate.StreamID, class string, start, end uint64, variants ...string) {
	if d.sink == nil {
		return
	}
	d.sink.Put(annotate.Region{Start: start, End: end, Stream: stream, Class: class, Variants: variants})
}

func (d *Decoder) handleResult(res pll.Result, sample uint64) error {
	if res.Unrecoverable {
		return fmt.Errorf("decoder: rll decode: %s at sample %d", res.ResetReason, sample)
	}
	switch {
	case res.ExtraPulse:
		d.collector.ExtraPulse()
		d.putRegion(annotate.StreamErrors, "extra_pulse", sample, sample, res.ResetReason)
		return nil
	case res.OutOfTolerance != "":
		d.collector.OutOfTolerance()
		d.putRegion(annotate.StreamErrors, "out_of_tolerance_"+res.OutOfTolerance, sample, sample)
		return nil
	}

	d.collector.Interval()

	if res.Reset {
		d.collector.ClockError()
		d.putRegion(annotate.StreamErrors, "resync", sample, sample, res.ResetReason)
	}

	if len(res.Windows) > 0 {
		d.putRegion(annotate.StreamWindows, "window", res.Windows[0].Start, res.Windows[len(res.Windows)-1].End)
	}

	if res.SyncMarkMatched {
		d.putRegion(annotate.StreamPrefixes, "sync_mark", sample, sample, fmt.Sprintf("mark %d", res.MatchedMarkIndex))
	}

	if !res.ByteReady {
		return nil
	}
	return d.pushByte(res.Byte, sample)
}

func (d *Decoder) pushByte(b byte, sample uint64) error {
	start := d.byteStart
	d.byteStart = sample
	d.putRegion(annotate.StreamBytes, fmt.Sprintf("0x%02X", b), start, sample)

	isDeleted := d.desc.IsDeletedData(b)

	ev, err := d.machine.PushByte(b)
	if err != nil {
		return fmt.Errorf("decoder: record machine: %w", err)
	}

	switch ev.Kind {
	case record.EventIDAddressMark:
		if d.collector != nil {
			d.collector.IDMark()
		}
		if d.reporter != nil {
			d.reporter.Observe(report.TriggerIDAM, start)
		}
		d.putRegion(annotate.StreamPrefixes, "idam", start, sample)

	case record.EventDataAddressMark:
		if d.collector != nil {
			if isDeleted {
				d.collector.DeletedData()
			} else {
				d.collector.DataMark()
			}
		}
		if d.reporter != nil {
			trigger := report.TriggerDAM
			if isDeleted {
				trigger = report.TriggerDDAM
			}
			d.reporter.Observe(trigger, start)
		}
		d.putRegion(annotate.StreamPrefixes, "data_mark", start, sample)

	case record.EventIDHeader:
		d.lastID = ev.ID
		d.haveID = true
		d.putRegion(annotate.StreamFields, "id", start, sample,
			fmt.Sprintf("cyl=%d", ev.ID.Cylinder), fmt.Sprintf("side=%d", ev.ID.Side), fmt.Sprintf("sector=%d", ev.ID.Sector))
		if d.binSink != nil {
			d.binSink.PutBinary(annotate.Binary{Start: start, End: sample, Kind: annotate.BinaryID, Bytes: ev.IDBytes})
		}

	case record.EventIDCRCResult:
		d.recordCRC(ev.IDCRCOK)
		d.putRegion(annotate.StreamFields, "idcrc", start, sample, crcClass(ev.IDCRCOK))
		if d.binSink != nil {
			d.binSink.PutBinary(annotate.Binary{Start: start, End: sample, Kind: annotate.BinaryIDCRC, Bytes: ev.IDCRCBytes})
		}
		d.archiveRecord("id", ev.IDCRCOK, false, sample)

	case record.EventDataCRCResult:
		d.recordCRC(ev.DataCRCOK)
		d.putRegion(annotate.StreamFields, "datacrc", start, sample, crcClass(ev.DataCRCOK))
		if d.binSink != nil {
			d.binSink.PutBinary(annotate.Binary{Start: start, End: sample, Kind: annotate.BinaryDataCRC, Bytes: ev.DataBytes})
			if len(ev.IDDataBytes) > 0 {
				d.binSink.PutBinary(annotate.Binary{Start: start, End: sample, Kind: annotate.BinaryIDData, Bytes: ev.IDDataBytes})
			}
		}
		d.archiveRecord("data", ev.DataCRCOK, ev.DeletedData, sample)

	case record.EventIndexMark:
		if d.collector != nil {
			d.collector.IndexMark()
		}
		if d.reporter != nil {
			d.reporter.Observe(report.TriggerIAM, start)
		}
		d.putRegion(annotate.StreamPrefixes, "iam", start, sample)

	case record.EventUnknownByte:
		d.putRegion(annotate.StreamErrors, "unknown_byte", start, sample, fmt.Sprintf("0x%02X", b))
		if ev.Resync {
			d.engine.Reset("record_resync")
		}
	}
	return nil
}

func crcClass(ok bool) string {
	if ok {
		return "crc_ok"
	}
	return "crc_err"
}

func (d *Decoder) recordCRC(ok bool) {
	if d.collector == nil {
		return
	}
	if ok {
		d.collector.CRCOK()
	} else {
		d.collector.CRCErr()
	}
}

func (d *Decoder) archiveRecord(kind string, crcOK, deleted bool, sample uint64) {
	if d.records == nil || !d.haveID {
		return
	}
	entry := &archive.RecordEntry{
		Kind:         kind,
		Cylinder:     d.lastID.Cylinder,
		Side:         d.lastID.Side,
		Sector:       d.lastID.Sector,
		LenClass:     d.lastID.LenClass,
		LenValue:     d.lastID.LenValue,
		DeletedData:  deleted,
		CRCOK:        crcOK,
		SampleOffset: sample,
	}
	if err := d.records.Create(entry); err != nil {
		d.log.Warn("failed to archive record", logger.Error(err))
	}
}

// reportArchiveSink forwards every region to the decode run's real
// sink, and additionally persists a ReportSnapshot row whenever the
// region is a report.Reporter snapshot (Stream == StreamReports). It
// reads the collector's counts before Reporter.emit resets them,
// since Reporter always calls Put before Reset (pkg/report).
type reportArchiveSink struct {
	inner     annotate.Sink
	collector *metrics.Collector
	reports   *archive.ReportRepository
	log       *logger.Logger
}

func (s *reportArchiveSink) Put(r annotate.Region) {
	if s.inner != nil {
		s.inner.Put(r)
	}
	if r.Stream != annotate.StreamReports {
		return
	}
	snap := s.collector.Snapshot()
	entry := &archive.ReportSnapshot{
		SpanStart: r.Start, SpanEnd: r.End,
		IAM: snap.IAM, IDAM: snap.IDAM, DAM: snap.DAM, DDAM: snap.DDAM,
		CRCOK: snap.CRCOK, CRCErr: snap.CRCErr,
		EiPW: snap.EiPW, CkEr: snap.CkEr, OoTI: snap.OoTI, Intervals: snap.Intervals,
	}
	if err := s.reports.Create(entry); err != nil {
		s.log.Warn("failed to archive report snapshot", logger.Error(err))
	}
}
