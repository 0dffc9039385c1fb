package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dbehnke/dmr-nexus/pkg/annotate"
	"github.com/dbehnke/dmr-nexus/pkg/archive"
	"github.com/dbehnke/dmr-nexus/pkg/decoder"
	"github.com/dbehnke/dmr-nexus/pkg/format"
	"github.com/dbehnke/dmr-nexus/pkg/livestream"
	"github.com/dbehnke/dmr-nexus/pkg/logger"
	"github.com/dbehnke/dmr-nexus/pkg/metrics"
	"github.com/dbehnke/dmr-nexus/pkg/pll"
	"github.com/dbehnke/dmr-nexus/pkg/pulse"
	"github.com/dbehnke/dmr-nexus/pkg/report"
	"github.com/dbehnke/dmr-nexus/pkg/trfile"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	trFile := flag.String("trfile", "", "Path to a .tr transition file to decode (required)")
	dataRate := flag.Uint64("data-rate", 250_000, "Nominal encoded bit rate, in bits/second")
	outPath := flag.String("out", "", "Annotation NDJSON output path (default stdout)")
	dbPath := flag.String("db", "diskdecode.db", "SQLite archive path (empty disables archiving)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address, e.g. :9090 (empty disables)")
	webAddr := flag.String("web-addr", "", "Livestream websocket listen address, e.g. :8090 (empty disables)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	if *showVersion {
		fmt.Printf("diskdecode %s\n", version)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		fmt.Printf("Built: %s\n", buildTime)
		os.Exit(0)
	}

	log := logger.New(logger.Config{Level: *logLevel, Format: "text"})
	log.Info("Starting diskdecode",
		logger.String("version", version),
		logger.String("commit", gitCommit),
		logger.String("build_time", buildTime))

	opt, _, err := format.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	if *validate {
		if _, err := format.Build(opt); err != nil {
			log.Error("Configuration is invalid", logger.Error(err))
			os.Exit(1)
		}
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	if *trFile == "" {
		log.Error("-trfile is required")
		os.Exit(1)
	}

	desc, err := format.Build(opt)
	if err != nil {
		log.Error("Failed to build format descriptor", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Format descriptor built", logger.String("kind", desc.Kind.String()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	collector := metrics.NewCollector()

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Error("Failed to open annotation output", logger.Error(err))
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	writerSink := annotate.NewWriterSink(out)

	hub := livestream.NewHub(log.WithComponent("livestream"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	if *webAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", hub.Handler())
		server := &http.Server{Addr: *webAddr, Handler: mux}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("Livestream server started", logger.String("addr", *webAddr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("Livestream server error", logger.Error(err))
			}
		}()
	}

	sink := annotate.Sink(&fanOutSink{sinks: []annotate.Sink{writerSink, hub}})
	binSink := annotate.BinarySink(&fanOutBinarySink{sinks: []annotate.BinarySink{writerSink, hub}})

	if *metricsAddr != "" {
		port, err := addrPort(*metricsAddr)
		if err != nil {
			log.Error("Invalid -metrics-addr", logger.Error(err))
			os.Exit(1)
		}
		metricsServer := metrics.NewPrometheusServer(
			metrics.PrometheusConfig{Enabled: true, Port: port, Path: "/metrics"},
			collector, log.WithComponent("metrics"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
	}

	var records *archive.RecordRepository
	var reports *archive.ReportRepository
	if *dbPath != "" {
		db, err := archive.NewDB(archive.Config{Path: *dbPath}, log.WithComponent("archive"))
		if err != nil {
			log.Error("Failed to initialize archive database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		records = archive.NewRecordRepository(db.GetDB())
		reports = archive.NewReportRepository(db.GetDB())
		log.Info("Archive database initialized", logger.String("path", *dbPath))
	}

	trigger, threshold := reportSettings(opt)

	f, err := os.Open(*trFile)
	if err != nil {
		log.Error("Failed to open transition file", logger.Error(err))
		os.Exit(1)
	}
	defer f.Close()

	rd, err := trfile.ReadHeader(f)
	if err != nil {
		log.Error("Failed to read transition file header", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Transition file opened",
		logger.Uint32("bit_rate", rd.Header().BitRate),
		logger.String("cmd_line", rd.Header().CmdLine))

	halfbitNom := float64(rd.Header().BitRate) / (2 * float64(*dataRate))

	dec := decoder.New(decoder.Options{
		Descriptor:      desc,
		PLL:             pll.Options{HalfbitNom: halfbitNom, Kp: opt.PLLKp, Ki: opt.PLLKi, SyncToleranceF: opt.PLLSyncToleranceF},
		SectorSize:      opt.SectorSize,
		Collector:       collector,
		Sink:            sink,
		BinSink:         binSink,
		ReportTrigger:   trigger,
		ReportThreshold: threshold,
		Records:         records,
		Reports:         reports,
		Log:             log,
	})

	firstTrack := true
	for {
		track, err := rd.ReadTrack()
		if err != nil {
			log.Error("Failed to read track", logger.Error(err))
			os.Exit(1)
		}
		if track.IsEndMarker() {
			break
		}

		src, err := pulse.NewTrackSource(track, uint64(rd.Header().BitRate), *dataRate)
		if err != nil {
			log.Error("Failed to build pulse source for track", logger.Error(err),
				logger.Int("cylinder", int(track.Cylinder)), logger.Int("head", int(track.Head)))
			continue
		}

		if !firstTrack {
			dec.Reset("track_boundary")
		}
		firstTrack = false

		log.Info("Decoding track", logger.Int("cylinder", int(track.Cylinder)), logger.Int("head", int(track.Head)))
		if err := dec.Run(ctx, src); err != nil {
			log.Error("Decode error", logger.Error(err))
			break
		}

		select {
		case <-ctx.Done():
			goto shutdown
		default:
		}
	}

shutdown:
	log.Info("Decode complete", logger.String("summary", metrics.Summarize(collector.Snapshot())))

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", logger.String("signal", sig.String()))
	default:
	}
	cancel()
	wg.Wait()
	log.Info("diskdecode stopped")
}

func addrPort(addr string) (int, error) {
	var port int
	if _, err := fmt.Sscanf(addr, ":%d", &port); err != nil {
		return 0, fmt.Errorf("expected form \":PORT\", got %q", addr)
	}
	return port, nil
}

func reportSettings(opt format.Options) (report.Trigger, uint64) {
	// opt doesn't carry the raw report/report_qty strings once built
	// into Options (only format.FileOptions does); diskdecode treats
	// "no reporting configured" the same as a zero threshold, which
	// Reporter and Decoder both already treat as a no-op.
	return report.TriggerNone, 0
}

// fanOutSink broadcasts each region to every underlying sink, letting
// the decode loop write NDJSON to disk and push the same events to
// connected livestream clients with a single Sink value.
type fanOutSink struct {
	sinks []annotate.Sink
}

func (f *fanOutSink) Put(r annotate.Region) {
	for _, s := range f.sinks {
		s.Put(r)
	}
}

type fanOutBinarySink struct {
	sinks []annotate.BinarySink
}

func (f *fanOutBinarySink) PutBinary(b annotate.Binary) {
	for _, s := range f.sinks {
		s.PutBinary(b)
	}
}
