package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dbehnke/dmr-nexus/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration.
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler serves the decoder's counters in Prometheus text
// exposition format.
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler.
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{collector: collector}
}

func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	s := h.collector.Snapshot()
	var out strings.Builder

	writeCounter := func(name, help string, v uint64) {
		out.WriteString("# HELP " + name + " " + help + "\n")
		out.WriteString("# TYPE " + name + " counter\n")
		fmt.Fprintf(&out, "%s %d\n", name, v)
	}

	writeCounter("diskdecode_index_address_marks_total", "Total Index Address Marks recognized", s.IAM)
	writeCounter("diskdecode_id_address_marks_total", "Total ID Address Marks recognized", s.IDAM)
	writeCounter("diskdecode_data_address_marks_total", "Total Data Address Marks recognized", s.DAM)
	writeCounter("diskdecode_deleted_data_marks_total", "Total Deleted Data Address Marks recognized", s.DDAM)
	writeCounter("diskdecode_crc_ok_total", "Total records whose CRC verified", s.CRCOK)
	writeCounter("diskdecode_crc_error_total", "Total records whose CRC failed", s.CRCErr)
	writeCounter("diskdecode_extra_pulse_total", "Total extra-pulse-in-window errors", s.EiPW)
	writeCounter("diskdecode_clock_error_total", "Total sync-mark/clock errors", s.CkEr)
	writeCounter("diskdecode_out_of_tolerance_total", "Total out-of-tolerance pulse intervals", s.OoTI)
	writeCounter("diskdecode_intervals_total", "Total accepted pulse intervals observed", s.Intervals)

	w.Write([]byte(out.String()))
}

// Summarize renders a human-readable one-line counter summary, the
// same "N IDAMs, N DAMs, ..." shape the teacher's CLI output favors,
// using humanize for large counts.
func Summarize(s Snapshot) string {
	return fmt.Sprintf(
		"IAM=%s IDAM=%s DAM=%s DDAM=%s CRC_OK=%s CRC_err=%s EiPW=%s CkEr=%s OoTI=%s Intrvls=%s",
		humanize.Comma(int64(s.IAM)), humanize.Comma(int64(s.IDAM)), humanize.Comma(int64(s.DAM)),
		humanize.Comma(int64(s.DDAM)), humanize.Comma(int64(s.CRCOK)), humanize.Comma(int64(s.CRCErr)),
		humanize.Comma(int64(s.EiPW)), humanize.Comma(int64(s.CkEr)), humanize.Comma(int64(s.OoTI)),
		humanize.Comma(int64(s.Intervals)),
	)
}

// PrometheusServer is an HTTP server exposing the decoder's metrics.
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger
	server    *http.Server
}

// NewPrometheusServer creates a new Prometheus metrics server.
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start starts the Prometheus metrics server, blocking until ctx is
// cancelled or the listener fails.
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	handler := NewPrometheusHandler(s.collector)
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, handler)

	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	actualPort := listener.Addr().(*net.TCPAddr).Port

	s.server = &http.Server{Handler: mux}

	s.log.Info("Starting Prometheus metrics server",
		logger.Int("port", actualPort),
		logger.String("path", s.config.Path))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down Prometheus metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop stops the Prometheus metrics server.
func (s *PrometheusServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
	}
}
