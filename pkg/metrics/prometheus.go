package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/n5dmr/trbo-xnl/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration.
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler handles Prometheus metrics HTTP requests.
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler.
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{collector: collector}
}

// ServeHTTP handles HTTP requests for metrics.
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var output strings.Builder

	output.WriteString("# HELP trboctl_identifies_total Total identify operations\n")
	output.WriteString("# TYPE trboctl_identifies_total counter\n")
	output.WriteString(fmt.Sprintf("trboctl_identifies_total %d\n", h.collector.GetIdentifiesTotal()))

	output.WriteString("# HELP trboctl_reads_total Total clone read operations\n")
	output.WriteString("# TYPE trboctl_reads_total counter\n")
	output.WriteString(fmt.Sprintf("trboctl_reads_total %d\n", h.collector.GetReadsTotal()))

	output.WriteString("# HELP trboctl_writes_total Total clone write operations\n")
	output.WriteString("# TYPE trboctl_writes_total counter\n")
	output.WriteString(fmt.Sprintf("trboctl_writes_total %d\n", h.collector.GetWritesTotal()))

	output.WriteString("# HELP trboctl_validates_total Total codeplug validate operations\n")
	output.WriteString("# TYPE trboctl_validates_total counter\n")
	output.WriteString(fmt.Sprintf("trboctl_validates_total %d\n", h.collector.GetValidatesTotal()))

	output.WriteString("# HELP trboctl_failures_total Total operations that ended in failure\n")
	output.WriteString("# TYPE trboctl_failures_total counter\n")
	output.WriteString(fmt.Sprintf("trboctl_failures_total %d\n", h.collector.GetFailuresTotal()))

	output.WriteString("# HELP trboctl_active_operations Number of in-flight operations\n")
	output.WriteString("# TYPE trboctl_active_operations gauge\n")
	output.WriteString(fmt.Sprintf("trboctl_active_operations %d\n", h.collector.GetActiveOperations()))

	output.WriteString("# HELP trboctl_blocks_transferred_total Total clone read/write blocks exchanged with a device\n")
	output.WriteString("# TYPE trboctl_blocks_transferred_total counter\n")
	output.WriteString(fmt.Sprintf("trboctl_blocks_transferred_total %d\n", h.collector.GetBlocksTransferred()))

	output.WriteString("# HELP trboctl_bytes_transferred_total Total codeplug bytes exchanged with a device\n")
	output.WriteString("# TYPE trboctl_bytes_transferred_total counter\n")
	output.WriteString(fmt.Sprintf("trboctl_bytes_transferred_total %d\n", h.collector.GetBytesTransferred()))

	_, _ = w.Write([]byte(output.String()))
}

// PrometheusServer is an HTTP server for Prometheus metrics.
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

// Start starts the Prometheus metrics server and blocks until ctx is
// cancelled or the listener fails.
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	handler := NewPrometheusHandler(s.collector)
	mux := http.NewServeMux()
	path := s.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, handler)

	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port

	s.server = &http.Server{Handler: mux}

	s.log.Info("starting Prometheus metrics server",
		logger.Int("port", actualPort),
		logger.String("path", path))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down Prometheus metrics server")
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
		_ = s.server.Shutdown(ctx)
	}
}
