package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"fit2tp/internal/progress"
	"fit2tp/internal/upload"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and exposes metrics
type Collector struct {
	registry        *prometheus.Registry
	filesTotal      *prometheus.CounterVec
	bytesTotal      prometheus.Counter
	inflightFiles   prometheus.Gauge
	decodeDuration  prometheus.Histogram
	uploadDuration  prometheus.Histogram
	progressTracker *progress.Tracker

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	addr     string
}

// New creates a new metrics collector with its own registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		filesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fitupload_files_total",
				Help: "Total number of FIT files processed, by outcome",
			},
			[]string{"outcome"},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fitupload_bytes_total",
				Help: "Total raw FIT bytes uploaded",
			},
		),
		inflightFiles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fitupload_inflight_files",
				Help: "Number of files currently in the classify/upload pipeline",
			},
		),
		decodeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fitupload_decode_seconds",
				Help:    "Time taken to decode and classify a FIT file",
				Buckets: prometheus.DefBuckets,
			},
		),
		uploadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fitupload_upload_seconds",
				Help:    "Time taken by a single upload request",
				Buckets: prometheus.DefBuckets,
			},
		),
		progressTracker: progress.NewTracker(),
	}

	c.registry.MustRegister(
		c.filesTotal,
		c.bytesTotal,
		c.inflightFiles,
		c.decodeDuration,
		c.uploadDuration,
	)

	return c
}

// RecordOutcome counts one finished file. It must be called exactly once per file.
func (c *Collector) RecordOutcome(outcome upload.Outcome, bytes int64) {
	c.filesTotal.WithLabelValues(outcome.Kind.String()).Inc()

	switch outcome.Kind {
	case upload.OutcomeUploaded:
		c.bytesTotal.Add(float64(bytes))
		c.progressTracker.AddUploaded(bytes)
	case upload.OutcomeRejected:
		c.progressTracker.AddRejected()
	case upload.OutcomeSkipped:
		c.progressTracker.AddSkipped()
	default:
		c.progressTracker.AddFailed()
	}
}

// IncInflight marks a file as entering the pipeline
func (c *Collector) IncInflight() {
	c.inflightFiles.Inc()
}

// DecInflight marks a file as leaving the pipeline
func (c *Collector) DecInflight() {
	c.inflightFiles.Dec()
}

// ObserveDecode observes classification duration
func (c *Collector) ObserveDecode(duration time.Duration) {
	c.decodeDuration.Observe(duration.Seconds())
}

// ObserveUpload observes upload request duration
func (c *Collector) ObserveUpload(duration time.Duration) {
	c.uploadDuration.Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving this collector's registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer binds addr and serves /metrics in the background until
// Shutdown is called. The listener is open when StartServer returns, so a
// later Shutdown always sees the server. Serve errors go to onError.
func (c *Collector) StartServer(addr string, onError func(error)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	c.mu.Lock()
	c.server = server
	c.listener = ln
	c.addr = ln.Addr().String()
	c.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && onError != nil {
			onError(err)
		}
	}()
	return nil
}

// Addr returns the bound metrics address, empty before StartServer
func (c *Collector) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Shutdown stops the metrics server if it was started
func (c *Collector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	server, ln := c.server, c.listener
	c.mu.Unlock()

	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	// Serve may not have taken ownership of the listener yet.
	_ = ln.Close()
	return err
}

// GetProgressTracker returns the progress tracker
func (c *Collector) GetProgressTracker() *progress.Tracker {
	return c.progressTracker
}

// SetTotalCount sets the total file count for progress tracking
func (c *Collector) SetTotalCount(files int64) {
	c.progressTracker.SetTotal(files)
}
