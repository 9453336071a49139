package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Finalize outcomes.
const (
	FinalizeFinal   = "final"
	FinalizeTimeout = "timeout"
	FinalizeClosed  = "closed"
)

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RecordingsStarted   prometheus.Counter
	RecordingsCompleted prometheus.Counter
	StartFailures       *prometheus.CounterVec
	ChunksSent          prometheus.Counter
	BytesSent           prometheus.Counter
	LateChunks          prometheus.Counter
	MalformedMessages   prometheus.Counter
	FinalizeOutcomes    *prometheus.CounterVec
	FinalizeDuration    prometheus.Histogram
	DeliveryFailures    *prometheus.CounterVec
	EmptyTranscripts    prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotmic_recordings_started_total",
			Help: "Total number of recordings started",
		}),
		RecordingsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotmic_recordings_completed_total",
			Help: "Total number of recordings stopped and finalized",
		}),
		StartFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hotmic_start_failures_total",
			Help: "Total number of failed recording starts by stage",
		}, []string{"stage"}),
		ChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotmic_audio_chunks_sent_total",
			Help: "Total number of audio chunks written to the transport",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotmic_audio_bytes_sent_total",
			Help: "Total number of audio bytes written to the transport",
		}),
		LateChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotmic_audio_late_chunks_total",
			Help: "Audio blocks delivered by the device after capture stopped",
		}),
		MalformedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotmic_malformed_messages_total",
			Help: "Server frames ignored because they could not be decoded",
		}),
		FinalizeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hotmic_finalize_total",
			Help: "Finalize waits by outcome (final, timeout, closed)",
		}, []string{"outcome"}),
		FinalizeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hotmic_finalize_duration_seconds",
			Help:    "Time between stop_recording and the terminal signal",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		DeliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hotmic_delivery_failures_total",
			Help: "Clipboard and paste failures",
		}, []string{"target"}),
		EmptyTranscripts: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotmic_empty_transcripts_total",
			Help: "Recordings that produced no transcript",
		}),
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordingStarted() {
	if m == nil {
		return
	}
	m.RecordingsStarted.Inc()
}

func (m *Metrics) RecordingCompleted(transcript string) {
	if m == nil {
		return
	}
	m.RecordingsCompleted.Inc()
	if transcript == "" {
		m.EmptyTranscripts.Inc()
	}
}

func (m *Metrics) StartFailed(stage string) {
	if m == nil {
		return
	}
	m.StartFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ChunkSent(size int) {
	if m == nil {
		return
	}
	m.ChunksSent.Inc()
	m.BytesSent.Add(float64(size))
}

func (m *Metrics) LateChunksObserved(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.LateChunks.Add(float64(n))
}

func (m *Metrics) MalformedMessage() {
	if m == nil {
		return
	}
	m.MalformedMessages.Inc()
}

func (m *Metrics) Finalized(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FinalizeOutcomes.WithLabelValues(outcome).Inc()
	m.FinalizeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) DeliveryFailed(target string) {
	if m == nil {
		return
	}
	m.DeliveryFailures.WithLabelValues(target).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if m == nil || addr == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
