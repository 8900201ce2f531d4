// Package telemetry exposes Prometheus metrics for the emitter pipeline.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "changelog"

var Registry = prometheus.NewRegistry()

var (
	// RawEntriesTotal counts raw entries read from the log by kind.
	RawEntriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "raw_entries_total",
		Help:      "Raw log entries read, by raw kind.",
	}, []string{"kind"})

	// EventsEmittedTotal counts published change events by operation.
	EventsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_emitted_total",
		Help:      "Change events published, by canonical operation.",
	}, []string{"op"})

	// EntriesRejectedTotal counts entries that could not become events.
	EntriesRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entries_rejected_total",
		Help:      "Raw entries rejected, by reason.",
	}, []string{"reason"})

	// EventsFilteredTotal counts events dropped by the table filter.
	EventsFilteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_filtered_total",
		Help:      "Change events dropped by the table filter.",
	})

	// PublishErrorsTotal counts failed sink publishes.
	PublishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_errors_total",
		Help:      "Sink publish failures.",
	})

	// PublishSeconds measures sink publish latency.
	PublishSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "publish_seconds",
		Help:      "Sink publish latency.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RawEntriesTotal,
		EventsEmittedTotal,
		EntriesRejectedTotal,
		EventsFilteredTotal,
		PublishErrorsTotal,
		PublishSeconds,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve runs the metrics endpoint on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
