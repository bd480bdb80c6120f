// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meetscribe"

// File outcome labels.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Batch counters (incremented directly by the processor).
var (
	FilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_total",
		Help:      "Audio files handled, by outcome.",
	}, []string{"outcome"})

	BranchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "file_branch_total",
		Help:      "Files handled per processing branch (notes, regenerate, migrate, transcribe).",
	}, []string{"branch"})

	ModeArtifactsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mode_artifacts_total",
		Help:      "Note artifacts generated, by mode and result.",
	}, []string{"mode", "result"})

	TranscriptionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transcription_duration_seconds",
		Help:      "Time spent in the transcription service per file.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s → ~34m
	})
)

// Watcher gauges.
var (
	WatchedFiles = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "watcher_tracked_files",
		Help:      "Files currently tracked by the directory watcher.",
	})

	WatcherQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "watcher_queue_depth",
		Help:      "Stable files waiting for a processing worker.",
	})

	OversizedFilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watcher_oversized_files_total",
		Help:      "Files ignored for exceeding the size limit.",
	})
)

func init() {
	prometheus.MustRegister(
		FilesTotal,
		BranchTotal,
		ModeArtifactsTotal,
		TranscriptionDuration,
		WatchedFiles,
		WatcherQueueDepth,
		OversizedFilesTotal,
	)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
