// Package metrics registers the rrdpworker Prometheus collectors and
// serves them over HTTP: one file per concern, collectors registered at
// package init against the default registry.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rrdpworker",
		Subsystem: "engine",
		Name:      "sessions_active",
		Help:      "Number of RRDP sessions currently tracked by the engine.",
	})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rrdpworker",
		Subsystem: "engine",
		Name:      "sessions_total",
		Help:      "Sessions completed, labeled by outcome.",
	}, []string{"outcome"}) // "synced", "up_to_date", "error"

	NotificationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rrdpworker",
		Subsystem: "engine",
		Name:      "notification_decisions_total",
		Help:      "Notification decision outcomes, labeled by decision.",
	}, []string{"decision"}) // "none", "snapshot", "deltas", "error"

	BytesHashed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rrdpworker",
		Subsystem: "engine",
		Name:      "bytes_hashed_total",
		Help:      "Total bytes of document content verified against a digest.",
	})

	ParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rrdpworker",
		Subsystem: "engine",
		Name:      "parse_errors_total",
		Help:      "Document parse failures, labeled by task.",
	}, []string{"task"}) // "notification", "snapshot", "delta"

	FilesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rrdpworker",
		Subsystem: "engine",
		Name:      "files_emitted_total",
		Help:      "FILE messages sent to the parent, labeled by publish type.",
	}, []string{"type"}) // "add", "update", "withdraw"

	DeltaFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rrdpworker",
		Subsystem: "engine",
		Name:      "delta_snapshot_fallbacks_total",
		Help:      "Times a delta-chain failure fell back to a full snapshot fetch.",
	})
)

// Serve starts the /metrics HTTP endpoint and blocks until ctx is
// cancelled, at which point it shuts the server down gracefully.
func Serve(ctx context.Context, listenAddr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              listenAddr,
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
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
