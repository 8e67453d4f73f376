package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SnapshotsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_window_snapshots_applied_total",
		Help: "Live-window snapshots applied to the message cache.",
	})

	StaleCallbacksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_window_stale_callbacks_dropped_total",
		Help: "Callbacks discarded because their window generation was superseded.",
	})

	OptimisticReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_window_optimistic_reconciled_total",
		Help: "Optimistic messages replaced by their persisted counterpart.",
	})

	PagesLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_window_pages_loaded_total",
		Help: "Older-message pages fetched.",
	})

	TypingWritesThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_typing_writes_throttled_total",
		Help: "Typing signals suppressed by the throttle window.",
	})
)

// Serve exposes the metrics endpoint. Blocks until the listener fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
