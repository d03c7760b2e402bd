package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatstore_pages_served_total",
		Help: "Timeline pages assembled and returned.",
	})
	BodyCacheMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatstore_body_cache_miss_total",
		Help: "Timeline entries whose body was absent from the cache.",
	})
	ReactionOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatstore_reaction_ops_total",
		Help: "Reaction mutations by direction and backing path.",
	}, []string{"direction", "path"})
	ReceiptFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatstore_receipt_fallback_total",
		Help: "Read-receipt batches that failed on the fast path.",
	})
)

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
