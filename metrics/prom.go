package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PasteCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinbin_paste_created_total",
		Help: "no. of pastes created",
	})
	PasteRetrieved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinbin_paste_retrieved_total",
		Help: "no. of pastes retrieved",
	})
	UserRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinbin_user_registered_total",
		Help: "no. of user signups",
	})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinbin_cache_hits_total",
		Help: "no. of cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinbin_cache_misses_total",
		Help: "no. of cache misses",
	})
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinbin_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
	AccessDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinbin_access_denied_total",
			Help: "no. of policy denials",
		},
		[]string{"code"},
	)
)

func Init() {
}
