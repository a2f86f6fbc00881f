package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics to track
var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relation_operations_total",
			Help: "Relationship operations by name and outcome",
		},
		[]string{"operation", "status"}, // status: ok, error
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relation_cache_lookups_total",
			Help: "Relationship view cache lookups by kind and result",
		},
		[]string{"kind", "result"}, // result: hit, miss, error
	)
	CacheInvalidationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relation_cache_invalidation_errors_total",
			Help: "Cache busts that failed at the cache backend",
		},
		[]string{"kind"},
	)
	EventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relation_events_emitted_total",
			Help: "Domain events emitted by name",
		},
		[]string{"event"},
	)
	SubscriberFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relation_event_subscriber_failures_total",
			Help: "Event deliveries that failed in a subscriber",
		},
		[]string{"subscriber", "event"},
	)
)

// Register registers the collectors on reg
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		OperationsTotal,
		CacheLookups,
		CacheInvalidationErrors,
		EventsEmitted,
		SubscriberFailures,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveOperation records the outcome of a service operation
func ObserveOperation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
}
