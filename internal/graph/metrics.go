// internal/graph/metrics.go
package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphplane",
		Subsystem: "graph",
		Name:      "requests_total",
		Help:      "Graph attempts issued, by tenant and status class.",
	}, []string{"tenant", "code"})

	throttledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphplane",
		Subsystem: "graph",
		Name:      "throttled_total",
		Help:      "Attempts that came back with a transient throttling status.",
	}, []string{"tenant"})
)
