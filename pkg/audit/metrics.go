// pkg/audit/metrics.go
package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "graphplane",
	Subsystem: "audit",
	Name:      "events_total",
	Help:      "Audit events recorded, by severity level.",
}, []string{"level"})
