// internal/auth/metrics.go
package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tokenAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "graphplane",
	Subsystem: "auth",
	Name:      "token_acquisitions_total",
	Help:      "Successful bearer token acquisitions, by tenant, auth type and source.",
}, []string{"tenant", "auth_type", "source"})
