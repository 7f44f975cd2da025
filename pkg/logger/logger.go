// pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
)

type Sugared = *zap.SugaredLogger

// New returns the operational logger. Audit events flow through pkg/audit
// instead; this logger carries process-level diagnostics only.
func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		z, _ = zap.NewProduction()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Sugar()
}

// Nop discards everything. Used by tests.
func Nop() Sugared {
	return zap.NewNop().Sugar()
}
