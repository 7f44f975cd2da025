// internal/graph/backoff.go
package graph

import (
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultInitialBackoff is the wait used for the first throttled attempt
	// without a server hint.
	DefaultInitialBackoff = time.Second
	// MaxBackoff caps the exponential growth so worst-case latency stays
	// bounded.
	MaxBackoff = 30 * time.Second
)

// NextWait decides how long to wait before the next attempt and the backoff
// value to carry forward. A server-advertised hint is used as-is and leaves
// the backoff untouched; otherwise the current backoff is consumed and
// doubled, capped at MaxBackoff. Pure function: attempt timing is fully
// testable without real delays.
func NextWait(hint *time.Duration, backoff time.Duration) (wait, next time.Duration) {
	if hint != nil {
		return *hint, backoff
	}
	next = backoff * 2
	if next > MaxBackoff {
		next = MaxBackoff
	}
	return backoff, next
}

// RetryAfterHint reads the Retry-After header as a number of seconds. Absent
// or unparseable values (including HTTP-date forms) yield nil.
func RetryAfterHint(h http.Header) *time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return nil
	}
	d := time.Duration(secs * float64(time.Second))
	return &d
}
