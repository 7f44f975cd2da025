// internal/webapp/middleware.go
package webapp

import (
	"context"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey string

const ctxKeyCorrelationID ctxKey = "correlation_id"

// CorrelationID accepts a caller-supplied X-Correlation-Id for cross-system
// tracing or mints a fresh one, and echoes it on the response.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Correlation-Id")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Correlation-Id", id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyCorrelationID, id)))
		})
	}
}

// CorrelationIDFrom returns the request's correlation id, or "" outside the
// middleware.
func CorrelationIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyCorrelationID).(string); ok {
		return v
	}
	return ""
}

func Recover(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Errorw("panic", "err", rec, "stack", string(debug.Stack()))
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
