// internal/webapp/handlers.go
package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"graphplane/internal/auth"
	"graphplane/internal/graph"
	"graphplane/internal/manager"
	"graphplane/internal/operations"
	"graphplane/pkg/audit"
	"graphplane/pkg/logger"
	"graphplane/pkg/tenants"
)

// Server is the JSON operator surface: trigger sample operations, inspect the
// audit trail, list tenants. It renders no HTML; callers are expected to
// surface the error message and correlation id.
type Server struct {
	manager *manager.Manager
	store   *audit.Store
	log     logger.Sugared
}

func New(mgr *manager.Manager, store *audit.Store, log logger.Sugared) *Server {
	return &Server{manager: mgr, store: store, log: log}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(CorrelationID())
	r.Use(Recover(s.log))
	r.Use(Tracing())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/tenants", s.handleTenants)
	r.Post("/operate", s.handleOperate)
	r.Get("/audit.json", s.handleAudit)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

type tenantSummary struct {
	TenantID     string `json:"tenant_id"`
	DisplayName  string `json:"display_name,omitempty"`
	AuthType     string `json:"auth_type"`
	GraphBaseURL string `json:"graph_base_url"`
}

func (s *Server) handleTenants(w http.ResponseWriter, r *http.Request) {
	list, err := s.manager.ListTenants(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]tenantSummary, 0, len(list))
	for _, t := range list {
		out = append(out, tenantSummary{
			TenantID:     t.TenantID,
			DisplayName:  t.DisplayName,
			AuthType:     t.Auth.AuthType(),
			GraphBaseURL: t.GraphBaseURL,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": out, "count": len(out)})
}

type operateRequest struct {
	TenantID         string `json:"tenant_id"`
	Operation        string `json:"operation"`
	Top              int    `json:"top"`
	GroupName        string `json:"group_name"`
	GroupDescription string `json:"group_description"`
}

func (s *Server) handleOperate(w http.ResponseWriter, r *http.Request) {
	var req operateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}
	if req.TenantID == "" || req.Operation == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "tenant_id and operation are required"})
		return
	}

	var op manager.Operation
	switch req.Operation {
	case "list-users":
		top := req.Top
		op = func(ctx context.Context, ops *operations.Ops) (any, error) {
			return ops.ListUsers(ctx, top)
		}
	case "create-security-group":
		if req.GroupName == "" || req.GroupDescription == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "group_name and group_description are required"})
			return
		}
		op = func(ctx context.Context, ops *operations.Ops) (any, error) {
			return ops.CreateSecurityGroup(ctx, req.GroupName, req.GroupDescription)
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported operation: " + req.Operation})
		return
	}

	correlationID := CorrelationIDFrom(r.Context())
	result, err := s.manager.RunOperation(r.Context(), req.TenantID, op, correlationID)
	if err != nil {
		s.writeOperateError(w, r, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id":      req.TenantID,
		"operation":      req.Operation,
		"correlation_id": correlationID,
		"result":         result,
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	events := s.store.List(limit)
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (s *Server) writeOperateError(w http.ResponseWriter, r *http.Request, err error, correlationID string) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Errorw("operation failed", "err", err, "correlation_id", correlationID)
	}
	writeJSON(w, status, map[string]any{
		"error":          err.Error(),
		"correlation_id": correlationID,
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeOperateError(w, r, err, CorrelationIDFrom(r.Context()))
}

func statusFor(err error) int {
	var (
		cfgErr   *auth.ConfigError
		authErr  *auth.AuthError
		reqErr   *graph.RequestError
		retryErr *graph.RetryExhaustedError
	)
	switch {
	case errors.Is(err, tenants.ErrTenantNotFound):
		return http.StatusNotFound
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError
	case errors.As(err, &authErr):
		return http.StatusBadGateway
	case errors.As(err, &reqErr):
		return http.StatusBadGateway
	case errors.As(err, &retryErr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
