// internal/manager/manager.go
package manager

import (
	"context"

	"github.com/google/uuid"

	"graphplane/internal/auth"
	"graphplane/internal/graph"
	"graphplane/internal/operations"
	"graphplane/pkg/audit"
	"graphplane/pkg/tenants"
)

// Manager orchestrates tenant onboarding, validation and operations. It owns
// no credentials itself; each operation gets a fresh resolver and dispatcher
// so permission changes take effect on the next call.
type Manager struct {
	registry     tenants.Registry
	audit        *audit.Logger
	resolverOpts []auth.Option
	graphOpts    []graph.Option
}

type Option func(*Manager)

// WithResolverOptions forwards options (e.g. the token cache) to every
// resolver the manager constructs.
func WithResolverOptions(opts ...auth.Option) Option {
	return func(m *Manager) { m.resolverOpts = append(m.resolverOpts, opts...) }
}

// WithGraphOptions forwards dispatcher policy (timeout, retry budget) to
// every client the manager constructs.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(m *Manager) { m.graphOpts = append(m.graphOpts, opts...) }
}

func New(registry tenants.Registry, auditLog *audit.Logger, opts ...Option) *Manager {
	m := &Manager{registry: registry, audit: auditLog}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ExecutionContext binds one tenant to a live dispatcher for the duration of
// a single operation invocation.
type ExecutionContext struct {
	TenantID string
	Graph    *graph.Client
}

// Operation is the caller-supplied body run against the operations facade.
type Operation func(ctx context.Context, ops *operations.Ops) (any, error)

func (m *Manager) GetTenant(ctx context.Context, tenantID string) (tenants.TenantConfig, error) {
	return m.registry.Get(ctx, tenantID)
}

func (m *Manager) ListTenants(ctx context.Context) ([]tenants.TenantConfig, error) {
	return m.registry.List(ctx)
}

// Onboard inserts or replaces a tenant by id.
func (m *Manager) Onboard(ctx context.Context, cfg tenants.TenantConfig) error {
	if err := m.registry.Upsert(ctx, cfg); err != nil {
		return err
	}
	m.audit.Info("tenant_onboarded", audit.Fields{
		"tenant_id":    cfg.TenantID,
		"display_name": cfg.DisplayName,
	})
	return nil
}

// Offboard removes a tenant. Removing an unconfigured id is a no-op; the
// event is emitted regardless so the trail shows the intent.
func (m *Manager) Offboard(ctx context.Context, tenantID string) error {
	if err := m.registry.Remove(ctx, tenantID); err != nil {
		return err
	}
	m.audit.Info("tenant_offboarded", audit.Fields{"tenant_id": tenantID})
	return nil
}

// WithContext looks up the tenant, runs the permission-validation pass and
// builds a fresh resolver/dispatcher pair bound to it.
func (m *Manager) WithContext(ctx context.Context, tenantID string) (*ExecutionContext, error) {
	tenant, err := m.registry.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	m.validatePermissions(tenant)
	resolver := auth.NewResolver(tenant, m.audit, m.resolverOpts...)
	client := graph.NewClient(tenant, resolver, m.audit, m.graphOpts...)
	return &ExecutionContext{TenantID: tenant.TenantID, Graph: client}, nil
}

// validatePermissions is informational today. A real deployment may extend it
// to call an introspection endpoint such as /oauth2PermissionGrants.
func (m *Manager) validatePermissions(tenant tenants.TenantConfig) {
	m.audit.Info("tenant_validated", audit.Fields{
		"tenant_id":                      tenant.TenantID,
		"required_app_roles":             tenant.RequiredApplicationRoles,
		"required_delegated_permissions": tenant.RequiredDelegatedPermissions,
	})
}

// RunOperation wraps one logical operation: correlation id, fresh execution
// context, start/complete events. A failing operation emits operation_failed
// and propagates unwrapped so callers can surface message + correlation id.
func (m *Manager) RunOperation(ctx context.Context, tenantID string, op Operation, correlationID string) (any, error) {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ec, err := m.WithContext(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	m.audit.Info("operation_started", audit.Fields{
		"tenant_id":      tenantID,
		"correlation_id": correlationID,
	})
	result, err := op(ctx, operations.New(ec.Graph))
	if err != nil {
		m.audit.Error("operation_failed", audit.Fields{
			"tenant_id":      tenantID,
			"correlation_id": correlationID,
			"error":          err.Error(),
		})
		return nil, err
	}
	m.audit.Info("operation_completed", audit.Fields{
		"tenant_id":      tenantID,
		"correlation_id": correlationID,
	})
	return result, nil
}
