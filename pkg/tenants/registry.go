// pkg/tenants/registry.go
package tenants

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrTenantNotFound is returned when a tenant id is not configured.
var ErrTenantNotFound = errors.New("tenant is not configured")

// Registry holds the set of configured tenants. Reads dominate writes;
// onboarding and offboarding are rare, administrative actions.
type Registry interface {
	Get(ctx context.Context, tenantID string) (TenantConfig, error)
	List(ctx context.Context) ([]TenantConfig, error)
	// Upsert inserts or replaces by tenant id.
	Upsert(ctx context.Context, cfg TenantConfig) error
	// Remove deletes the tenant if present. Removing an unknown id is a no-op.
	Remove(ctx context.Context, tenantID string) error
}

type memRegistry struct {
	mu   sync.RWMutex
	byID map[string]TenantConfig
	log  *zap.SugaredLogger
}

// NewMemoryRegistry builds an in-process registry, optionally pre-seeded.
// Seed entries must already be validated by the loader.
func NewMemoryRegistry(log *zap.SugaredLogger, seed ...TenantConfig) Registry {
	m := &memRegistry{byID: make(map[string]TenantConfig, len(seed)), log: log}
	for _, t := range seed {
		m.byID[t.TenantID] = t
	}
	return m
}

func (m *memRegistry) Get(_ context.Context, tenantID string) (TenantConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byID[tenantID]
	if !ok {
		return TenantConfig{}, ErrTenantNotFound
	}
	return t, nil
}

func (m *memRegistry) List(_ context.Context) ([]TenantConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TenantConfig, 0, len(m.byID))
	for _, t := range m.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

func (m *memRegistry) Upsert(_ context.Context, cfg TenantConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.byID[cfg.TenantID] = cfg
	m.mu.Unlock()
	return nil
}

func (m *memRegistry) Remove(_ context.Context, tenantID string) error {
	m.mu.Lock()
	delete(m.byID, tenantID)
	m.mu.Unlock()
	return nil
}
