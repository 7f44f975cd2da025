// pkg/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphplane/pkg/tenants"
)

func writeTenantFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadTenants(t *testing.T) {
	path := writeTenantFile(t, `
tenants:
  - tenant_id: contoso
    display_name: Contoso Ltd
    auth:
      type: client_secret
      client_id: app-1
      client_secret:
        env: CONTOSO_SECRET
  - tenant_id: internal
    auth:
      type: managed_identity
`)
	list, err := LoadTenants(path)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "contoso", list[0].TenantID)
	assert.IsType(t, tenants.ManagedIdentityAuth{}, list[1].Auth)
}

func TestLoadTenantsMissingFile(t *testing.T) {
	_, err := LoadTenants(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadTenantsRejectsUnknownTopLevelField(t *testing.T) {
	path := writeTenantFile(t, `
tenants: []
extra: true
`)
	_, err := LoadTenants(path)
	require.Error(t, err)
}

func TestLoadTenantsRejectsDuplicateIDs(t *testing.T) {
	path := writeTenantFile(t, `
tenants:
  - tenant_id: contoso
    auth:
      type: managed_identity
  - tenant_id: contoso
    auth:
      type: managed_identity
`)
	_, err := LoadTenants(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 30*time.Second, cfg.GraphTimeout)
	assert.Equal(t, 3, cfg.GraphMaxRetries)
	assert.Equal(t, 1000, cfg.AuditBufferSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GRAPH_MAX_RETRIES", "5")
	t.Setenv("AUDIT_BUFFER_SIZE", "10")
	cfg := Load()
	assert.Equal(t, 5, cfg.GraphMaxRetries)
	assert.Equal(t, 10, cfg.AuditBufferSize)
}
