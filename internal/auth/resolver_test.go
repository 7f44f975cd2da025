// internal/auth/resolver_test.go
package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphplane/pkg/audit"
	"graphplane/pkg/secrets"
	"graphplane/pkg/tenants"
)

func testAudit() (*audit.Logger, *audit.Store) {
	store := audit.NewStore(100)
	return audit.New(store, io.Discard), store
}

func clientSecretTenant(authority string) tenants.TenantConfig {
	return tenants.TenantConfig{
		TenantID: "contoso",
		Auth: tenants.ClientSecretAuth{
			ClientID:      "app-1",
			ClientSecret:  secrets.Ref{Value: "s3cret"},
			AuthorityHost: authority,
		},
		DefaultScopes: []string{tenants.DefaultScope},
		GraphBaseURL:  tenants.DefaultGraphBaseURL,
	}
}

func requireAcquiredEvent(t *testing.T, store *audit.Store, authType string) {
	t.Helper()
	var found int
	for _, e := range store.List(0) {
		if e.Message == "acquired_app_token" {
			found++
			assert.Equal(t, "contoso", e.TenantID)
			assert.Equal(t, authType, e.Extra["auth_type"])
			assert.NotContains(t, e.Extra, "token")
		}
	}
	assert.Equal(t, 1, found, "exactly one acquired_app_token event")
}

func TestClientSecretToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/contoso/oauth2/v2.0/token", r.URL.Path)
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "app-1", r.Form.Get("client_id"))
		assert.Equal(t, "s3cret", r.Form.Get("client_secret"))
		assert.Equal(t, tenants.DefaultScope, r.Form.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-abc","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	auditLog, store := testAudit()
	r := NewResolver(clientSecretTenant(srv.URL), auditLog)
	tok, err := r.AcquireToken(context.Background(), []string{tenants.DefaultScope})
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok)
	requireAcquiredEvent(t, store, "client_secret")
}

func TestClientSecretTokenEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	auditLog, _ := testAudit()
	r := NewResolver(clientSecretTenant(srv.URL), auditLog)
	_, err := r.AcquireToken(context.Background(), []string{tenants.DefaultScope})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "contoso", authErr.TenantID)
	assert.Contains(t, authErr.Body, "invalid_client")
}

func TestClientSecretTokenMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	auditLog, store := testAudit()
	r := NewResolver(clientSecretTenant(srv.URL), auditLog)
	tok, err := r.AcquireToken(context.Background(), []string{tenants.DefaultScope})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Empty(t, tok)
	assert.Empty(t, store.List(0), "no acquisition event on failure")
}

func TestClientSecretUnresolvableSecret(t *testing.T) {
	cfg := clientSecretTenant("https://login.microsoftonline.com")
	ac := cfg.Auth.(tenants.ClientSecretAuth)
	ac.ClientSecret = secrets.Ref{Env: "GRAPHPLANE_TEST_UNSET_SECRET"}
	cfg.Auth = ac

	auditLog, _ := testAudit()
	r := NewResolver(cfg, auditLog)
	_, err := r.AcquireToken(context.Background(), []string{tenants.DefaultScope})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "GRAPHPLANE_TEST_UNSET_SECRET")
}

func TestCertificateToken(t *testing.T) {
	certPath := writeTestCertPEM(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, assertionType, r.Form.Get("client_assertion_type"))
		assertion := r.Form.Get("client_assertion")
		require.NotEmpty(t, assertion)
		assert.Len(t, strings.Split(assertion, "."), 3, "compact JWS")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-cert","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	cfg := tenants.TenantConfig{
		TenantID: "contoso",
		Auth: tenants.CertificateAuth{
			ClientID:        "app-2",
			CertificatePath: certPath,
			AuthorityHost:   srv.URL,
		},
		DefaultScopes: []string{tenants.DefaultScope},
		GraphBaseURL:  tenants.DefaultGraphBaseURL,
	}

	auditLog, store := testAudit()
	r := NewResolver(cfg, auditLog)
	tok, err := r.AcquireToken(context.Background(), []string{tenants.DefaultScope})
	require.NoError(t, err)
	assert.Equal(t, "tok-cert", tok)
	requireAcquiredEvent(t, store, "certificate")
}

func TestCertificateTokenUnreadableFile(t *testing.T) {
	cfg := tenants.TenantConfig{
		TenantID: "contoso",
		Auth: tenants.CertificateAuth{
			ClientID:        "app-2",
			CertificatePath: "/nonexistent/certs/app.pem",
			AuthorityHost:   "https://login.microsoftonline.com",
		},
		DefaultScopes: []string{tenants.DefaultScope},
		GraphBaseURL:  tenants.DefaultGraphBaseURL,
	}

	auditLog, _ := testAudit()
	r := NewResolver(cfg, auditLog)
	_, err := r.AcquireToken(context.Background(), []string{tenants.DefaultScope})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "/nonexistent/certs/app.pem")
}

func TestManagedIdentityToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.Header.Get("Metadata"))
		assert.Equal(t, "https://graph.microsoft.com", r.URL.Query().Get("resource"))
		assert.Equal(t, "user-assigned-1", r.URL.Query().Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-mi","expires_in":"3600"}`))
	}))
	defer srv.Close()

	cfg := tenants.TenantConfig{
		TenantID:      "contoso",
		Auth:          tenants.ManagedIdentityAuth{ClientID: "user-assigned-1"},
		DefaultScopes: []string{tenants.DefaultScope},
		GraphBaseURL:  tenants.DefaultGraphBaseURL,
	}

	auditLog, store := testAudit()
	r := NewResolver(cfg, auditLog, WithManagedIdentityEndpoint(srv.URL))
	tok, err := r.AcquireToken(context.Background(), []string{tenants.DefaultScope})
	require.NoError(t, err)
	assert.Equal(t, "tok-mi", tok)
	requireAcquiredEvent(t, store, "managed_identity")
}

func TestManagedIdentityTokenEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"identity_not_found"}`))
	}))
	defer srv.Close()

	cfg := tenants.TenantConfig{
		TenantID:      "contoso",
		Auth:          tenants.ManagedIdentityAuth{},
		DefaultScopes: []string{tenants.DefaultScope},
		GraphBaseURL:  tenants.DefaultGraphBaseURL,
	}

	auditLog, _ := testAudit()
	r := NewResolver(cfg, auditLog, WithManagedIdentityEndpoint(srv.URL))
	_, err := r.AcquireToken(context.Background(), []string{tenants.DefaultScope})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Body, "identity_not_found")
}

func TestAcquireTokenNilAuthIsConfigError(t *testing.T) {
	cfg := tenants.TenantConfig{
		TenantID:      "contoso",
		DefaultScopes: []string{tenants.DefaultScope},
	}
	auditLog, _ := testAudit()
	r := NewResolver(cfg, auditLog)
	_, err := r.AcquireToken(context.Background(), []string{tenants.DefaultScope})

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestAcquireTokenRequiresScopes(t *testing.T) {
	auditLog, _ := testAudit()
	r := NewResolver(clientSecretTenant("https://login.microsoftonline.com"), auditLog)
	_, err := r.AcquireToken(context.Background(), nil)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
