// internal/auth/resolver.go
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"graphplane/pkg/audit"
	"graphplane/pkg/tenants"
)

// imdsTokenEndpoint is the Azure instance-metadata identity endpoint used by
// the managed identity flow. Overridable for hosting platforms (and tests)
// via MSI_ENDPOINT or WithManagedIdentityEndpoint.
const imdsTokenEndpoint = "http://169.254.169.254/metadata/identity/oauth2/token"

const imdsAPIVersion = "2018-02-01"

// assertionType is the client assertion grant marker for certificate auth.
const assertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Resolver turns one tenant's declarative auth descriptor plus a scope set
// into short-lived bearer tokens. A Resolver is built fresh per execution
// context; cross-process reuse happens only through the optional token cache.
type Resolver struct {
	tenant      tenants.TenantConfig
	audit       *audit.Logger
	cache       *TokenCache
	httpClient  *http.Client
	msiEndpoint string
	now         func() time.Time
}

type Option func(*Resolver)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.httpClient = c }
}

// WithTokenCache enables cross-process token reuse. A nil cache is allowed
// and leaves every acquisition as a fresh exchange.
func WithTokenCache(tc *TokenCache) Option {
	return func(r *Resolver) { r.cache = tc }
}

func WithManagedIdentityEndpoint(endpoint string) Option {
	return func(r *Resolver) { r.msiEndpoint = endpoint }
}

func NewResolver(tenant tenants.TenantConfig, auditLog *audit.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		tenant:      tenant,
		audit:       auditLog,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		msiEndpoint: imdsTokenEndpoint,
		now:         time.Now,
	}
	if v := os.Getenv("MSI_ENDPOINT"); v != "" {
		r.msiEndpoint = v
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// AcquireToken resolves the tenant's credentials into a bearer token for the
// given scopes. It never returns an empty token without an error.
func (r *Resolver) AcquireToken(ctx context.Context, scopes []string) (string, error) {
	if len(scopes) == 0 {
		return "", &ConfigError{Reason: "at least one scope is required"}
	}
	switch ac := r.tenant.Auth.(type) {
	case tenants.ClientSecretAuth:
		return r.clientSecretToken(ctx, ac, scopes)
	case tenants.CertificateAuth:
		return r.certificateToken(ctx, ac, scopes)
	case tenants.ManagedIdentityAuth:
		return r.managedIdentityToken(ctx, ac, scopes)
	default:
		return "", &ConfigError{Reason: fmt.Sprintf("unsupported authentication configuration %T", r.tenant.Auth)}
	}
}

func (r *Resolver) clientSecretToken(ctx context.Context, ac tenants.ClientSecretAuth, scopes []string) (string, error) {
	secret, err := ac.ClientSecret.Resolve()
	if err != nil {
		return "", &AuthError{TenantID: r.tenant.TenantID, AuthType: ac.AuthType(), Err: err}
	}
	conf := &clientcredentials.Config{
		ClientID:     ac.ClientID,
		ClientSecret: secret,
		TokenURL:     tokenURL(ac.AuthorityHost, r.tenant.TenantID),
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return r.exchange(ctx, ac.AuthType(), conf, scopes)
}

func (r *Resolver) certificateToken(ctx context.Context, ac tenants.CertificateAuth, scopes []string) (string, error) {
	key, cert, err := loadCertificate(ac)
	if err != nil {
		return "", &AuthError{TenantID: r.tenant.TenantID, AuthType: ac.AuthType(), Err: err}
	}
	aud := tokenURL(ac.AuthorityHost, r.tenant.TenantID)
	assertion, err := signClientAssertion(ac.ClientID, aud, key, cert, r.now())
	if err != nil {
		return "", &AuthError{TenantID: r.tenant.TenantID, AuthType: ac.AuthType(), Err: err}
	}
	conf := &clientcredentials.Config{
		ClientID:  ac.ClientID,
		TokenURL:  aud,
		Scopes:    scopes,
		AuthStyle: oauth2.AuthStyleInParams,
		EndpointParams: url.Values{
			"client_assertion_type": {assertionType},
			"client_assertion":      {assertion},
		},
	}
	return r.exchange(ctx, ac.AuthType(), conf, scopes)
}

// exchange runs the confidential-client flow: cache lookup first, then a
// fresh client-credentials exchange.
func (r *Resolver) exchange(ctx context.Context, authType string, conf *clientcredentials.Config, scopes []string) (string, error) {
	key := cacheKey(r.tenant.TenantID, authType, scopes)
	if tok, ok := r.cache.Get(ctx, key); ok {
		r.acquired(authType, "cache")
		return tok, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	tok, err := conf.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return "", &AuthError{TenantID: r.tenant.TenantID, AuthType: authType, Body: string(rerr.Body), Err: err}
		}
		return "", &AuthError{TenantID: r.tenant.TenantID, AuthType: authType, Err: err}
	}
	if tok.AccessToken == "" {
		return "", &AuthError{
			TenantID: r.tenant.TenantID,
			AuthType: authType,
			Err:      errors.New("token response is missing access_token"),
		}
	}

	if !tok.Expiry.IsZero() {
		if ttl := tok.Expiry.Sub(r.now()) - 2*time.Minute; ttl > 0 {
			r.cache.Put(ctx, key, tok.AccessToken, ttl)
		}
	}
	r.acquired(authType, "exchange")
	return tok.AccessToken, nil
}

func (r *Resolver) managedIdentityToken(ctx context.Context, ac tenants.ManagedIdentityAuth, scopes []string) (string, error) {
	// IMDS speaks resources, not scopes. Trimming the /.default suffix off
	// the first scope yields the resource the way azure-identity does it.
	resource := strings.TrimSuffix(scopes[0], "/.default")

	q := url.Values{
		"api-version": {imdsAPIVersion},
		"resource":    {resource},
	}
	if ac.ClientID != "" {
		q.Set("client_id", ac.ClientID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.msiEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", &AuthError{TenantID: r.tenant.TenantID, AuthType: ac.AuthType(), Err: err}
	}
	req.Header.Set("Metadata", "true")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{TenantID: r.tenant.TenantID, AuthType: ac.AuthType(), Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{
			TenantID: r.tenant.TenantID,
			AuthType: ac.AuthType(),
			Body:     string(body),
			Err:      fmt.Errorf("identity endpoint returned status %d", resp.StatusCode),
		}
	}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &AuthError{TenantID: r.tenant.TenantID, AuthType: ac.AuthType(), Body: string(body), Err: err}
	}
	if payload.AccessToken == "" {
		return "", &AuthError{
			TenantID: r.tenant.TenantID,
			AuthType: ac.AuthType(),
			Body:     string(body),
			Err:      errors.New("token response is missing access_token"),
		}
	}
	r.acquired(ac.AuthType(), "platform")
	return payload.AccessToken, nil
}

// acquired emits the single audit event every successful acquisition owes.
// Never the token, never the secret.
func (r *Resolver) acquired(authType, source string) {
	tokenAcquisitions.WithLabelValues(r.tenant.TenantID, authType, source).Inc()
	r.audit.Info("acquired_app_token", audit.Fields{
		"tenant_id": r.tenant.TenantID,
		"auth_type": authType,
	})
}

func tokenURL(authorityHost, tenantID string) string {
	return strings.TrimRight(authorityHost, "/") + "/" + tenantID + "/oauth2/v2.0/token"
}
