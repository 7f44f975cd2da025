// pkg/tenants/model.go
package tenants

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"graphplane/pkg/secrets"
)

const (
	// DefaultAuthorityHost is the public-cloud Entra ID authority. National
	// clouds override it per tenant.
	DefaultAuthorityHost = "https://login.microsoftonline.com"
	// DefaultGraphBaseURL is the public-cloud Graph endpoint.
	DefaultGraphBaseURL = "https://graph.microsoft.com"
	// DefaultScope requests whatever application permissions the app holds.
	DefaultScope = "https://graph.microsoft.com/.default"
)

// AuthConfig is the closed set of credential strategies a tenant may use.
// The resolver dispatches on concrete type; the unexported marker method
// keeps the set sealed to this package.
type AuthConfig interface {
	AuthType() string
	sealedAuthConfig()
}

// ClientSecretAuth authenticates a confidential client with a shared secret.
type ClientSecretAuth struct {
	ClientID      string      `yaml:"client_id" json:"client_id"`
	ClientSecret  secrets.Ref `yaml:"client_secret" json:"client_secret"`
	AuthorityHost string      `yaml:"authority_host,omitempty" json:"authority_host,omitempty"`
}

func (ClientSecretAuth) AuthType() string  { return "client_secret" }
func (ClientSecretAuth) sealedAuthConfig() {}

// CertificateAuth authenticates a confidential client with an X.509
// certificate, optionally password-protected.
type CertificateAuth struct {
	ClientID            string       `yaml:"client_id" json:"client_id"`
	CertificatePath     string       `yaml:"certificate_path" json:"certificate_path"`
	CertificatePassword *secrets.Ref `yaml:"certificate_password,omitempty" json:"certificate_password,omitempty"`
	AuthorityHost       string       `yaml:"authority_host,omitempty" json:"authority_host,omitempty"`
}

func (CertificateAuth) AuthType() string  { return "certificate" }
func (CertificateAuth) sealedAuthConfig() {}

// ManagedIdentityAuth delegates to the hosting platform's identity endpoint.
// ClientID disambiguates between user-assigned identities and may be empty.
type ManagedIdentityAuth struct {
	ClientID string `yaml:"client_id,omitempty" json:"client_id,omitempty"`
}

func (ManagedIdentityAuth) AuthType() string  { return "managed_identity" }
func (ManagedIdentityAuth) sealedAuthConfig() {}

// TenantConfig describes one configured tenant. Immutable once loaded; the
// registry owns instances for the process lifetime.
type TenantConfig struct {
	TenantID                     string
	DisplayName                  string
	Auth                         AuthConfig
	DefaultScopes                []string
	GraphBaseURL                 string
	RequiredApplicationRoles     []string
	RequiredDelegatedPermissions []string
}

// Validate enforces the invariants the loaders rely on and fills in defaults.
func (t *TenantConfig) Validate() error {
	if t.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if t.Auth == nil {
		return fmt.Errorf("tenant %s: auth configuration is required", t.TenantID)
	}
	if t.DefaultScopes == nil {
		t.DefaultScopes = []string{DefaultScope}
	}
	if len(t.DefaultScopes) == 0 {
		return fmt.Errorf("tenant %s: at least one scope must be provided", t.TenantID)
	}
	if t.GraphBaseURL == "" {
		t.GraphBaseURL = DefaultGraphBaseURL
	}
	switch ac := t.Auth.(type) {
	case ClientSecretAuth:
		if ac.ClientID == "" {
			return fmt.Errorf("tenant %s: client_id is required for client_secret auth", t.TenantID)
		}
		if ac.ClientSecret.IsZero() {
			return fmt.Errorf("tenant %s: client_secret reference is required", t.TenantID)
		}
	case CertificateAuth:
		if ac.ClientID == "" {
			return fmt.Errorf("tenant %s: client_id is required for certificate auth", t.TenantID)
		}
		if ac.CertificatePath == "" {
			return fmt.Errorf("tenant %s: certificate_path is required for certificate auth", t.TenantID)
		}
	case ManagedIdentityAuth:
	}
	return nil
}

// yamlFields maps each auth variant to the exact keys it accepts. Anything
// outside this set is rejected outright.
var yamlFields = map[string][]string{
	"client_secret":    {"type", "client_id", "client_secret", "authority_host"},
	"certificate":      {"type", "client_id", "certificate_path", "certificate_password", "authority_host"},
	"managed_identity": {"type", "client_id"},
}

var tenantConfigFields = []string{
	"tenant_id", "display_name", "auth", "default_scopes", "graph_base_url",
	"required_application_roles", "required_delegated_permissions",
}

// UnmarshalYAML decodes the tagged auth union and rejects unknown fields.
// The outer decoder's KnownFields setting does not reach into custom
// unmarshalers, so keys are checked by hand here.
func (t *TenantConfig) UnmarshalYAML(node *yaml.Node) error {
	if err := checkMappingKeys(node, tenantConfigFields); err != nil {
		return err
	}
	var raw struct {
		TenantID                     string    `yaml:"tenant_id"`
		DisplayName                  string    `yaml:"display_name"`
		Auth                         yaml.Node `yaml:"auth"`
		DefaultScopes                []string  `yaml:"default_scopes"`
		GraphBaseURL                 string    `yaml:"graph_base_url"`
		RequiredApplicationRoles     []string  `yaml:"required_application_roles"`
		RequiredDelegatedPermissions []string  `yaml:"required_delegated_permissions"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	t.TenantID = raw.TenantID
	t.DisplayName = raw.DisplayName
	t.DefaultScopes = raw.DefaultScopes
	t.GraphBaseURL = raw.GraphBaseURL
	t.RequiredApplicationRoles = raw.RequiredApplicationRoles
	t.RequiredDelegatedPermissions = raw.RequiredDelegatedPermissions
	if raw.Auth.Kind != 0 {
		ac, err := decodeAuthYAML(&raw.Auth)
		if err != nil {
			return fmt.Errorf("tenant %s: %w", raw.TenantID, err)
		}
		t.Auth = ac
	}
	return t.Validate()
}

func decodeAuthYAML(node *yaml.Node) (AuthConfig, error) {
	var probe struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&probe); err != nil {
		return nil, err
	}
	allowed, ok := yamlFields[probe.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported auth type %q", probe.Type)
	}
	if err := checkMappingKeys(node, allowed); err != nil {
		return nil, err
	}
	switch probe.Type {
	case "client_secret":
		var ac ClientSecretAuth
		if err := node.Decode(&ac); err != nil {
			return nil, err
		}
		if ac.AuthorityHost == "" {
			ac.AuthorityHost = DefaultAuthorityHost
		}
		return ac, nil
	case "certificate":
		var ac CertificateAuth
		if err := node.Decode(&ac); err != nil {
			return nil, err
		}
		if ac.AuthorityHost == "" {
			ac.AuthorityHost = DefaultAuthorityHost
		}
		return ac, nil
	default: // managed_identity
		var ac ManagedIdentityAuth
		if err := node.Decode(&ac); err != nil {
			return nil, err
		}
		return ac, nil
	}
}

func checkMappingKeys(node *yaml.Node, allowed []string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping, got yaml kind %d", node.Kind)
	}
	ok := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		ok[k] = true
	}
	var unknown []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		if k := node.Content[i].Value; !ok[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown fields %v", unknown)
	}
	return nil
}
