// pkg/tenants/codec.go
package tenants

import (
	"encoding/json"
	"fmt"
)

// tenantDoc is the JSON document shape the postgres registry stores. The auth
// union is flattened with its "type" discriminator so documents stay readable
// in the database.
type tenantDoc struct {
	TenantID                     string          `json:"tenant_id"`
	DisplayName                  string          `json:"display_name,omitempty"`
	Auth                         json.RawMessage `json:"auth"`
	DefaultScopes                []string        `json:"default_scopes"`
	GraphBaseURL                 string          `json:"graph_base_url"`
	RequiredApplicationRoles     []string        `json:"required_application_roles,omitempty"`
	RequiredDelegatedPermissions []string        `json:"required_delegated_permissions,omitempty"`
}

type authProbe struct {
	Type string `json:"type"`
}

// MarshalJSON renders the tenant with the tagged auth union inlined.
func (t TenantConfig) MarshalJSON() ([]byte, error) {
	authRaw, err := marshalAuthJSON(t.Auth)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tenantDoc{
		TenantID:                     t.TenantID,
		DisplayName:                  t.DisplayName,
		Auth:                         authRaw,
		DefaultScopes:                t.DefaultScopes,
		GraphBaseURL:                 t.GraphBaseURL,
		RequiredApplicationRoles:     t.RequiredApplicationRoles,
		RequiredDelegatedPermissions: t.RequiredDelegatedPermissions,
	})
}

func (t *TenantConfig) UnmarshalJSON(data []byte) error {
	var doc tenantDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	t.TenantID = doc.TenantID
	t.DisplayName = doc.DisplayName
	t.DefaultScopes = doc.DefaultScopes
	t.GraphBaseURL = doc.GraphBaseURL
	t.RequiredApplicationRoles = doc.RequiredApplicationRoles
	t.RequiredDelegatedPermissions = doc.RequiredDelegatedPermissions
	if len(doc.Auth) > 0 {
		ac, err := unmarshalAuthJSON(doc.Auth)
		if err != nil {
			return fmt.Errorf("tenant %s: %w", doc.TenantID, err)
		}
		t.Auth = ac
	}
	return t.Validate()
}

func marshalAuthJSON(ac AuthConfig) (json.RawMessage, error) {
	if ac == nil {
		return nil, fmt.Errorf("auth configuration is required")
	}
	body, err := json.Marshal(ac)
	if err != nil {
		return nil, err
	}
	// Splice the discriminator into the variant's own fields.
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	m["type"] = json.RawMessage(fmt.Sprintf("%q", ac.AuthType()))
	return json.Marshal(m)
}

func unmarshalAuthJSON(raw json.RawMessage) (AuthConfig, error) {
	var probe authProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case "client_secret":
		var ac ClientSecretAuth
		if err := json.Unmarshal(raw, &ac); err != nil {
			return nil, err
		}
		if ac.AuthorityHost == "" {
			ac.AuthorityHost = DefaultAuthorityHost
		}
		return ac, nil
	case "certificate":
		var ac CertificateAuth
		if err := json.Unmarshal(raw, &ac); err != nil {
			return nil, err
		}
		if ac.AuthorityHost == "" {
			ac.AuthorityHost = DefaultAuthorityHost
		}
		return ac, nil
	case "managed_identity":
		var ac ManagedIdentityAuth
		if err := json.Unmarshal(raw, &ac); err != nil {
			return nil, err
		}
		return ac, nil
	}
	return nil, fmt.Errorf("unsupported auth type %q", probe.Type)
}
