// pkg/secrets/secrets.go
package secrets

import (
	"fmt"
	"os"
)

// Ref points at where a secret lives without holding the secret itself.
// Exactly one of the fields should be set. Inline values are for local
// development only; production deployments should inject secrets through the
// environment or fetch them from a vault before constructing the Ref.
type Ref struct {
	Env               string `yaml:"env,omitempty" json:"env,omitempty"`
	Value             string `yaml:"value,omitempty" json:"value,omitempty"`
	KeyVaultSecretURI string `yaml:"key_vault_secret_uri,omitempty" json:"key_vault_secret_uri,omitempty"`
}

// Resolve returns the secret material. Resolution order is env, inline value,
// key vault URI. The key vault path is intentionally unimplemented and always
// fails: fetch the secret via managed identity before invoking authentication.
func (r Ref) Resolve() (string, error) {
	if r.Env != "" {
		if v := os.Getenv(r.Env); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("environment variable %s is not set", r.Env)
	}
	if r.Value != "" {
		return r.Value, nil
	}
	if r.KeyVaultSecretURI != "" {
		return "", fmt.Errorf("key vault secret resolution is not implemented for %s: fetch the secret before invoking authentication", r.KeyVaultSecretURI)
	}
	return "", fmt.Errorf("no secret reference provided for resolution")
}

// IsZero reports whether no reference is set at all.
func (r Ref) IsZero() bool {
	return r.Env == "" && r.Value == "" && r.KeyVaultSecretURI == ""
}

// String keeps secret material out of logs and %v formatting. Only the kind
// of reference and its non-sensitive locator are rendered.
func (r Ref) String() string {
	switch {
	case r.Env != "":
		return "secrets.Ref(env:" + r.Env + ")"
	case r.Value != "":
		return "secrets.Ref(inline:***)"
	case r.KeyVaultSecretURI != "":
		return "secrets.Ref(vault:" + r.KeyVaultSecretURI + ")"
	}
	return "secrets.Ref(empty)"
}
