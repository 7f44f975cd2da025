// pkg/secrets/secrets_test.go
package secrets

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("GRAPHPLANE_TEST_SECRET", "from-env")
	v, err := Ref{Env: "GRAPHPLANE_TEST_SECRET"}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestResolveEnvUnset(t *testing.T) {
	_, err := Ref{Env: "GRAPHPLANE_TEST_SECRET_UNSET"}.Resolve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRAPHPLANE_TEST_SECRET_UNSET")
}

func TestResolveInlineValue(t *testing.T) {
	v, err := Ref{Value: "inline-secret"}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "inline-secret", v)
}

func TestResolveKeyVaultURIAlwaysFails(t *testing.T) {
	_, err := Ref{KeyVaultSecretURI: "https://vault.example.net/secrets/app"}.Resolve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}

func TestResolveEmptyRefFails(t *testing.T) {
	_, err := Ref{}.Resolve()
	require.Error(t, err)
}

func TestEnvTakesPrecedenceOverValue(t *testing.T) {
	t.Setenv("GRAPHPLANE_TEST_SECRET", "from-env")
	v, err := Ref{Env: "GRAPHPLANE_TEST_SECRET", Value: "inline"}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestStringNeverRendersInlineValue(t *testing.T) {
	r := Ref{Value: "super-secret"}
	assert.NotContains(t, r.String(), "super-secret")
	assert.NotContains(t, fmt.Sprintf("%v", r), "super-secret")
	assert.NotContains(t, fmt.Sprintf("%s", r), "super-secret")
}
