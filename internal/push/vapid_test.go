package push

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureVAPIDKeysGeneratesOnceAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "vapid.json")

	first, err := EnsureVAPIDKeys(path)
	require.NoError(t, err)
	require.NotEmpty(t, first.PublicKey)
	require.NotEmpty(t, first.PrivateKey)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := EnsureVAPIDKeys(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsureVAPIDKeysReplacesIncompletePair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vapid.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"public_key":"only-public"}`), 0o600))

	keys, err := EnsureVAPIDKeys(path)
	require.NoError(t, err)
	assert.NotEqual(t, "only-public", keys.PublicKey)
	assert.NotEmpty(t, keys.PrivateKey)
}
