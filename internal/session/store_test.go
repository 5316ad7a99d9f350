package session

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session", "token")
	store, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token, "missing file means no session")

	require.NoError(t, store.Save("  abc123\n"))
	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	require.NoError(t, store.Save("def456"))
	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "def456", token)

	require.NoError(t, store.Delete())
	token, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	assert.NoError(t, store.Delete(), "deleting twice is fine")
}

func TestStoreFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions only")
	}
	path := filepath.Join(t.TempDir(), "token")
	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save("secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestStoreRejectsEmpty(t *testing.T) {
	_, err := NewStore(" ")
	require.Error(t, err)

	store, err := NewStore(filepath.Join(t.TempDir(), "token"))
	require.NoError(t, err)
	assert.Error(t, store.Save("   "))
}
