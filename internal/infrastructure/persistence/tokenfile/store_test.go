package tokenfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"titleCountdown/internal/infrastructure/persistence/tokenfile"
)

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	store := tokenfile.NewStore(filepath.Join(t.TempDir(), "access_token.json"))

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSaveWritesAccessTokenJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "access_token.json")
	store := tokenfile.NewStore(path)

	require.NoError(t, store.Save("tok1"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"tok1"}`, string(raw))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok1", tok)
}

func TestSaveOverwrites(t *testing.T) {
	t.Parallel()

	store := tokenfile.NewStore(filepath.Join(t.TempDir(), "access_token.json"))

	require.NoError(t, store.Save("first-token-that-is-longer"))
	require.NoError(t, store.Save("tok2"))

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok2", tok)
}

func TestLoadMalformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "access_token.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := tokenfile.NewStore(path).Load()
	assert.Error(t, err)
}
