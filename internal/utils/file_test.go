package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	got, err := FileSHA256(path)
	require.NoError(t, err)
	// sha256("hello")
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", got)

	assert.Equal(t, got, SHA256Hex([]byte("hello")))
}

func TestFileSHA256Missing(t *testing.T) {
	_, err := FileSHA256(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "sync.json")

	require.NoError(t, AtomicWriteFile(path, []byte(`{"linked":true}`), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"linked":true}`, string(data))

	// overwrite leaves no temp files behind
	require.NoError(t, AtomicWriteFile(path, []byte(`{"linked":false}`), 0o644))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"linked":false}`, string(data))
}
