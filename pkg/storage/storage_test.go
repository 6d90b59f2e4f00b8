package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(map[string]string{"a": "1"})

	v, ok, err := m.GetItem(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok, err = m.GetItem(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetItem(ctx, "b", "2"))
	assert.ElementsMatch(t, []string{"a", "b"}, m.Keys())
}

func TestFileMissingIsEmpty(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "nested", "store.json"))

	_, ok, err := f.GetItem(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	f := NewFile(path)

	require.NoError(t, f.SetItem(ctx, "https://x/pull/1", `{"files":{}}`))
	require.NoError(t, f.SetItem(ctx, "https://x/pull/2", `{}`))

	// A second handle sees the first one's writes.
	other := NewFile(path)
	v, ok, err := other.GetItem(ctx, "https://x/pull/1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"files":{}}`, v)

	keys, err := other.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/pull/1", "https://x/pull/2"}, keys)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileCorruptStartsFresh(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	f := NewFile(path)
	_, ok, err := f.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.SetItem(ctx, "k", "v"))
	v, ok, err := f.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
