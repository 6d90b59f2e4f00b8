package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kernel/reviewkit/pkg/pagestate"
	"github.com/kernel/reviewkit/pkg/storage"
	"github.com/kernel/reviewkit/pkg/util"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	addGlobalFlags(c.Flags())
	require.NoError(t, c.ParseFlags(args))
	c.SetContext(context.Background())
	return c
}

func TestResolveStoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	store, url, b, err := resolveStore(newFlagCmd(t, "--cache-file", path, "--url", testPageURL))
	require.NoError(t, err)
	assert.Nil(t, b)
	require.IsType(t, &storage.File{}, store)
	assert.Equal(t, path, store.(*storage.File).Path())
	assert.Equal(t, pagestate.StaticURL(testPageURL), url)
	assert.NoError(t, requireURL(url))
}

func TestResolveStoreWithoutURL(t *testing.T) {
	_, url, _, err := resolveStore(newFlagCmd(t, "--cache-file", filepath.Join(t.TempDir(), "s.json")))
	require.NoError(t, err)
	assert.Nil(t, url)
	assert.Error(t, requireURL(url))
}

func TestResolveStoreBrowserNeedsAPIKey(t *testing.T) {
	keyring.MockInit()
	t.Setenv("KERNEL_API_KEY", "")

	_, _, _, err := resolveStore(newFlagCmd(t, "--browser", "sess-1"))
	assert.ErrorIs(t, err, util.ErrNoAPIKey)
}

func TestResolveStoreBrowserBuildsClient(t *testing.T) {
	t.Setenv("KERNEL_API_KEY", "sk_test")

	store, url, b, err := resolveStore(newFlagCmd(t, "--browser", "sess-1"))
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Same(t, b, store)
	assert.Same(t, b, url)
}

func TestSetupWithBrowserDoesNotNeedAPIKey(t *testing.T) {
	keyring.MockInit()
	t.Setenv("KERNEL_API_KEY", "")
	t.Chdir(t.TempDir())

	// Commands that never open the store run without credentials.
	c := newFlagCmd(t, "--browser", "sess-1")
	require.NoError(t, setup(c, nil))
	_, err := util.GetKernelClient(c)
	assert.ErrorIs(t, err, util.ErrNoAPIKey)
}

func TestSetupRequiresAPIKeyForKernelCommands(t *testing.T) {
	keyring.MockInit()
	t.Setenv("KERNEL_API_KEY", "")
	t.Chdir(t.TempDir())

	c := newFlagCmd(t)
	c.Annotations = map[string]string{requiresKernelAnnotation: "true"}
	assert.ErrorIs(t, setup(c, nil), util.ErrNoAPIKey)

	t.Setenv("KERNEL_API_KEY", "sk_test")
	require.NoError(t, setup(c, nil))
	_, err := util.GetKernelClient(c)
	assert.NoError(t, err)
}

func TestSetupReadsCacheFileFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "from-dotenv.json")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REVIEWKIT_CACHE_FILE="+want+"\n"), 0600))
	t.Chdir(dir)
	t.Setenv("REVIEWKIT_CACHE_FILE", "")
	require.NoError(t, os.Unsetenv("REVIEWKIT_CACHE_FILE"))

	c := newFlagCmd(t)
	require.NoError(t, setup(c, nil))
	got, _ := c.Flags().GetString("cache-file")
	assert.Equal(t, want, got)
}

func TestSetupKeepsExplicitCacheFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REVIEWKIT_CACHE_FILE=/tmp/ignored.json\n"), 0600))
	t.Chdir(dir)
	t.Setenv("REVIEWKIT_CACHE_FILE", "")
	require.NoError(t, os.Unsetenv("REVIEWKIT_CACHE_FILE"))

	explicit := filepath.Join(dir, "explicit.json")
	c := newFlagCmd(t, "--cache-file", explicit)
	require.NoError(t, setup(c, nil))
	got, _ := c.Flags().GetString("cache-file")
	assert.Equal(t, explicit, got)
}

func TestDefaultCacheFileFromEnv(t *testing.T) {
	t.Setenv("REVIEWKIT_CACHE_FILE", "/tmp/reviewkit.json")
	assert.Equal(t, "/tmp/reviewkit.json", defaultCacheFile())
}
