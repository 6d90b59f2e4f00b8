package util

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestResolveAPIKey(t *testing.T) {
	keyring.MockInit()

	t.Run("env wins", func(t *testing.T) {
		t.Setenv("KERNEL_API_KEY", "env-key")
		require.NoError(t, keyring.Set(KeyringService, KeyringUser, "ring-key"))
		t.Cleanup(func() { _ = keyring.Delete(KeyringService, KeyringUser) })

		key, err := ResolveAPIKey()
		require.NoError(t, err)
		assert.Equal(t, "env-key", key)
	})

	t.Run("keyring fallback", func(t *testing.T) {
		t.Setenv("KERNEL_API_KEY", "")
		require.NoError(t, keyring.Set(KeyringService, KeyringUser, "ring-key"))
		t.Cleanup(func() { _ = keyring.Delete(KeyringService, KeyringUser) })

		key, err := ResolveAPIKey()
		require.NoError(t, err)
		assert.Equal(t, "ring-key", key)
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv("KERNEL_API_KEY", "")
		_, err := ResolveAPIKey()
		assert.ErrorIs(t, err, ErrNoAPIKey)
	})
}

func TestGetKernelClient(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	_, err := GetKernelClient(cmd)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	cmd.SetContext(WithKernelClient(context.Background(), NewKernelClient("k")))
	_, err = GetKernelClient(cmd)
	assert.NoError(t, err)
}
