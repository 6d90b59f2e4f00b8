package util

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kernel/kernel-go-sdk"
	"github.com/kernel/kernel-go-sdk/option"
	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
)

const (
	KeyringService = "reviewkit"
	KeyringUser    = "kernel-api-key"
)

type kernelClientKey struct{}

// ErrNoAPIKey is returned when neither the environment nor the keyring holds a key.
var ErrNoAPIKey = errors.New("no Kernel API key: set KERNEL_API_KEY or run `reviewkit auth set-key`")

// ResolveAPIKey returns KERNEL_API_KEY, falling back to the OS keyring.
func ResolveAPIKey() (string, error) {
	if key := os.Getenv("KERNEL_API_KEY"); key != "" {
		return key, nil
	}
	key, err := keyring.Get(KeyringService, KeyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoAPIKey
	}
	if err != nil {
		return "", fmt.Errorf("failed to read api key from keyring: %w", err)
	}
	return key, nil
}

// NewKernelClient builds a client for apiKey, honoring KERNEL_BASE_URL.
func NewKernelClient(apiKey string) kernel.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL := os.Getenv("KERNEL_BASE_URL"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return kernel.NewClient(opts...)
}

// WithKernelClient stores client in ctx for GetKernelClient.
func WithKernelClient(ctx context.Context, client kernel.Client) context.Context {
	return context.WithValue(ctx, kernelClientKey{}, client)
}

// GetKernelClient returns the client the root command attached to cmd's context.
func GetKernelClient(cmd *cobra.Command) (kernel.Client, error) {
	client, ok := cmd.Context().Value(kernelClientKey{}).(kernel.Client)
	if !ok {
		return kernel.Client{}, ErrNoAPIKey
	}
	return client, nil
}
