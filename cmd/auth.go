package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kernel/reviewkit/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
)

// AuthCmd manages the Kernel API key kept in the OS keyring.
type AuthCmd struct {
	prompt func() (string, error)
}

// AuthSetKeyInput holds input for storing an API key.
type AuthSetKeyInput struct {
	Key string
}

// SetKey stores the API key, prompting for it when none is given.
func (a AuthCmd) SetKey(ctx context.Context, in AuthSetKeyInput) error {
	key := strings.TrimSpace(in.Key)
	if key == "" && a.prompt != nil {
		entered, err := a.prompt()
		if err != nil {
			return fmt.Errorf("failed to read api key: %w", err)
		}
		key = strings.TrimSpace(entered)
	}
	if key == "" {
		return fmt.Errorf("api key must not be empty")
	}
	if err := keyring.Set(util.KeyringService, util.KeyringUser, key); err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	pterm.Success.Println("Saved Kernel API key to the keyring")
	return nil
}

// Clear removes the stored API key.
func (a AuthCmd) Clear(ctx context.Context) error {
	err := keyring.Delete(util.KeyringService, util.KeyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		pterm.Info.Println("No API key stored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove api key: %w", err)
	}
	pterm.Success.Println("Removed Kernel API key from the keyring")
	return nil
}

// Status reports where the API key would be read from.
func (a AuthCmd) Status(ctx context.Context) error {
	if os.Getenv("KERNEL_API_KEY") != "" {
		pterm.Info.Println("Using KERNEL_API_KEY from the environment")
		return nil
	}
	_, err := keyring.Get(util.KeyringService, util.KeyringUser)
	switch {
	case err == nil:
		pterm.Info.Println("Using the API key stored in the keyring")
	case errors.Is(err, keyring.ErrNotFound):
		pterm.Warning.Println("No API key configured")
	default:
		return fmt.Errorf("failed to read keyring: %w", err)
	}
	return nil
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Kernel API key",
}

var authSetKeyCmd = &cobra.Command{
	Use:   "set-key [key]",
	Short: "Store the Kernel API key in the OS keyring",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthSetKey,
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored Kernel API key",
	Args:  cobra.NoArgs,
	RunE:  runAuthClear,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the Kernel API key comes from",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authSetKeyCmd)
	authCmd.AddCommand(authClearCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func promptAPIKey() (string, error) {
	return pterm.DefaultInteractiveTextInput.WithMask("*").Show("Kernel API key")
}

func runAuthSetKey(cmd *cobra.Command, args []string) error {
	in := AuthSetKeyInput{}
	if len(args) == 1 {
		in.Key = args[0]
	}
	return AuthCmd{prompt: promptAPIKey}.SetKey(cmd.Context(), in)
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	return AuthCmd{}.Clear(cmd.Context())
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	return AuthCmd{}.Status(cmd.Context())
}
