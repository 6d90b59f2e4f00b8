package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/kernel/kernel-go-sdk"
	"github.com/kernel/reviewkit/pkg/pagestate"
	"github.com/kernel/reviewkit/pkg/storage"
	"github.com/kernel/reviewkit/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is set at build time.
var Version = "dev"

// requiresKernelAnnotation marks commands that always talk to the Kernel API.
const requiresKernelAnnotation = "reviewkit/requires-kernel"

var rootCmd = &cobra.Command{
	Use:   "reviewkit",
	Short: "Keep pull request review state between visits",
	Long: `reviewkit remembers which files you collapsed on a pull request page, the
last commit you reviewed, and when you last looked, and applies the same
page helpers (file toggles, extension menus, branch links) to saved pages or
to a live Kernel browser.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())
}

func addGlobalFlags(flags *pflag.FlagSet) {
	flags.String("url", "", "URL of the pull request page whose state to use")
	flags.String("cache-file", defaultCacheFile(), "Local storage file (env REVIEWKIT_CACHE_FILE)")
	flags.String("browser", "", "Kernel browser session id; use the page open in that browser")
	flags.Bool("debug", false, "Print debug output")
}

func defaultCacheFile() string {
	if p := os.Getenv("REVIEWKIT_CACHE_FILE"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "reviewkit", "local-storage.json")
}

func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		pterm.Warning.Printf("Could not load .env: %v\n", err)
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		pterm.EnableDebugMessages()
	}
	// The flag default was read before .env was loaded.
	if p := os.Getenv("REVIEWKIT_CACHE_FILE"); p != "" && !cmd.Flags().Changed("cache-file") {
		if err := cmd.Flags().Set("cache-file", p); err != nil {
			return fmt.Errorf("failed to set cache file: %w", err)
		}
	}

	if cmd.Annotations[requiresKernelAnnotation] == "" {
		return nil
	}
	client, err := kernelClient(cmd)
	if err != nil {
		return err
	}
	cmd.SetContext(util.WithKernelClient(cmd.Context(), client))
	return nil
}

// kernelClient returns the client attached by setup, or builds one from the
// configured API key.
func kernelClient(cmd *cobra.Command) (kernel.Client, error) {
	if client, err := util.GetKernelClient(cmd); err == nil {
		return client, nil
	}
	apiKey, err := util.ResolveAPIKey()
	if err != nil {
		return kernel.Client{}, err
	}
	return util.NewKernelClient(apiKey), nil
}

// resolveStore picks where page state lives. With --browser both the store and
// the URL come from the live page; otherwise the store is the cache file and
// the URL is --url, which may be empty.
func resolveStore(cmd *cobra.Command) (pagestate.KeyValueStore, pagestate.URLProvider, *storage.Browser, error) {
	if browserID, _ := cmd.Flags().GetString("browser"); browserID != "" {
		client, err := kernelClient(cmd)
		if err != nil {
			return nil, nil, nil, err
		}
		b := storage.NewBrowser(&client.Browsers.Playwright, browserID)
		return b, b, b, nil
	}

	path, _ := cmd.Flags().GetString("cache-file")
	pterm.Debug.Printf("Using cache file %s\n", path)
	var url pagestate.URLProvider
	if u, _ := cmd.Flags().GetString("url"); u != "" {
		url = pagestate.StaticURL(u)
	}
	return storage.NewFile(path), url, nil, nil
}

// requireURL fails when no page URL is known.
func requireURL(url pagestate.URLProvider) error {
	if url == nil {
		return fmt.Errorf("--url is required unless --browser is set")
	}
	return nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return fang.Execute(ctx, rootCmd, fang.WithVersion(Version))
}
