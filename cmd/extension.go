package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kernel/kernel-go-sdk"
	"github.com/kernel/kernel-go-sdk/option"
	"github.com/kernel/reviewkit/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// BrowserExtensionService defines the subset of the Kernel SDK browser client that we use.
type BrowserExtensionService interface {
	LoadExtensions(ctx context.Context, id string, body kernel.BrowserLoadExtensionsParams, opts ...option.RequestOption) error
}

// ExtensionCmd loads unpacked review extensions into Kernel browsers.
type ExtensionCmd struct {
	browsers BrowserExtensionService
}

// ExtensionLoadInput holds input for loading an extension.
type ExtensionLoadInput struct {
	BrowserID   string
	Dir         string
	Name        string
	KeepDevDeps bool
}

// Load zips the extension directory and loads it into the browser.
func (e ExtensionCmd) Load(ctx context.Context, in ExtensionLoadInput) error {
	if in.BrowserID == "" {
		return fmt.Errorf("extension load requires --browser")
	}
	info, err := os.Stat(in.Dir)
	if err != nil {
		return fmt.Errorf("failed to read extension directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", in.Dir)
	}
	if _, err := os.Stat(filepath.Join(in.Dir, "manifest.json")); err != nil {
		return fmt.Errorf("%s has no manifest.json", in.Dir)
	}

	name := in.Name
	if name == "" {
		abs, err := filepath.Abs(in.Dir)
		if err != nil {
			return err
		}
		name = filepath.Base(abs)
	}

	tmp, err := os.CreateTemp("", "reviewkit-extension-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create temp zip: %w", err)
	}
	zipPath := tmp.Name()
	tmp.Close()
	defer os.Remove(zipPath)

	stats, err := util.ZipExtensionDirectory(in.Dir, zipPath, &util.ExtensionZipOptions{ExcludeDefaults: in.KeepDevDeps})
	if err != nil {
		return fmt.Errorf("failed to zip extension: %w", err)
	}
	pterm.Info.Printf("Packed %d files (%s)\n", stats.FilesIncluded, util.FormatBytes(stats.BytesIncluded))

	zipFile, err := os.Open(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open extension zip: %w", err)
	}
	defer zipFile.Close()

	if err := e.browsers.LoadExtensions(ctx, in.BrowserID, kernel.BrowserLoadExtensionsParams{
		Extensions: []kernel.BrowserLoadExtensionsParamsExtension{
			{
				Name:    name,
				ZipFile: zipFile,
			},
		},
	}); err != nil {
		return util.CleanedUpSdkError{Err: err}
	}

	pterm.Success.Printf("Loaded extension %s into browser %s\n", name, in.BrowserID)
	return nil
}

var extensionCmd = &cobra.Command{
	Use:   "extension",
	Short: "Manage browser extensions in Kernel browsers",
}

var extensionLoadCmd = &cobra.Command{
	Use:         "load <dir>",
	Short:       "Zip an unpacked extension and load it into a Kernel browser",
	Example:     `  reviewkit extension load ./extension --browser abc123xyz`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{requiresKernelAnnotation: "true"},
	RunE:        runExtensionLoad,
}

func init() {
	extensionLoadCmd.Flags().String("name", "", "Extension name (defaults to the directory name)")
	extensionLoadCmd.Flags().Bool("keep-dev-files", false, "Include node_modules, tests and source maps")

	extensionCmd.AddCommand(extensionLoadCmd)
	rootCmd.AddCommand(extensionCmd)
}

func runExtensionLoad(cmd *cobra.Command, args []string) error {
	client, err := util.GetKernelClient(cmd)
	if err != nil {
		return err
	}
	in := ExtensionLoadInput{Dir: args[0]}
	in.BrowserID, _ = cmd.Flags().GetString("browser")
	in.Name, _ = cmd.Flags().GetString("name")
	in.KeepDevDeps, _ = cmd.Flags().GetBool("keep-dev-files")
	return ExtensionCmd{browsers: &client.Browsers}.Load(cmd.Context(), in)
}
