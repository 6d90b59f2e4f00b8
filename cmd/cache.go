package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/kernel/reviewkit/pkg/pagestate"
	"github.com/kernel/reviewkit/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// PageState is the page cache surface the cache commands drive.
type PageState interface {
	GetPageCache(ctx context.Context) pagestate.PageCache
	ResetCacheForPage(ctx context.Context) error
	GetCachedFiles(ctx context.Context) map[string]bool
	SetFileInCache(ctx context.Context, fileID string, visible bool) error
	GetCachedCommitNumber(ctx context.Context) int64
	SetCachedCommitNumber(ctx context.Context, n int64) error
	GetLastViewed(ctx context.Context) int64
	SetLastViewed(ctx context.Context) error
}

// KeyLister lists every page a store holds state for.
type KeyLister interface {
	Keys() ([]string, error)
}

// CacheCmd handles page cache operations.
type CacheCmd struct {
	state PageState
	keys  KeyLister
}

// CacheShowInput holds input for showing the page cache.
type CacheShowInput struct {
	Output string
}

// Show prints the cached state of the current page.
func (c CacheCmd) Show(ctx context.Context, in CacheShowInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	cache := c.state.GetPageCache(ctx)
	if in.Output == "json" {
		return util.PrintPrettyJSON(cache)
	}

	commit := "-"
	if n := c.state.GetCachedCommitNumber(ctx); n > 0 {
		commit = strconv.FormatInt(n, 10)
	}
	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Last Viewed", util.FormatUnixMilli(c.state.GetLastViewed(ctx))})
	rows = append(rows, []string{"Commit", commit})
	PrintTableNoPad(rows, true)

	files := c.state.GetCachedFiles(ctx)
	if len(files) == 0 {
		pterm.Info.Println("No file visibility recorded")
		return nil
	}
	ids := lo.Keys(files)
	sort.Strings(ids)
	fileRows := pterm.TableData{{"File", "Visible"}}
	for _, id := range ids {
		fileRows = append(fileRows, []string{id, strconv.FormatBool(files[id])})
	}
	PrintTableNoPad(fileRows, true)
	return nil
}

// List prints every page URL with stored state.
func (c CacheCmd) List(ctx context.Context) error {
	if c.keys == nil {
		return fmt.Errorf("listing pages is only supported for the cache file")
	}
	keys, err := c.keys.Keys()
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	if len(keys) == 0 {
		pterm.Info.Println("No pages cached")
		return nil
	}
	rows := pterm.TableData{{"Page"}}
	for _, k := range keys {
		rows = append(rows, []string{k})
	}
	PrintTableNoPad(rows, true)
	return nil
}

// Reset clears the current page's cache.
func (c CacheCmd) Reset(ctx context.Context) error {
	if err := c.state.ResetCacheForPage(ctx); err != nil {
		return err
	}
	pterm.Success.Println("Cleared page cache")
	return nil
}

// CacheSetFileInput holds input for recording a file's visibility.
type CacheSetFileInput struct {
	FileID  string
	Visible bool
}

// SetFile records whether a file's diff is shown.
func (c CacheCmd) SetFile(ctx context.Context, in CacheSetFileInput) error {
	if err := c.state.SetFileInCache(ctx, in.FileID, in.Visible); err != nil {
		return err
	}
	pterm.Success.Printf("Recorded %s as %s\n", in.FileID, visibilityWord(in.Visible))
	return nil
}

// Touch records now as the page's last-viewed time.
func (c CacheCmd) Touch(ctx context.Context) error {
	if err := c.state.SetLastViewed(ctx); err != nil {
		return err
	}
	pterm.Success.Printf("Marked page viewed at %s\n", util.FormatUnixMilli(c.state.GetLastViewed(ctx)))
	return nil
}

// CacheSetCommitInput holds input for recording the reviewed commit count.
type CacheSetCommitInput struct {
	Number int64
}

// SetCommit records the commit count seen on the last review.
func (c CacheCmd) SetCommit(ctx context.Context, in CacheSetCommitInput) error {
	if in.Number <= 0 {
		return fmt.Errorf("commit number must be positive, got %d", in.Number)
	}
	if err := c.state.SetCachedCommitNumber(ctx, in.Number); err != nil {
		return err
	}
	pterm.Success.Printf("Recorded commit %d\n", in.Number)
	return nil
}

func visibilityWord(visible bool) string {
	if visible {
		return "visible"
	}
	return "hidden"
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and edit the cached state of a pull request page",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the page's cached state",
	Args:  cobra.NoArgs,
	RunE:  runCacheShow,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pages with cached state",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the page's cached state",
	Args:  cobra.NoArgs,
	RunE:  runCacheReset,
}

var cacheSetFileCmd = &cobra.Command{
	Use:     "set-file <file-id> <true|false>",
	Short:   "Record whether a file's diff is visible",
	Example: `  reviewkit cache set-file diff-4f2a false --url https://github.com/o/r/pull/7`,
	Args:    cobra.ExactArgs(2),
	RunE:    runCacheSetFile,
}

var cacheTouchCmd = &cobra.Command{
	Use:   "touch",
	Short: "Record now as the page's last-viewed time",
	Args:  cobra.NoArgs,
	RunE:  runCacheTouch,
}

var cacheSetCommitCmd = &cobra.Command{
	Use:   "set-commit <n>",
	Short: "Record the number of commits seen on the last review",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheSetCommit,
}

func init() {
	cacheShowCmd.Flags().StringP("output", "o", "", "Output format: json for the raw cache")

	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheResetCmd)
	cacheCmd.AddCommand(cacheSetFileCmd)
	cacheCmd.AddCommand(cacheTouchCmd)
	cacheCmd.AddCommand(cacheSetCommitCmd)
	rootCmd.AddCommand(cacheCmd)
}

func newCacheCmd(cmd *cobra.Command, needURL bool) (CacheCmd, error) {
	store, url, _, err := resolveStore(cmd)
	if err != nil {
		return CacheCmd{}, err
	}
	c := CacheCmd{}
	if lister, ok := store.(KeyLister); ok {
		c.keys = lister
	}
	if needURL {
		if err := requireURL(url); err != nil {
			return CacheCmd{}, err
		}
		c.state = pagestate.New(store, url)
	}
	return c, nil
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	c, err := newCacheCmd(cmd, true)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	return c.Show(cmd.Context(), CacheShowInput{Output: output})
}

func runCacheList(cmd *cobra.Command, args []string) error {
	c, err := newCacheCmd(cmd, false)
	if err != nil {
		return err
	}
	return c.List(cmd.Context())
}

func runCacheReset(cmd *cobra.Command, args []string) error {
	c, err := newCacheCmd(cmd, true)
	if err != nil {
		return err
	}
	return c.Reset(cmd.Context())
}

func runCacheSetFile(cmd *cobra.Command, args []string) error {
	visible, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("invalid visibility %q: use true or false", args[1])
	}
	c, err := newCacheCmd(cmd, true)
	if err != nil {
		return err
	}
	return c.SetFile(cmd.Context(), CacheSetFileInput{FileID: args[0], Visible: visible})
}

func runCacheTouch(cmd *cobra.Command, args []string) error {
	c, err := newCacheCmd(cmd, true)
	if err != nil {
		return err
	}
	return c.Touch(cmd.Context())
}

func runCacheSetCommit(cmd *cobra.Command, args []string) error {
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid commit number %q", args[0])
	}
	c, err := newCacheCmd(cmd, true)
	if err != nil {
		return err
	}
	return c.SetCommit(cmd.Context(), CacheSetCommitInput{Number: n})
}
