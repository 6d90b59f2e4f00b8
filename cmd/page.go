package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kernel/reviewkit/pkg/dom"
	"github.com/kernel/reviewkit/pkg/pagestate"
	"github.com/kernel/reviewkit/pkg/storage"
	"github.com/kernel/reviewkit/pkg/util"
	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const (
	menuListSelector = "div.select-menu-list"
	branchSelector   = "span.commit-ref"

	// pageURLMeta records the page URL inside saved snapshots.
	pageURLMeta = "reviewkit:url"
)

// Snapshotter captures the page open in a browser.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*storage.Snapshot, error)
}

// PageCmd applies the page helpers to saved pull request pages.
type PageCmd struct {
	store     pagestate.KeyValueStore
	url       pagestate.URLProvider // nil: fall back to the URL saved in the page
	snapshots Snapshotter
	openURL   func(string) error
}

func loadDocument(path string) (*dom.HTMLDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()
	doc, err := dom.ParseHTML(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

func writeDocument(doc *dom.HTMLDocument, path string) error {
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	return nil
}

// savedPageURL returns the page URL stored in a snapshot, preferring our own
// marker over the og:url that GitHub pages carry.
func savedPageURL(doc *dom.HTMLDocument) string {
	for _, sel := range []string{
		"meta[name='" + pageURLMeta + "']",
		"meta[property='og:url']",
	} {
		if meta := doc.FindOne(sel); meta != nil {
			if content, _ := meta.Attr("content"); content != "" {
				return content
			}
		}
	}
	return ""
}

func (p PageCmd) helperFor(doc *dom.HTMLDocument, opts ...pagestate.Option) (*pagestate.Helper, error) {
	if p.url != nil {
		return pagestate.New(p.store, p.url, opts...), nil
	}
	if u := savedPageURL(doc); u != "" {
		pterm.Debug.Printf("Using page url saved in snapshot: %s\n", u)
		return pagestate.New(p.store, pagestate.StaticURL(u), opts...), nil
	}
	return nil, fmt.Errorf("page url unknown: pass --url or save the page with `reviewkit page snapshot`")
}

func containerIDs(els []dom.Element) []string {
	return lo.Map(els, func(el dom.Element, _ int) string {
		id, _ := el.Attr("id")
		return id
	})
}

// PageExtensionsInput holds input for listing a page's file extensions.
type PageExtensionsInput struct {
	Path string
	Menu bool
}

// Extensions groups the page's diffs by extension.
func (p PageCmd) Extensions(ctx context.Context, in PageExtensionsInput) error {
	doc, err := loadDocument(in.Path)
	if err != nil {
		return err
	}
	groups := pagestate.GroupFilesByExtension(doc.Find(pagestate.DiffContainerSelector))
	if groups.Len() == 0 {
		pterm.Info.Println("No diffs found on the page")
		return nil
	}

	if in.Menu {
		menu := doc.FindOne(menuListSelector)
		if menu == nil {
			menu = doc.CreateElement("div")
			menu.AddClass("select-menu-list")
		}
		pagestate.AppendListItemsToMenu(groups, menu)
		out, err := doc.OuterHTML(menu)
		if err != nil {
			return fmt.Errorf("failed to render menu: %w", err)
		}
		fmt.Println(out)
		return nil
	}

	printHeading(fmt.Sprintf("%d extensions in %s", groups.Len(), filepath.Base(in.Path)))
	rows := pterm.TableData{{"Extension", "Files", "IDs"}}
	for _, ext := range groups.Extensions() {
		files := groups.Files(ext)
		rows = append(rows, []string{
			util.OrDash(ext),
			strconv.Itoa(len(files)),
			strings.Join(containerIDs(files), ", "),
		})
	}
	PrintTableNoPad(rows, true)
	return nil
}

// PageToggleInput holds input for toggling diffs on a saved page.
type PageToggleInput struct {
	Path      string
	FileID    string
	Extension string
	Output    string
}

// Toggle adds toggle controls to every diff, restores the cached visibility,
// flips the requested diffs, and writes the page.
func (p PageCmd) Toggle(ctx context.Context, in PageToggleInput) error {
	if (in.FileID == "") == (in.Extension == "") {
		return fmt.Errorf("specify exactly one of a diff id or --ext")
	}
	doc, err := loadDocument(in.Path)
	if err != nil {
		return err
	}
	var clickErr error
	helper, err := p.helperFor(doc, pagestate.WithErrorHandler(func(err error) {
		clickErr = err
	}))
	if err != nil {
		return err
	}

	containers := doc.Find(pagestate.DiffContainerSelector)
	cached := helper.GetCachedFiles(ctx)
	for _, c := range containers {
		// Controls saved with the page have lost their handlers.
		for _, stale := range c.Find(pagestate.ToggleSelector) {
			stale.Remove()
		}
		content := helper.AddToggleButton(ctx, c)
		id, _ := c.Attr("id")
		if visible, ok := cached[id]; ok && !visible && content != nil {
			content.Hide(0)
		}
	}

	if in.FileID != "" {
		container, ok := lo.Find(containers, func(c dom.Element) bool {
			id, _ := c.Attr("id")
			return id == in.FileID
		})
		if !ok {
			return fmt.Errorf("no diff with id %q on the page", in.FileID)
		}
		toggles := container.Find(pagestate.ToggleSelector)
		if len(toggles) == 0 {
			return fmt.Errorf("diff %q has no action bar to toggle from", in.FileID)
		}
		doc.Click(toggles[0])
		if clickErr != nil {
			return fmt.Errorf("page left unchanged: %w", clickErr)
		}
		pterm.Success.Printf("%s is now %s\n", in.FileID, visibilityWord(helper.GetCachedFiles(ctx)[in.FileID]))
	} else {
		groups := pagestate.GroupFilesByExtension(containers)
		files := groups.Files(in.Extension)
		if len(files) == 0 {
			return fmt.Errorf("no diffs with extension %q on the page", in.Extension)
		}
		states := pagestate.ToggleExtension(groups, in.Extension)
		withContent := lo.Filter(files, func(c dom.Element, _ int) bool {
			return len(c.Find(pagestate.ContentSelector)) > 0
		})
		for i, c := range withContent {
			id, _ := c.Attr("id")
			if err := helper.SetFileInCache(ctx, id, states[i]); err != nil {
				return err
			}
		}
		pterm.Success.Printf("Toggled %d .%s diffs\n", len(states), in.Extension)
	}

	out := in.Output
	if out == "" {
		out = in.Path
	}
	return writeDocument(doc, out)
}

// PageBranchLinkInput holds input for linking branch labels.
type PageBranchLinkInput struct {
	Path     string
	Selector string
	Open     bool
	Output   string
}

// BranchLink wraps branch labels in links to their trees.
func (p PageCmd) BranchLink(ctx context.Context, in PageBranchLinkInput) error {
	selector := in.Selector
	if selector == "" {
		selector = branchSelector
	}
	doc, err := loadDocument(in.Path)
	if err != nil {
		return err
	}
	helper, err := p.helperFor(doc)
	if err != nil {
		return err
	}

	var links []string
	for _, span := range doc.Find(selector) {
		if span.Closest("a."+pagestate.BranchAnchorClass) != nil {
			continue
		}
		anchor, err := helper.BranchSpanToAnchor(ctx, span)
		if err != nil {
			return err
		}
		href, _ := anchor.Attr("href")
		links = append(links, href)
	}
	if len(links) == 0 {
		pterm.Warning.Printf("No unlinked branch labels match %s\n", selector)
		return nil
	}

	rows := pterm.TableData{{"Branch Link"}}
	for _, l := range lo.Uniq(links) {
		rows = append(rows, []string{l})
	}
	PrintTableNoPad(rows, true)

	out := in.Output
	if out == "" {
		out = in.Path
	}
	if err := writeDocument(doc, out); err != nil {
		return err
	}

	if in.Open && p.openURL != nil {
		if err := p.openURL(links[0]); err != nil {
			pterm.Warning.Printf("Could not open browser: %v\n", err)
		}
	}
	return nil
}

// PageScanInput holds input for scanning saved pages.
type PageScanInput struct {
	Dir string
}

// Scan counts diffs per extension across every saved page under a directory.
func (p PageCmd) Scan(ctx context.Context, in PageScanInput) error {
	counts, pages, err := countExtensions(in.Dir)
	if err != nil {
		return err
	}
	if pages == 0 {
		pterm.Info.Printf("No saved pages under %s\n", in.Dir)
		return nil
	}

	entries := lo.Entries(counts)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Key < entries[j].Key
	})

	printHeading(fmt.Sprintf("%d pages scanned", pages))
	rows := pterm.TableData{{"Extension", "Diffs"}}
	for _, e := range entries {
		rows = append(rows, []string{util.OrDash(e.Key), strconv.Itoa(e.Value)})
	}
	PrintTableNoPad(rows, true)
	return nil
}

func countExtensions(dir string) (map[string]int, int, error) {
	counts := map[string]int{}
	pages := 0
	err := util.WalkFiles(dir, util.WalkOptions{Extensions: []string{"html", "htm"}}, func(path, rel string) error {
		doc, err := loadDocument(path)
		if err != nil {
			return err
		}
		groups := pagestate.GroupFilesByExtension(doc.Find(pagestate.DiffContainerSelector))
		pterm.Debug.Printf("%s: %d extensions\n", rel, groups.Len())
		for _, ext := range groups.Extensions() {
			counts[ext] += len(groups.Files(ext))
		}
		pages++
		return nil
	})
	return counts, pages, err
}

// PageSnapshotInput holds input for saving the live page.
type PageSnapshotInput struct {
	Output string
}

// Snapshot saves the HTML of the page open in the browser, recording its URL
// so later commands can find its state.
func (p PageCmd) Snapshot(ctx context.Context, in PageSnapshotInput) error {
	if p.snapshots == nil {
		return fmt.Errorf("snapshot requires --browser")
	}
	snap, err := p.snapshots.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture page: %w", err)
	}
	doc, err := dom.ParseHTML(strings.NewReader(snap.HTML))
	if err != nil {
		return fmt.Errorf("failed to parse captured page: %w", err)
	}
	if head := doc.FindOne("head"); head != nil && snap.URL != "" {
		meta := doc.CreateElement("meta")
		meta.SetAttr("name", pageURLMeta)
		meta.SetAttr("content", snap.URL)
		head.Append(meta)
	}
	if err := writeDocument(doc, in.Output); err != nil {
		return err
	}
	pterm.Success.Printf("Saved %s to %s\n", util.OrDash(snap.URL), in.Output)
	return nil
}

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Apply review helpers to saved pull request pages",
}

var pageExtensionsCmd = &cobra.Command{
	Use:               "extensions <html>",
	Short:             "Group a page's diffs by file extension",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSavedPage,
	RunE:              runPageExtensions,
}

var pageToggleCmd = &cobra.Command{
	Use:   "toggle <html> [diff-id]",
	Short: "Show or hide diffs and remember the choice",
	Example: `  reviewkit page toggle pr.html diff-4f2a
  reviewkit page toggle pr.html --ext lock -w pr-clean.html`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: completeToggleArgs,
	RunE:              runPageToggle,
}

var pageBranchLinkCmd = &cobra.Command{
	Use:               "branch-link <html>",
	Short:             "Turn branch labels into links to the branch tree",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSavedPage,
	RunE:              runPageBranchLink,
}

var pageScanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Count diffs per extension across saved pages",
	Args:  cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveFilterDirs
	},
	RunE: runPageScan,
}

var pageSnapshotCmd = &cobra.Command{
	Use:         "snapshot",
	Short:       "Save the page open in a Kernel browser",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{requiresKernelAnnotation: "true"},
	RunE:        runPageSnapshot,
}

func init() {
	pageExtensionsCmd.Flags().Bool("menu", false, "Print the extension filter menu HTML instead of a table")

	pageToggleCmd.Flags().String("ext", "", "Toggle every diff with this extension")
	pageToggleCmd.Flags().StringP("write", "w", "", "Write the page here instead of in place")
	_ = pageToggleCmd.RegisterFlagCompletionFunc("ext", completePageExtensions)

	pageBranchLinkCmd.Flags().String("selector", branchSelector, "Selector for branch labels")
	pageBranchLinkCmd.Flags().Bool("open", false, "Open the first branch link in the system browser")
	pageBranchLinkCmd.Flags().StringP("write", "w", "", "Write the page here instead of in place")

	pageSnapshotCmd.Flags().StringP("output", "o", "", "File to save the page to")
	_ = pageSnapshotCmd.MarkFlagRequired("output")

	pageCmd.AddCommand(pageExtensionsCmd)
	pageCmd.AddCommand(pageToggleCmd)
	pageCmd.AddCommand(pageBranchLinkCmd)
	pageCmd.AddCommand(pageScanCmd)
	pageCmd.AddCommand(pageSnapshotCmd)
	rootCmd.AddCommand(pageCmd)
}

func newPageCmd(cmd *cobra.Command) (PageCmd, error) {
	store, url, b, err := resolveStore(cmd)
	if err != nil {
		return PageCmd{}, err
	}
	p := PageCmd{store: store, url: url, openURL: browser.OpenURL}
	if b != nil {
		p.snapshots = b
	}
	return p, nil
}

func runPageExtensions(cmd *cobra.Command, args []string) error {
	menu, _ := cmd.Flags().GetBool("menu")
	return PageCmd{}.Extensions(cmd.Context(), PageExtensionsInput{Path: args[0], Menu: menu})
}

func runPageToggle(cmd *cobra.Command, args []string) error {
	p, err := newPageCmd(cmd)
	if err != nil {
		return err
	}
	in := PageToggleInput{Path: args[0]}
	if len(args) > 1 {
		in.FileID = args[1]
	}
	in.Extension, _ = cmd.Flags().GetString("ext")
	in.Output, _ = cmd.Flags().GetString("write")
	return p.Toggle(cmd.Context(), in)
}

func runPageBranchLink(cmd *cobra.Command, args []string) error {
	p, err := newPageCmd(cmd)
	if err != nil {
		return err
	}
	in := PageBranchLinkInput{Path: args[0]}
	in.Selector, _ = cmd.Flags().GetString("selector")
	in.Open, _ = cmd.Flags().GetBool("open")
	in.Output, _ = cmd.Flags().GetString("write")
	return p.BranchLink(cmd.Context(), in)
}

func runPageScan(cmd *cobra.Command, args []string) error {
	return PageCmd{}.Scan(cmd.Context(), PageScanInput{Dir: args[0]})
}

func runPageSnapshot(cmd *cobra.Command, args []string) error {
	p, err := newPageCmd(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	return p.Snapshot(cmd.Context(), PageSnapshotInput{Output: output})
}
