package pagestate

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kernel/reviewkit/pkg/dom"
)

// Selectors and markup used on the review page.
const (
	DiffContainerSelector = "div[id^='diff-']"
	ActionBarSelector     = "div.file-actions"
	ContentSelector       = "div.data, div.render-wrapper"
	ToggleSelector        = "#toggle"
	FileHeaderSelector    = ".file-header"

	PathAttr      = "data-path"
	ExtensionAttr = "data-extension"

	ToggleID          = "toggle"
	ToggleClass       = "btn-octicon tooltipped tooltipped-nw"
	ToggleLabel       = "Toggle this file"
	BranchAnchorClass = "branch-anchor-tag"
	MenuItemClass     = "select-menu-item js-navigation-item js-navigation-open"

	// ToggleTransition is the show/hide animation length for a diff.
	ToggleTransition = 350 * time.Millisecond
)

// KeyIDFromEvent returns the id of the diff container the event happened in,
// or "" when the target is outside any diff.
func KeyIDFromEvent(ev dom.Event) string {
	target := ev.Target()
	if target == nil {
		return ""
	}
	container := target.Closest(DiffContainerSelector)
	if container == nil {
		return ""
	}
	id, _ := container.Attr("id")
	return id
}

// AddToggleButton adds a show/hide control to a diff container's action bar
// and returns the container's content region. Clicking the control toggles the
// content and records the new state in the page cache. Calling it again on the
// same container only returns the content region.
func (h *Helper) AddToggleButton(ctx context.Context, container dom.Element) dom.Element {
	content := first(container.Find(ContentSelector))
	bar := first(container.Find(ActionBarSelector))
	if bar == nil {
		return content
	}
	if len(bar.Find(ToggleSelector)) > 0 {
		return content
	}

	doc := container.Document()
	button := doc.CreateElement("a")
	button.SetAttr("id", ToggleID)
	button.AddClass(ToggleClass)
	button.OnClick(func(ev dom.Event) {
		if content == nil {
			return
		}
		visible := ToggleVisibility(content)
		if err := h.SetFileInCache(ctx, KeyIDFromEvent(ev), visible); err != nil {
			h.onError(fmt.Errorf("failed to record visibility: %w", err))
		}
	})
	bar.Append(button)
	button.SetAttr("aria-label", ToggleLabel)

	icon := doc.CreateElement("span")
	icon.AddClass("octicon octicon-eye")
	button.Append(icon)

	return content
}

// ToggleVisibility flips content between shown and hidden and returns the new
// state: true when it is now visible.
func ToggleVisibility(content dom.Element) bool {
	if content.Visible() {
		content.Hide(ToggleTransition)
		return false
	}
	content.Show(ToggleTransition)
	return true
}

// BranchURL builds the tree URL for branch from a pull request page URL.
func BranchURL(pageURL, branch string) string {
	idx := strings.Index(pageURL, "pull")
	if idx < 0 {
		// Everything but the last character.
		_, size := utf8.DecodeLastRuneInString(pageURL)
		idx = len(pageURL) - size
	}
	return pageURL[:idx] + "tree/" + branch
}

// BranchSpanToAnchor wraps the element holding a branch name in a link to
// that branch's tree and returns the link.
func (h *Helper) BranchSpanToAnchor(ctx context.Context, span dom.Element) (dom.Element, error) {
	pageURL, err := h.url.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve page url: %w", err)
	}
	anchor := span.Document().CreateElement("a")
	anchor.AddClass(BranchAnchorClass)
	anchor.SetAttr("href", BranchURL(pageURL, span.Text()))
	span.Wrap(anchor)
	return anchor, nil
}

// ExtensionFromFileContainer returns the extension of the file shown in the
// container. A path without a dot is returned whole.
func ExtensionFromFileContainer(container dom.Element) string {
	var path string
	if header := first(container.Find(FileHeaderSelector)); header != nil {
		path, _ = header.Attr(PathAttr)
	}
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

// FilesByExtension groups diff containers by file extension. Extensions keep
// the order in which they were first seen.
type FilesByExtension struct {
	order []string
	files map[string][]dom.Element
}

// GroupFilesByExtension groups containers, preserving their order.
func GroupFilesByExtension(containers []dom.Element) *FilesByExtension {
	g := &FilesByExtension{files: make(map[string][]dom.Element)}
	for _, c := range containers {
		ext := ExtensionFromFileContainer(c)
		if _, ok := g.files[ext]; !ok {
			g.order = append(g.order, ext)
		}
		g.files[ext] = append(g.files[ext], c)
	}
	return g
}

// Extensions returns the extensions in first-seen order.
func (g *FilesByExtension) Extensions() []string {
	return slices.Clone(g.order)
}

// Files returns the containers for ext.
func (g *FilesByExtension) Files(ext string) []dom.Element {
	return g.files[ext]
}

// Len returns the number of distinct extensions.
func (g *FilesByExtension) Len() int {
	return len(g.order)
}

// AppendListItemsToMenu adds one selectable row per extension to menu and
// returns menu.
func AppendListItemsToMenu(groups *FilesByExtension, menu dom.Element) dom.Element {
	doc := menu.Document()
	for _, ext := range groups.Extensions() {
		row := doc.CreateElement("div")
		row.AddClass(MenuItemClass)
		row.SetAttr(ExtensionAttr, ext)
		row.SetAttr("rel", "nofollow")

		icon := doc.CreateElement("span")
		icon.SetAttr("aria-hidden", "true")
		icon.AddClass("octicon octicon-check select-menu-item-icon")
		row.Append(icon)

		label := doc.CreateElement("span")
		label.AddClass("select-menu-item-text css-truncate-target")
		label.SetAttr("title", ext)
		label.SetText(ext)
		row.Append(label)

		menu.Append(row)
	}
	return menu
}

// ToggleExtension toggles the content of every file with extension ext and
// returns the new visibility of each, in order.
func ToggleExtension(groups *FilesByExtension, ext string) []bool {
	var states []bool
	for _, c := range groups.Files(ext) {
		content := first(c.Find(ContentSelector))
		if content == nil {
			continue
		}
		states = append(states, ToggleVisibility(content))
	}
	return states
}

func first(els []dom.Element) dom.Element {
	if len(els) == 0 {
		return nil
	}
	return els[0]
}
