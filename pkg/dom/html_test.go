package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html><body>
<div id="diff-1" class="file">
  <div class="file-header" data-path="src/app.js"></div>
  <div class="file-actions"><span class="label">actions</span></div>
  <div class="data">diff one</div>
</div>
<div id="diff-2" class="file">
  <div class="file-header" data-path="README"></div>
  <div class="file-actions"></div>
  <div class="render-wrapper" style="color: red; display: none">diff two</div>
</div>
<p><span class="commit-ref">feature/x</span></p>
</body></html>`

func parseSample(t *testing.T) *HTMLDocument {
	t.Helper()
	doc, err := ParseHTML(strings.NewReader(samplePage))
	require.NoError(t, err)
	return doc
}

func TestFindAndClosest(t *testing.T) {
	doc := parseSample(t)

	files := doc.Find("div[id^='diff-']")
	require.Len(t, files, 2)

	id, ok := files[0].Attr("id")
	assert.True(t, ok)
	assert.Equal(t, "diff-1", id)

	label := files[0].Find("span.label")
	require.Len(t, label, 1)
	container := label[0].Closest("div[id^='diff-']")
	require.NotNil(t, container)
	assert.Same(t, files[0], container)

	assert.Nil(t, doc.FindOne("p").Closest("div[id^='diff-']"))
}

func TestFindReturnsStableElements(t *testing.T) {
	doc := parseSample(t)

	first := doc.Find("div.data")
	second := doc.Find("div.data")
	require.Len(t, first, 1)
	assert.Same(t, first[0], second[0])
}

func TestVisibility(t *testing.T) {
	doc := parseSample(t)

	visible := doc.FindOne("div.data")
	hidden := doc.FindOne("div.render-wrapper")

	assert.True(t, visible.Visible())
	assert.False(t, hidden.Visible())

	visible.Hide(0)
	assert.False(t, visible.Visible())

	hidden.Show(0)
	assert.True(t, hidden.Visible())
	style, _ := hidden.Attr("style")
	assert.Equal(t, "color: red;", style)

	visible.Show(0)
	_, hasStyle := visible.Attr("style")
	assert.False(t, hasStyle)
}

func TestHiddenAttribute(t *testing.T) {
	doc, err := ParseHTML(strings.NewReader(`<div class="x" hidden>hi</div>`))
	require.NoError(t, err)

	el := doc.FindOne("div.x")
	assert.False(t, el.Visible())
	el.Show(0)
	assert.True(t, el.Visible())
}

func TestVisibilityFollowsAncestors(t *testing.T) {
	doc, err := ParseHTML(strings.NewReader(
		`<div id="outer" style="display: none"><section hidden><p class="x">hi</p></section></div>`))
	require.NoError(t, err)

	outer := doc.FindOne("#outer")
	section := doc.FindOne("section")
	p := doc.FindOne("p.x")
	assert.False(t, p.Visible())

	outer.Show(0)
	assert.False(t, p.Visible(), "still inside a hidden section")

	section.Show(0)
	assert.True(t, p.Visible())

	outer.Hide(0)
	assert.False(t, section.Visible())
	assert.False(t, p.Visible())
}

func TestCreateAppendAndRender(t *testing.T) {
	doc := parseSample(t)

	bar := doc.FindOne("#diff-2 div.file-actions")
	require.NotNil(t, bar)

	a := doc.CreateElement("a")
	a.SetAttr("id", "toggle")
	a.AddClass("btn-octicon tooltipped")
	a.AddClass("tooltipped")
	a.SetText("<eye>")
	bar.Append(a)

	require.Len(t, bar.Find("#toggle"), 1)
	class, _ := a.Attr("class")
	assert.Equal(t, "btn-octicon tooltipped", class)

	out, err := doc.OuterHTML(bar)
	require.NoError(t, err)
	assert.Contains(t, out, `<a id="toggle" class="btn-octicon tooltipped">&lt;eye&gt;</a>`)

	var sb strings.Builder
	require.NoError(t, doc.Render(&sb))
	assert.Contains(t, sb.String(), `id="toggle"`)
}

func TestWrapAttachedElement(t *testing.T) {
	doc := parseSample(t)

	span := doc.FindOne("span.commit-ref")
	link := doc.CreateElement("a")
	link.SetAttr("href", "https://example.com")
	span.Wrap(link)

	out, err := doc.OuterHTML(doc.FindOne("p"))
	require.NoError(t, err)
	assert.Equal(t, `<p><a href="https://example.com"><span class="commit-ref">feature/x</span></a></p>`, out)
	assert.Same(t, link, span.Closest("a"))
}

func TestWrapDetachedElement(t *testing.T) {
	doc := parseSample(t)

	span := doc.CreateElement("span")
	span.SetText("main")
	link := doc.CreateElement("a")
	span.Wrap(link)

	out, err := doc.OuterHTML(link)
	require.NoError(t, err)
	assert.Equal(t, `<a><span>main</span></a>`, out)
}

func TestClickBubbles(t *testing.T) {
	doc := parseSample(t)

	container := doc.FindOne("#diff-1")
	bar := doc.FindOne("#diff-1 div.file-actions")
	label := doc.FindOne("#diff-1 span.label")

	var order []string
	var target Element
	container.OnClick(func(ev Event) { order = append(order, "container") })
	bar.OnClick(func(ev Event) {
		order = append(order, "bar")
		target = ev.Target()
	})

	doc.Click(label)
	assert.Equal(t, []string{"bar", "container"}, order)
	assert.Same(t, label, target)
}

func TestRemove(t *testing.T) {
	doc := parseSample(t)

	label := doc.FindOne("#diff-1 span.label")
	called := false
	label.OnClick(func(ev Event) { called = true })

	label.Remove()
	assert.Nil(t, doc.FindOne("#diff-1 span.label"))

	doc.Click(label)
	assert.False(t, called)
}

func TestStyleProperty(t *testing.T) {
	tests := []struct {
		style string
		want  string
		found bool
	}{
		{"display:none", "none", true},
		{"color: red; DISPLAY : None ;", "none", true},
		{"color: red", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			got, found := styleProperty(tt.style, "display")
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}
