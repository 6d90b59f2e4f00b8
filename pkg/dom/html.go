package dom

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLDocument is a parsed HTML page, typically a saved snapshot of a review
// page. It is not safe for concurrent use.
type HTMLDocument struct {
	doc      *goquery.Document
	elements map[*html.Node]*htmlElement
	handlers map[*html.Node][]func(Event)
}

// ParseHTML parses a full HTML page.
func ParseHTML(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &HTMLDocument{
		doc:      doc,
		elements: make(map[*html.Node]*htmlElement),
		handlers: make(map[*html.Node][]func(Event)),
	}, nil
}

// Root returns the document node.
func (d *HTMLDocument) Root() Element {
	return d.wrap(d.doc.Nodes[0])
}

// Find returns every element in the document matching selector.
func (d *HTMLDocument) Find(selector string) []Element {
	return d.wrapAll(d.doc.Find(selector).Nodes)
}

// FindOne returns the first element matching selector, or nil.
func (d *HTMLDocument) FindOne(selector string) Element {
	nodes := d.doc.Find(selector).First().Nodes
	if len(nodes) == 0 {
		return nil
	}
	return d.wrap(nodes[0])
}

// CreateElement returns a new detached element.
func (d *HTMLDocument) CreateElement(tag string) Element {
	tag = strings.ToLower(tag)
	return d.wrap(&html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	})
}

// Click dispatches a click on target. Handlers run on the target first and
// then on each ancestor.
func (d *HTMLDocument) Click(target Element) {
	el, ok := target.(*htmlElement)
	if !ok || el.doc != d {
		return
	}
	ev := clickEvent{target: el}
	for n := el.node; n != nil; n = n.Parent {
		for _, fn := range d.handlers[n] {
			fn(ev)
		}
	}
}

// Render writes the document back out as HTML.
func (d *HTMLDocument) Render(w io.Writer) error {
	return html.Render(w, d.doc.Nodes[0])
}

// OuterHTML renders a single element.
func (d *HTMLDocument) OuterHTML(el Element) (string, error) {
	e, ok := el.(*htmlElement)
	if !ok {
		return "", fmt.Errorf("element does not belong to an html document")
	}
	var sb strings.Builder
	if err := html.Render(&sb, e.node); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (d *HTMLDocument) wrap(n *html.Node) *htmlElement {
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &htmlElement{doc: d, node: n}
	d.elements[n] = el
	return el
}

func (d *HTMLDocument) wrapAll(nodes []*html.Node) []Element {
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out
}

type clickEvent struct {
	target Element
}

func (e clickEvent) Target() Element { return e.target }

type htmlElement struct {
	doc  *HTMLDocument
	node *html.Node
}

func (e *htmlElement) selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(e.node).Selection
}

func (e *htmlElement) Find(selector string) []Element {
	return e.doc.wrapAll(e.selection().Find(selector).Nodes)
}

func (e *htmlElement) Closest(selector string) Element {
	nodes := e.selection().Closest(selector).Nodes
	if len(nodes) == 0 {
		return nil
	}
	return e.doc.wrap(nodes[0])
}

func (e *htmlElement) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *htmlElement) SetAttr(name, value string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

func (e *htmlElement) removeAttr(name string) {
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		attrs = append(attrs, a)
	}
	e.node.Attr = attrs
}

func (e *htmlElement) AddClass(class string) {
	current, _ := e.Attr("class")
	fields := strings.Fields(current)
	for _, c := range strings.Fields(class) {
		found := false
		for _, f := range fields {
			if f == c {
				found = true
				break
			}
		}
		if !found {
			fields = append(fields, c)
		}
	}
	e.SetAttr("class", strings.Join(fields, " "))
}

func (e *htmlElement) Text() string {
	return e.selection().Text()
}

func (e *htmlElement) SetText(text string) {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Visible is false when the element or any ancestor carries the hidden
// attribute or an inline display:none. Stylesheets are not consulted.
func (e *htmlElement) Visible() bool {
	for n := e.node; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && hiddenNode(n) {
			return false
		}
	}
	return true
}

func hiddenNode(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Namespace != "" {
			continue
		}
		switch a.Key {
		case "hidden":
			return true
		case "style":
			if display, ok := styleProperty(a.Val, "display"); ok && display == "none" {
				return true
			}
		}
	}
	return false
}

// Show and Hide ignore d: a static document has no frames to animate.
func (e *htmlElement) Show(d time.Duration) {
	e.removeAttr("hidden")
	style, _ := e.Attr("style")
	style = setStyleProperty(style, "display", "")
	if style == "" {
		e.removeAttr("style")
		return
	}
	e.SetAttr("style", style)
}

func (e *htmlElement) Hide(d time.Duration) {
	style, _ := e.Attr("style")
	e.SetAttr("style", setStyleProperty(style, "display", "none"))
}

func (e *htmlElement) OnClick(fn func(Event)) {
	e.doc.handlers[e.node] = append(e.doc.handlers[e.node], fn)
}

func (e *htmlElement) Append(child Element) {
	c, ok := child.(*htmlElement)
	if !ok {
		return
	}
	detach(c.node)
	e.node.AppendChild(c.node)
}

func (e *htmlElement) Wrap(wrapper Element) {
	w, ok := wrapper.(*htmlElement)
	if !ok {
		return
	}
	detach(w.node)
	if parent := e.node.Parent; parent != nil {
		parent.InsertBefore(w.node, e.node)
		parent.RemoveChild(e.node)
	}
	w.node.AppendChild(e.node)
}

func (e *htmlElement) Remove() {
	detach(e.node)
	delete(e.doc.handlers, e.node)
}

func (e *htmlElement) Document() Document {
	return e.doc
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// styleProperty reads one declaration from an inline style attribute.
func styleProperty(style, name string) (string, bool) {
	for _, decl := range strings.Split(style, ";") {
		key, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), name) {
			return strings.ToLower(strings.TrimSpace(value)), true
		}
	}
	return "", false
}

// setStyleProperty replaces or removes (empty value) one declaration.
func setStyleProperty(style, name, value string) string {
	var decls []string
	for _, decl := range strings.Split(style, ";") {
		if strings.TrimSpace(decl) == "" {
			continue
		}
		key, _, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(key), name) {
			continue
		}
		decls = append(decls, strings.TrimSpace(decl))
	}
	if value != "" {
		decls = append(decls, name+": "+value)
	}
	if len(decls) == 0 {
		return ""
	}
	return strings.Join(decls, "; ") + ";"
}
