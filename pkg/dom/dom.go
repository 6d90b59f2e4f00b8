// Package dom describes the slice of a browser DOM that the review page
// helpers rely on. Implementations include an HTML snapshot backed by goquery
// and whatever a caller wires to a live page.
package dom

import "time"

// Element is a single node in the page.
type Element interface {
	// Find returns the descendants matching a CSS selector in document order.
	Find(selector string) []Element

	// Closest returns the element itself or its nearest ancestor matching the
	// selector, or nil when nothing matches.
	Closest(selector string) Element

	Attr(name string) (string, bool)
	SetAttr(name, value string)
	AddClass(class string)

	// Text returns the combined text content of the element.
	Text() string
	SetText(text string)

	// Visible reports whether the element is currently shown, which requires
	// every ancestor to be shown too.
	Visible() bool
	// Show and Hide animate the element over d.
	Show(d time.Duration)
	Hide(d time.Duration)

	// OnClick registers fn to run when the element, or any descendant, is clicked.
	OnClick(fn func(Event))

	// Append moves child to the end of this element's children.
	Append(child Element)

	// Wrap puts the element inside wrapper. When the element is attached,
	// wrapper takes its former position.
	Wrap(wrapper Element)

	// Remove detaches the element from its parent.
	Remove()

	// Document returns the document that owns the element.
	Document() Document
}

// Event is a user interaction delivered to a handler.
type Event interface {
	// Target is the element the user actually clicked.
	Target() Element
}

// Document creates new elements.
type Document interface {
	CreateElement(tag string) Element
}
