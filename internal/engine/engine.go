// Package engine describes the external EPUB rendering engine the reader
// drives. The engine owns container parsing, pagination, CFI addressing,
// in-book search and text extraction; this package only fixes the contract
// and the record types crossing it.
package engine

import (
	"context"
)

// Engine loads EPUB payloads into documents.
type Engine interface {
	Load(ctx context.Context, content []byte) (Document, error)
}

// Document is a loaded EPUB.
type Document interface {
	// RenderTo lays the document out into a new rendition.
	RenderTo(ctx context.Context, opts RenderOptions) (Rendition, error)
	// Navigation returns the table of contents as reported by the document.
	// Entries are not validated; see ValidateNavigation.
	Navigation(ctx context.Context) ([]NavItem, error)
	// Find searches the whole document.
	Find(ctx context.Context, query string) ([]SearchHit, error)
	// SectionHref resolves a CFI to the href of its spine section.
	SectionHref(cfi string) (string, bool)
	Metadata(ctx context.Context) (Metadata, error)
	// Cover returns the cover image as a data: URI, or "" when there is none.
	Cover(ctx context.Context) (string, error)
	Destroy()
}

// Rendition is a live, paginated view of a document.
type Rendition interface {
	// Display shows target (a CFI or href), or the start of the book when
	// target is empty.
	Display(ctx context.Context, target string) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	CurrentLocation() (Location, error)
	// GetRange resolves a CFI range to its text and on-screen rectangle
	// relative to the rendition frame.
	GetRange(cfiRange string) (Range, error)
	// FrameRect is the position of the rendition frame in the view.
	FrameRect() (Rect, error)
	// PageText returns the text currently on screen.
	PageText() (string, error)
	// Events delivers relocated, selected, click and markClicked events.
	// The channel is closed when the rendition is destroyed.
	Events() <-chan Event
	Themes() Themes
	Annotations() Annotations
	Destroy()
}

// Themes is the rendition styling mechanism.
type Themes interface {
	Register(name string, rules StyleRules)
	Select(name string)
	FontSize(size string)
	Font(family string)
}

// Annotations decorates ranges of the rendition. Marks added here are
// redrawn by the engine every time their page is rendered.
type Annotations interface {
	Add(kind, cfiRange string, data map[string]string, className string, style map[string]string) error
	Remove(cfiRange, kind string)
}

// StyleRules maps a CSS selector to its declarations.
type StyleRules map[string]map[string]string

// RenderOptions controls how a document is laid out.
type RenderOptions struct {
	Flow   string
	Width  string
	Height string
}

// DefaultRenderOptions is a paginated layout filling the view.
var DefaultRenderOptions = RenderOptions{Flow: "paginated", Width: "100%", Height: "100%"}

// Location is the start of what the rendition currently displays.
type Location struct {
	CFI  string `json:"cfi"`
	Href string `json:"href,omitempty"`
	// Page is the displayed page within the section, 0 when unknown.
	Page int `json:"page,omitempty"`
}

// Rect is an on-screen rectangle.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Range is a resolved CFI range.
type Range struct {
	Text string
	Rect Rect
}

// Metadata is the subset of package metadata the library keeps.
type Metadata struct {
	Title  string
	Author string
}

// EventKind identifies a rendition event.
type EventKind string

const (
	EventRelocated   EventKind = "relocated"
	EventSelected    EventKind = "selected"
	EventClick       EventKind = "click"
	EventMarkClicked EventKind = "markClicked"
)

// Event is emitted by a rendition.
type Event struct {
	Kind EventKind
	// Location is set for relocated events.
	Location Location
	// CFIRange is set for selected and markClicked events.
	CFIRange string
	// Data carries the annotation data for markClicked events.
	Data map[string]string
}
