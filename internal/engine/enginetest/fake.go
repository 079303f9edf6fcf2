// Package enginetest provides an in-memory rendering engine for tests.
package enginetest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mrlokans/epubreader/internal/engine"
)

// Engine is a scriptable engine.Engine. Every Load returns a new Document
// built from the fields below.
type Engine struct {
	mu sync.Mutex

	LoadErr    error
	Meta       engine.Metadata
	CoverURI   string
	Nav        []engine.NavItem
	Hits       []engine.SearchHit
	Sections   map[string]string // CFI prefix -> section href
	Frame      engine.Rect
	Ranges     map[string]engine.Range
	Text       string
	StartCFI   string
	Loaded     [][]byte
	Documents  []*Document
	Renditions []*Rendition
}

// New returns an engine with a single-section book.
func New() *Engine {
	return &Engine{
		Meta:     engine.Metadata{Title: "Untitled", Author: "Unknown"},
		StartCFI: "epubcfi(/6/2!/4/2)",
		Ranges:   map[string]engine.Range{},
		Sections: map[string]string{},
	}
}

func (e *Engine) Load(_ context.Context, content []byte) (engine.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.LoadErr != nil {
		return nil, e.LoadErr
	}
	e.Loaded = append(e.Loaded, content)
	doc := &Document{engine: e}
	e.Documents = append(e.Documents, doc)
	return doc, nil
}

// LastRendition returns the most recently rendered rendition.
func (e *Engine) LastRendition() *Rendition {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Renditions) == 0 {
		return nil
	}
	return e.Renditions[len(e.Renditions)-1]
}

// Document is a loaded fake document.
type Document struct {
	engine    *Engine
	mu        sync.Mutex
	destroyed bool
}

func (d *Document) RenderTo(_ context.Context, opts engine.RenderOptions) (engine.Rendition, error) {
	r := &Rendition{
		engine:      d.engine,
		Options:     opts,
		events:      make(chan engine.Event, 16),
		themes:      &Themes{Registered: map[string]engine.StyleRules{}},
		annotations: &Annotations{},
	}
	d.engine.mu.Lock()
	d.engine.Renditions = append(d.engine.Renditions, r)
	d.engine.mu.Unlock()
	return r, nil
}

func (d *Document) Navigation(context.Context) ([]engine.NavItem, error) {
	return d.engine.Nav, nil
}

func (d *Document) Find(_ context.Context, query string) ([]engine.SearchHit, error) {
	if query == "" {
		return nil, nil
	}
	return d.engine.Hits, nil
}

func (d *Document) SectionHref(cfi string) (string, bool) {
	for prefix, href := range d.engine.Sections {
		if strings.HasPrefix(cfi, prefix) {
			return href, true
		}
	}
	return "", false
}

func (d *Document) Metadata(context.Context) (engine.Metadata, error) {
	return d.engine.Meta, nil
}

func (d *Document) Cover(context.Context) (string, error) {
	return d.engine.CoverURI, nil
}

func (d *Document) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (d *Document) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// Rendition is a fake rendition that records what it was asked to do.
type Rendition struct {
	engine  *Engine
	Options engine.RenderOptions

	mu        sync.Mutex
	displayed []string
	location  engine.Location
	page      int
	destroyed bool

	events      chan engine.Event
	closeOnce   sync.Once
	themes      *Themes
	annotations *Annotations
}

func (r *Rendition) Display(_ context.Context, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displayed = append(r.displayed, target)
	if target == "" {
		target = r.engine.StartCFI
	}
	r.page = 1
	r.location = engine.Location{CFI: target, Page: r.page}
	return nil
}

func (r *Rendition) Next(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.page++
	r.location.Page = r.page
	return nil
}

func (r *Rendition) Prev(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.page > 1 {
		r.page--
	}
	r.location.Page = r.page
	return nil
}

func (r *Rendition) CurrentLocation() (engine.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location, nil
}

// SetLocation moves the fake to loc without emitting an event.
func (r *Rendition) SetLocation(loc engine.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.location = loc
	r.page = loc.Page
}

func (r *Rendition) GetRange(cfiRange string) (engine.Range, error) {
	rng, ok := r.engine.Ranges[cfiRange]
	if !ok {
		return engine.Range{}, errors.New("range not found")
	}
	return rng, nil
}

func (r *Rendition) FrameRect() (engine.Rect, error) {
	return r.engine.Frame, nil
}

func (r *Rendition) PageText() (string, error) {
	return r.engine.Text, nil
}

func (r *Rendition) Events() <-chan engine.Event {
	return r.events
}

// Emit delivers an event to the rendition's subscribers.
func (r *Rendition) Emit(ev engine.Event) {
	r.events <- ev
}

func (r *Rendition) Themes() engine.Themes {
	return r.themes
}

func (r *Rendition) Annotations() engine.Annotations {
	return r.annotations
}

// FakeThemes exposes the recorded styling calls.
func (r *Rendition) FakeThemes() *Themes {
	return r.themes
}

// FakeAnnotations exposes the recorded annotations.
func (r *Rendition) FakeAnnotations() *Annotations {
	return r.annotations
}

// Displayed lists every Display target in call order.
func (r *Rendition) Displayed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.displayed...)
}

func (r *Rendition) Destroy() {
	r.mu.Lock()
	r.destroyed = true
	r.mu.Unlock()
	r.closeOnce.Do(func() { close(r.events) })
}

// Destroyed reports whether Destroy was called.
func (r *Rendition) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// Themes records styling calls.
type Themes struct {
	mu         sync.Mutex
	Registered map[string]engine.StyleRules
	Selected   string
	Size       string
	Family     string
	Calls      int
}

func (t *Themes) Register(name string, rules engine.StyleRules) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Registered[name] = rules
	t.Calls++
}

func (t *Themes) Select(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Selected = name
	t.Calls++
}

func (t *Themes) FontSize(size string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Size = size
	t.Calls++
}

func (t *Themes) Font(family string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Family = family
	t.Calls++
}

// Snapshot returns the current styling state.
func (t *Themes) Snapshot() (selected, size, family string, registered map[string]engine.StyleRules) {
	t.mu.Lock()
	defer t.mu.Unlock()
	copied := make(map[string]engine.StyleRules, len(t.Registered))
	for k, v := range t.Registered {
		copied[k] = v
	}
	return t.Selected, t.Size, t.Family, copied
}

// Mark is a recorded annotation.
type Mark struct {
	Kind      string
	CFIRange  string
	Data      map[string]string
	ClassName string
	Style     map[string]string
}

// Annotations records marks.
type Annotations struct {
	mu    sync.Mutex
	marks []Mark
}

func (a *Annotations) Add(kind, cfiRange string, data map[string]string, className string, style map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.marks = append(a.marks, Mark{Kind: kind, CFIRange: cfiRange, Data: data, ClassName: className, Style: style})
	return nil
}

func (a *Annotations) Remove(cfiRange, kind string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.marks[:0]
	for _, m := range a.marks {
		if m.CFIRange == cfiRange && m.Kind == kind {
			continue
		}
		kept = append(kept, m)
	}
	a.marks = kept
}

// Marks returns a copy of the current marks.
func (a *Annotations) Marks() []Mark {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Mark(nil), a.marks...)
}
