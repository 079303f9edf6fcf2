// Package session binds one open book to a live rendition of the rendering
// engine and keeps the library in step with what the reader does.
//
// A Coordinator moves through Idle → Loading → Ready → Closed. Load failures
// return it to Idle; Close is accepted in any state. Once Ready, rendition
// events and appearance changes are consumed in order by a single loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/epubreader/internal/appearance"
	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/engine"
	"github.com/mrlokans/epubreader/internal/entities"
	"github.com/mrlokans/epubreader/internal/validation"
)

// progressWriteTimeout bounds a single background progress write.
const progressWriteTimeout = 10 * time.Second

// Highlight annotation presentation.
const (
	highlightKind      = "highlight"
	highlightClassName = "hl-default"
	highlightOpacity   = "0.3"
	highlightBlendMode = "multiply"
)

// BookStore is the part of the book repository a session uses.
type BookStore interface {
	Get(ctx context.Context, id string) (*entities.Book, error)
	UpdateProgress(ctx context.Context, id, position string) error
}

// AnnotationStore is the part of an annotation repository a session uses.
type AnnotationStore[T any] interface {
	Add(ctx context.Context, item *T) error
	Get(ctx context.Context, id string) (*T, error)
	ListForBook(ctx context.Context, bookID string) ([]T, error)
	Remove(ctx context.Context, id string) error
}

// Coordinator is a reading session.
type Coordinator struct {
	engine     engine.Engine
	books      BookStore
	highlights AnnotationStore[entities.Highlight]
	bookmarks  AnnotationStore[entities.Bookmark]
	appearance *appearance.State

	now   func() time.Time
	newID func() string

	mu        sync.Mutex
	state     State
	book      *entities.Book
	doc       engine.Document
	rendition engine.Rendition
	toc       []engine.NavItem
	location  engine.Location
	selection *Selection

	stop          chan struct{}
	loopDone      chan struct{}
	unsubscribe   func()
	pendingWrites writeTracker
}

// New creates an idle session. A nil appearance state means defaults.
func New(
	eng engine.Engine,
	books BookStore,
	highlights AnnotationStore[entities.Highlight],
	bookmarks AnnotationStore[entities.Bookmark],
	state *appearance.State,
) *Coordinator {
	if state == nil {
		state = appearance.NewState(appearance.Defaults())
	}
	return &Coordinator{
		engine:     eng,
		books:      books,
		highlights: highlights,
		bookmarks:  bookmarks,
		appearance: state,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Open loads the book into the engine and displays it at the last read
// position, or at the start when none was saved.
func (c *Coordinator) Open(ctx context.Context, bookID string) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateLoading, StateReady:
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = StateLoading
	c.mu.Unlock()

	log.Printf("[SESSION] Opening book %s", bookID)

	loaded, err := c.load(ctx, bookID)
	if err != nil {
		c.mu.Lock()
		if c.state == StateLoading {
			c.state = StateIdle
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.state == StateClosed {
		// Closed while loading; nobody is waiting for this rendition.
		c.mu.Unlock()
		loaded.destroy()
		return ErrClosed
	}

	c.book = loaded.book
	c.doc = loaded.doc
	c.rendition = loaded.rendition
	c.toc = loaded.toc
	c.location = loaded.location
	c.selection = nil
	c.state = StateReady

	updates, unsubscribe := c.appearance.Subscribe()
	c.unsubscribe = unsubscribe
	c.stop = make(chan struct{})
	c.loopDone = make(chan struct{})
	go c.run(loaded.rendition.Events(), updates, c.stop, c.loopDone)
	c.mu.Unlock()

	log.Printf("[SESSION] Book %s ready at %q", bookID, loaded.location.CFI)
	return nil
}

type loadedBook struct {
	book      *entities.Book
	doc       engine.Document
	rendition engine.Rendition
	toc       []engine.NavItem
	location  engine.Location
}

func (l *loadedBook) destroy() {
	if l.rendition != nil {
		l.rendition.Destroy()
	}
	if l.doc != nil {
		l.doc.Destroy()
	}
}

func (c *Coordinator) load(ctx context.Context, bookID string) (_ *loadedBook, err error) {
	book, err := c.books.Get(ctx, bookID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book: %w", err)
	}

	loaded := &loadedBook{book: book}
	defer func() {
		if err != nil {
			loaded.destroy()
		}
	}()

	loaded.doc, err = c.engine.Load(ctx, book.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to load book into engine: %w", err)
	}
	// The engine keeps its own copy; the session only needs the record.
	book.Content = nil

	loaded.rendition, err = loaded.doc.RenderTo(ctx, engine.DefaultRenderOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to render book: %w", err)
	}

	var target string
	if book.LastReadPosition != nil {
		target = *book.LastReadPosition
	}
	if err := loaded.rendition.Display(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to display book: %w", err)
	}

	highlights, err := c.highlights.ListForBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load highlights: %w", err)
	}
	for i := range highlights {
		if err := annotate(loaded.rendition, &highlights[i]); err != nil {
			log.Printf("[SESSION] Failed to restore highlight %s: %v", highlights[i].ID, err)
		}
	}

	nav, err := loaded.doc.Navigation(ctx)
	if err != nil {
		log.Printf("[SESSION] Failed to load table of contents for %s: %v", bookID, err)
	}
	toc, err := engine.ValidateNavigation(nav)
	if err != nil {
		log.Printf("[SESSION] Dropped invalid table of contents entries for %s: %v", bookID, err)
	}
	loaded.toc = toc

	appearance.Apply(loaded.rendition.Themes(), c.appearance.Get())

	loaded.location, err = loaded.rendition.CurrentLocation()
	if err != nil {
		log.Printf("[SESSION] Failed to read initial location: %v", err)
		loaded.location = engine.Location{CFI: target}
	}
	return loaded, nil
}

func (c *Coordinator) run(events <-chan engine.Event, settings <-chan appearance.Settings, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.Handle(ev)
		case s, ok := <-settings:
			if !ok {
				settings = nil
				continue
			}
			if err := c.ApplyAppearance(s); err != nil && !errors.Is(err, ErrNotReady) {
				log.Printf("[SESSION] Failed to apply appearance: %v", err)
			}
		}
	}
}

// Handle processes one rendition event. Events are ignored unless the
// session is Ready.
func (c *Coordinator) Handle(ev engine.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady {
		return
	}

	switch ev.Kind {
	case engine.EventRelocated:
		c.location = ev.Location
		c.saveProgress(c.book.ID, ev.Location.CFI)
	case engine.EventSelected:
		c.selectRange(ev.CFIRange)
	case engine.EventClick:
		c.selection = nil
	case engine.EventMarkClicked:
		log.Printf("[SESSION] Mark clicked at %s (%v)", ev.CFIRange, ev.Data)
	default:
		log.Printf("[SESSION] Ignoring unknown event %q", ev.Kind)
	}
}

// saveProgress persists the position in the background. Failures are logged
// and never reach the reader; writes may land out of order.
func (c *Coordinator) saveProgress(bookID, cfi string) {
	if cfi == "" {
		return
	}
	c.pendingWrites.start()
	go func() {
		defer c.pendingWrites.done()
		ctx, cancel := context.WithTimeout(context.Background(), progressWriteTimeout)
		defer cancel()
		if err := c.books.UpdateProgress(ctx, bookID, cfi); err != nil {
			log.Printf("[SESSION] Failed to save reading progress for %s: %v", bookID, err)
		}
	}()
}

// selectRange must be called with c.mu held.
func (c *Coordinator) selectRange(cfiRange string) {
	rng, err := c.rendition.GetRange(cfiRange)
	if err != nil {
		log.Printf("[SESSION] Failed to resolve selection %s: %v", cfiRange, err)
		return
	}
	frame, err := c.rendition.FrameRect()
	if err != nil {
		log.Printf("[SESSION] Failed to read frame position: %v", err)
	}
	c.selection = &Selection{
		CFIRange: cfiRange,
		Text:     rng.Text,
		X:        rng.Rect.Left + frame.Left + rng.Rect.Width/2 - menuHalfWidth,
		Y:        rng.Rect.Top + frame.Top,
	}
}

// Drain waits until no background progress writes are in flight, or for ctx.
func (c *Coordinator) Drain(ctx context.Context) error {
	select {
	case <-c.pendingWrites.wait():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the engine resources. It is safe to call in any state and
// more than once. Outstanding progress writes finish in the background.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed

	stop, loopDone, unsubscribe := c.stop, c.loopDone, c.unsubscribe
	rendition, doc := c.rendition, c.doc
	c.stop, c.loopDone, c.unsubscribe = nil, nil, nil
	c.rendition, c.doc = nil, nil
	c.selection = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-loopDone
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	if rendition != nil {
		rendition.Destroy()
	}
	if doc != nil {
		doc.Destroy()
	}

	log.Printf("[SESSION] Session closed")
	return nil
}

// ApplyAppearance pushes s onto the open rendition. Applying the same
// settings twice yields the same styling as applying them once.
func (c *Coordinator) ApplyAppearance(s appearance.Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return ErrNotReady
	}
	appearance.Apply(c.rendition.Themes(), s)
	return nil
}

// CreateHighlight highlights the current selection in color and clears the
// selection.
func (c *Coordinator) CreateHighlight(ctx context.Context, color string) (*entities.Highlight, error) {
	if !entities.IsHighlightColor(color) {
		return nil, ErrInvalidColor
	}

	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return nil, ErrNotReady
	}
	if c.selection == nil {
		c.mu.Unlock()
		return nil, ErrNoSelection
	}
	selection := *c.selection
	rendition := c.rendition
	highlight := &entities.Highlight{
		ID:        c.newID(),
		BookID:    c.book.ID,
		CFIRange:  selection.CFIRange,
		Text:      selection.Text,
		Color:     color,
		CreatedAt: c.now().UnixMilli(),
	}
	c.mu.Unlock()

	if err := validation.Struct(highlight); err != nil {
		return nil, err
	}
	if err := c.highlights.Add(ctx, highlight); err != nil {
		return nil, fmt.Errorf("failed to save highlight: %w", err)
	}
	if err := annotate(rendition, highlight); err != nil {
		log.Printf("[SESSION] Failed to mark highlight %s: %v", highlight.ID, err)
	}

	c.mu.Lock()
	if c.selection != nil && c.selection.CFIRange == selection.CFIRange {
		c.selection = nil
	}
	c.mu.Unlock()

	return highlight, nil
}

func annotate(r engine.Rendition, h *entities.Highlight) error {
	data := map[string]string{"id": h.ID, "color": h.Color}
	style := map[string]string{
		"fill":           h.Color,
		"fill-opacity":   highlightOpacity,
		"mix-blend-mode": highlightBlendMode,
	}
	return r.Annotations().Add(highlightKind, h.CFIRange, data, highlightClassName, style)
}

// RemoveHighlight deletes a highlight and its mark on the open rendition.
// Removing an unknown highlight is not an error.
func (c *Coordinator) RemoveHighlight(ctx context.Context, id string) error {
	highlight, err := c.highlights.Get(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := c.highlights.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to remove highlight: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateReady && c.book.ID == highlight.BookID {
		c.rendition.Annotations().Remove(highlight.CFIRange, highlightKind)
	}
	return nil
}

// CreateBookmark bookmarks the current location. The label is the title of
// the chapter containing it, or the displayed page number.
func (c *Coordinator) CreateBookmark(ctx context.Context) (*entities.Bookmark, error) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return nil, ErrNotReady
	}
	loc, err := c.rendition.CurrentLocation()
	if err != nil || loc.CFI == "" {
		loc = c.location
	}
	bookmark := &entities.Bookmark{
		ID:        c.newID(),
		BookID:    c.book.ID,
		CFI:       loc.CFI,
		Label:     c.labelFor(loc),
		CreatedAt: c.now().UnixMilli(),
	}
	c.mu.Unlock()

	if err := validation.Struct(bookmark); err != nil {
		return nil, err
	}
	if err := c.bookmarks.Add(ctx, bookmark); err != nil {
		return nil, fmt.Errorf("failed to save bookmark: %w", err)
	}
	return bookmark, nil
}

// labelFor must be called with c.mu held.
func (c *Coordinator) labelFor(loc engine.Location) string {
	var label string
	if loc.Page > 0 {
		label = fmt.Sprintf("Page %d", loc.Page)
	}

	section, ok := c.doc.SectionHref(loc.CFI)
	if !ok {
		return label
	}
	for _, item := range engine.Flatten(c.toc) {
		if engine.SameSection(item.Href, section) {
			return item.Label
		}
	}
	return label
}

// RemoveBookmark deletes a bookmark. Removing an unknown bookmark is not an error.
func (c *Coordinator) RemoveBookmark(ctx context.Context, id string) error {
	return c.bookmarks.Remove(ctx, id)
}
