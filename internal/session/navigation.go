package session

import (
	"context"
	"log"

	"github.com/mrlokans/epubreader/internal/engine"
	"github.com/mrlokans/epubreader/internal/entities"
)

// ready returns the open rendition and document, or ErrNotReady.
func (c *Coordinator) ready() (engine.Rendition, engine.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return nil, nil, ErrNotReady
	}
	return c.rendition, c.doc, nil
}

// Navigate displays target, a CFI or a table of contents href.
func (c *Coordinator) Navigate(ctx context.Context, target string) error {
	r, _, err := c.ready()
	if err != nil {
		return err
	}
	return r.Display(ctx, target)
}

// Next turns to the next page.
func (c *Coordinator) Next(ctx context.Context) error {
	r, _, err := c.ready()
	if err != nil {
		return err
	}
	return r.Next(ctx)
}

// Prev turns to the previous page.
func (c *Coordinator) Prev(ctx context.Context) error {
	r, _, err := c.ready()
	if err != nil {
		return err
	}
	return r.Prev(ctx)
}

// Search finds query in the whole book. Malformed hits reported by the
// engine are dropped.
func (c *Coordinator) Search(ctx context.Context, query string) ([]engine.SearchHit, error) {
	_, doc, err := c.ready()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return []engine.SearchHit{}, nil
	}
	hits, err := doc.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	valid, verr := engine.ValidateSearchHits(hits)
	if verr != nil {
		log.Printf("[SESSION] Dropped invalid search hits: %v", verr)
	}
	return valid, nil
}

// PageText returns the text currently on screen.
func (c *Coordinator) PageText() (string, error) {
	r, _, err := c.ready()
	if err != nil {
		return "", err
	}
	return r.PageText()
}

// TableOfContents returns the validated navigation tree of the open book.
func (c *Coordinator) TableOfContents() []engine.NavItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]engine.NavItem(nil), c.toc...)
}

// Location returns the last location reported by the rendition.
func (c *Coordinator) Location() engine.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

// Selection returns the current selection, or nil.
func (c *Coordinator) Selection() *Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection == nil {
		return nil
	}
	s := *c.selection
	return &s
}

// Book returns the open book without its content, or nil.
func (c *Coordinator) Book() *entities.Book {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.book == nil {
		return nil
	}
	b := *c.book
	return &b
}

// State returns the lifecycle stage.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) openBookID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return "", ErrNotReady
	}
	return c.book.ID, nil
}

// Highlights lists the open book's highlights, newest first.
func (c *Coordinator) Highlights(ctx context.Context) ([]entities.Highlight, error) {
	bookID, err := c.openBookID()
	if err != nil {
		return nil, err
	}
	items, err := c.highlights.ListForBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	entities.SortHighlightsNewestFirst(items)
	return items, nil
}

// Bookmarks lists the open book's bookmarks, newest first.
func (c *Coordinator) Bookmarks(ctx context.Context) ([]entities.Bookmark, error) {
	bookID, err := c.openBookID()
	if err != nil {
		return nil, err
	}
	items, err := c.bookmarks.ListForBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	entities.SortBookmarksNewestFirst(items)
	return items, nil
}
