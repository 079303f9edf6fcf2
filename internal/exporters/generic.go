package exporters

import "github.com/mrlokans/epubreader/internal/entities"

// AnnotatedBook is a book together with its annotations.
type AnnotatedBook struct {
	Book       entities.Book
	Highlights []entities.Highlight
	Bookmarks  []entities.Bookmark
}

// BookExporter writes annotated books somewhere.
type BookExporter interface {
	Export(books []AnnotatedBook) (ExportResult, error)
}

type ExportResult struct {
	BooksProcessed      int      `json:"books_processed"`
	HighlightsProcessed int      `json:"highlights_processed"`
	BookmarksProcessed  int      `json:"bookmarks_processed"`
	BooksFailed         int      `json:"books_failed"`
	Files               []string `json:"files,omitempty"`
}
