package http

import (
	"context"

	"github.com/mrlokans/epubreader/internal/entities"
	"github.com/mrlokans/epubreader/internal/exporters"
	"github.com/mrlokans/epubreader/internal/importer"
)

// Each controller depends on the narrow slice of storage it uses; this file
// collects those interfaces.

// BookStore provides access to the book collection.
type BookStore interface {
	Get(ctx context.Context, id string) (*entities.Book, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListSummaries(ctx context.Context) ([]entities.Book, error)
	Content(ctx context.Context, id string) ([]byte, error)
	UpdateProgress(ctx context.Context, id, position string) error
	Remove(ctx context.Context, id string) error
}

// AnnotationStore provides access to one annotation collection.
type AnnotationStore[T entities.Highlight | entities.Bookmark] interface {
	Add(ctx context.Context, item *T) error
	ListForBook(ctx context.Context, bookID string) ([]T, error)
	Remove(ctx context.Context, id string) error
}

// BookImporter turns uploads into books.
type BookImporter interface {
	Import(ctx context.Context, u importer.Upload) (*entities.Book, error)
}

// SettingsStore provides key/value settings.
type SettingsStore interface {
	GetValue(ctx context.Context, key, fallback string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// AnnotatedBookLoader loads a book with its annotations for export.
type AnnotatedBookLoader interface {
	Book(ctx context.Context, id string) (exporters.AnnotatedBook, error)
}
