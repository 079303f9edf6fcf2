package exporters

import (
	"context"
	"fmt"

	"github.com/mrlokans/epubreader/internal/entities"
)

// BookReader is the part of the book repository exports read from.
type BookReader interface {
	Get(ctx context.Context, id string) (*entities.Book, error)
	ListSummaries(ctx context.Context) ([]entities.Book, error)
}

// AnnotationReader lists one kind of annotation for a book.
type AnnotationReader[T any] interface {
	ListForBook(ctx context.Context, bookID string) ([]T, error)
}

// Library loads annotated books from the store.
type Library struct {
	books      BookReader
	highlights AnnotationReader[entities.Highlight]
	bookmarks  AnnotationReader[entities.Bookmark]
}

func NewLibrary(books BookReader, highlights AnnotationReader[entities.Highlight], bookmarks AnnotationReader[entities.Bookmark]) *Library {
	return &Library{books: books, highlights: highlights, bookmarks: bookmarks}
}

// Book loads one book and its annotations. The book content is dropped.
func (l *Library) Book(ctx context.Context, id string) (AnnotatedBook, error) {
	book, err := l.books.Get(ctx, id)
	if err != nil {
		return AnnotatedBook{}, err
	}
	book.Content = nil
	return l.annotate(ctx, *book)
}

// All loads every book that has at least one annotation.
func (l *Library) All(ctx context.Context) ([]AnnotatedBook, error) {
	books, err := l.books.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	out := make([]AnnotatedBook, 0, len(books))
	for _, book := range books {
		annotated, err := l.annotate(ctx, book)
		if err != nil {
			return nil, err
		}
		if len(annotated.Highlights) == 0 && len(annotated.Bookmarks) == 0 {
			continue
		}
		out = append(out, annotated)
	}
	return out, nil
}

func (l *Library) annotate(ctx context.Context, book entities.Book) (AnnotatedBook, error) {
	highlights, err := l.highlights.ListForBook(ctx, book.ID)
	if err != nil {
		return AnnotatedBook{}, fmt.Errorf("failed to list highlights of %s: %w", book.ID, err)
	}
	bookmarks, err := l.bookmarks.ListForBook(ctx, book.ID)
	if err != nil {
		return AnnotatedBook{}, fmt.Errorf("failed to list bookmarks of %s: %w", book.ID, err)
	}
	return AnnotatedBook{Book: book, Highlights: highlights, Bookmarks: bookmarks}, nil
}
