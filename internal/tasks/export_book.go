package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/epubreader/internal/exporters"
)

// ExportBookTask writes one book's annotations as markdown into Dir.
type ExportBookTask struct {
	BookID string `json:"book_id"`
	Dir    string `json:"dir"`
}

// Config returns the queue configuration for export tasks.
func (t ExportBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "export_book",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// AnnotatedBookLoader loads a book with its annotations.
type AnnotatedBookLoader interface {
	Book(ctx context.Context, id string) (exporters.AnnotatedBook, error)
}

// ExportBookProcessor creates the processor for ExportBookTask.
func ExportBookProcessor(library AnnotatedBookLoader) backlite.QueueProcessor[ExportBookTask] {
	return func(ctx context.Context, task ExportBookTask) error {
		if library == nil {
			return fmt.Errorf("library not configured")
		}

		book, err := library.Book(ctx, task.BookID)
		if err != nil {
			return fmt.Errorf("load book %s: %w", task.BookID, err)
		}

		path, err := exporters.NewMarkdownExporter(task.Dir).ExportBook(book)
		if err != nil {
			return fmt.Errorf("export book %s: %w", task.BookID, err)
		}

		log.Printf("[TASK] Exported %d highlights and %d bookmarks of %q to %s",
			len(book.Highlights), len(book.Bookmarks), book.Book.Title, path)
		return nil
	}
}

// NewExportBookQueue creates a backlite queue for export tasks.
func NewExportBookQueue(library AnnotatedBookLoader) backlite.Queue {
	return backlite.NewQueue(ExportBookProcessor(library))
}
