package tasks

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/epubreader/internal/entities"
	"github.com/mrlokans/epubreader/internal/importer"
)

// ImportBookTask imports an upload that was staged on disk.
type ImportBookTask struct {
	StagedPath  string `json:"staged_path"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Cover       string `json:"cover,omitempty"`
}

// Config returns the queue configuration for import tasks. Imports are a
// one-shot pipeline and are not retried.
func (t ImportBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "import_book",
		MaxAttempts: 1,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Importer is the part of importer.Importer the task needs.
type Importer interface {
	Import(ctx context.Context, u importer.Upload) (*entities.Book, error)
}

// ImportBookProcessor creates the processor for ImportBookTask. The staged
// file is removed whether or not the import succeeds.
func ImportBookProcessor(imp Importer) backlite.QueueProcessor[ImportBookTask] {
	return func(ctx context.Context, task ImportBookTask) error {
		defer func() {
			if err := os.Remove(task.StagedPath); err != nil && !os.IsNotExist(err) {
				log.Printf("[TASK] Failed to remove staged upload %s: %v", task.StagedPath, err)
			}
		}()

		if imp == nil {
			return fmt.Errorf("importer not configured")
		}

		content, err := os.ReadFile(task.StagedPath)
		if err != nil {
			return fmt.Errorf("read staged upload: %w", err)
		}

		book, err := imp.Import(ctx, importer.Upload{
			Filename:    task.Filename,
			ContentType: task.ContentType,
			Content:     content,
			Title:       task.Title,
			Author:      task.Author,
			Cover:       task.Cover,
		})
		if err != nil {
			return fmt.Errorf("import %s: %w", task.Filename, err)
		}

		log.Printf("[TASK] Imported %s as book %s (%s)", task.Filename, book.ID, book.Title)
		return nil
	}
}

// NewImportBookQueue creates a backlite queue for import tasks.
func NewImportBookQueue(imp Importer) backlite.Queue {
	return backlite.NewQueue(ImportBookProcessor(imp))
}

// StageUpload writes an upload into dir so a task can import it later.
// It returns the staged file path.
func StageUpload(dir string, content []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "upload_*.epub")
	if err != nil {
		return "", err
	}
	path := f.Name()

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return filepath.Clean(path), nil
}
