package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/exporters"
	"github.com/mrlokans/epubreader/internal/tasks"
)

// TasksController reports background task status and starts exports.
type TasksController struct {
	client    *tasks.Client
	books     BookStore
	library   AnnotatedBookLoader
	exportDir string
}

// NewTasksController creates a new TasksController. client may be nil, in
// which case exports run inline.
func NewTasksController(client *tasks.Client, books BookStore, library AnnotatedBookLoader, exportDir string) *TasksController {
	return &TasksController{
		client:    client,
		books:     books,
		library:   library,
		exportDir: exportDir,
	}
}

// GetTaskStatus handles GET /api/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	if status == backlite.TaskStatusNotFound {
		respondNotFound(c, "task")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

// ExportBook handles POST /api/books/:id/export
func (tc *TasksController) ExportBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	exists, err := tc.books.Exists(ctx, id)
	if err != nil {
		respondInternalError(c, err, "check book")
		return
	}
	if !exists {
		respondNotFound(c, "book")
		return
	}

	if tc.client != nil {
		taskID, err := tc.client.EnqueueExport(id, tc.exportDir)
		if err != nil {
			respondInternalError(c, err, "enqueue export")
			return
		}
		respondAccepted(c, "export queued", gin.H{"task_id": taskID})
		return
	}

	book, err := tc.library.Book(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		respondNotFound(c, "book")
		return
	}
	if err != nil {
		respondInternalError(c, err, "load annotations")
		return
	}

	path, err := exporters.NewMarkdownExporter(tc.exportDir).ExportBook(book)
	if err != nil {
		respondInternalError(c, err, "export book")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"path":       path,
		"highlights": len(book.Highlights),
		"bookmarks":  len(book.Bookmarks),
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
