package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
)

// stagedPattern matches files written by StageUpload.
const stagedPattern = "upload_*.epub"

// Client runs the background import and export queues. Queue state lives in
// its own SQLite file so that a busy queue never contends with library writes.
type Client struct {
	queue  *backlite.Client
	db     *sql.DB
	config Config

	mu      sync.Mutex
	running bool
}

// NewClient opens the queue database that belongs to the library at
// libraryDBPath (see TasksDBPath) and installs the queue schema.
func NewClient(libraryDBPath string, cfg Config) (*Client, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	db, err := sql.Open("sqlite3", TasksDBPath(libraryDBPath)+"?_journal=WAL&_timeout=5000&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks database: %w", err)
	}
	// Every worker holds a connection while it runs; the dispatcher and
	// enqueuing handlers need a few more.
	db.SetMaxOpenConns(cfg.Workers + 4)
	db.SetMaxIdleConns(cfg.Workers + 1)
	db.SetConnMaxLifetime(time.Hour)

	queue, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          queueLogger{},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create task queue: %w", err)
	}
	if err := queue.Install(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to install task queue schema: %w", err)
	}

	return &Client{queue: queue, db: db, config: cfg}, nil
}

// Register adds queues. All queues must be registered before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.queue.Register(q)
	}
}

// Start removes uploads orphaned by an earlier run and then dispatches tasks
// until ctx is cancelled or Stop is called. Calling Start twice is a no-op.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	if c.config.StagingDir != "" {
		removed, err := SweepStaging(c.config.StagingDir, c.config.ReleaseAfter)
		if err != nil {
			log.Printf("[TASK] Failed to sweep staging dir: %v", err)
		} else if removed > 0 {
			log.Printf("[TASK] Removed %d orphaned uploads from %s", removed, c.config.StagingDir)
		}
	}

	log.Printf("[TASK] Queue started with %d workers", c.config.Workers)
	c.queue.Start(ctx)
}

// Stop waits for running tasks. It reports false if ctx expired first.
func (c *Client) Stop(ctx context.Context) bool {
	c.mu.Lock()
	running := c.running
	c.running = false
	c.mu.Unlock()
	if !running {
		return true
	}

	if !c.queue.Stop(ctx) {
		log.Println("[TASK] Queue stopped with tasks still running")
		return false
	}
	log.Println("[TASK] Queue stopped")
	return true
}

// Close releases the queue database. Call it after Stop.
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies the queue database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// EnqueueImport queues a staged upload for import and returns the task ID.
func (c *Client) EnqueueImport(task ImportBookTask) (string, error) {
	if task.StagedPath == "" {
		return "", errors.New("import task has no staged file")
	}
	return c.enqueue(task)
}

// EnqueueExport queues a markdown export of one book into dir.
func (c *Client) EnqueueExport(bookID, dir string) (string, error) {
	return c.enqueue(ExportBookTask{BookID: bookID, Dir: dir})
}

func (c *Client) enqueue(task backlite.Task) (string, error) {
	ids, err := c.queue.Add(task).Save()
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Config().Name, err)
	}
	return ids[0], nil
}

// Status returns the status of a task by ID.
func (c *Client) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	return c.queue.Status(ctx, taskID)
}

// TasksDBPath derives the queue database path from the library database
// path: "data/library.db" becomes "data/library-tasks.db".
func TasksDBPath(libraryDBPath string) string {
	ext := filepath.Ext(libraryDBPath)
	return strings.TrimSuffix(libraryDBPath, ext) + "-tasks" + ext
}

// SweepStaging deletes staged uploads in dir last modified more than
// olderThan ago. Such files belong to imports that never ran to completion.
// A missing dir is not an error.
func SweepStaging(dir string, olderThan time.Duration) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, stagedPattern))
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}

// queueLogger routes backlite logs through the standard logger.
type queueLogger struct{}

func (queueLogger) Info(message string, params ...any) {
	log.Printf("[TASK] "+message, params...)
}

func (queueLogger) Error(message string, params ...any) {
	log.Printf("[TASK ERROR] "+message, params...)
}
