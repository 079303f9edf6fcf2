package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/epubreader/internal/exporters"
)

// Config controls the periodic annotation export.
type Config struct {
	Enabled   bool
	Schedule  string // five-field cron expression
	ExportDir string
}

// Library loads every annotated book.
type Library interface {
	All(ctx context.Context) ([]exporters.AnnotatedBook, error)
}

// Status describes the last export run.
type Status struct {
	State   string    `json:"state"` // "success" or "failed"
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// ExportScheduler periodically exports all annotations as markdown.
type ExportScheduler struct {
	library Library
	config  Config

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
	lastStatus *Status
}

// NewExportScheduler creates a new scheduler instance.
func NewExportScheduler(library Library, config Config) *ExportScheduler {
	return &ExportScheduler{
		library: library,
		config:  config,
		cron:    cron.New(cron.WithParser(parser)),
	}
}

// Start begins the scheduler if export is enabled.
func (s *ExportScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		log.Printf("Export scheduler: disabled")
		return nil
	}
	if s.config.ExportDir == "" {
		log.Printf("Export scheduler: export directory not configured, skipping")
		return nil
	}
	if err := ValidateSchedule(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.config.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runExport(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule export job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Export scheduler: started with schedule '%s'. Next run: %v", s.config.Schedule, s.cron.Entry(entryID).Next)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running export to finish.
func (s *ExportScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron.Remove(s.entryID)

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Export scheduler: stopped")
}

// RunNow exports immediately and returns the outcome.
func (s *ExportScheduler) RunNow(ctx context.Context) Status {
	return s.runExport(ctx)
}

// IsRunning returns whether the scheduler is active.
func (s *ExportScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next export will occur.
func (s *ExportScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	t := s.cron.Entry(s.entryID).Next
	return &t
}

// LastStatus returns the outcome of the last run, or nil.
func (s *ExportScheduler) LastStatus() *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastStatus == nil {
		return nil
	}
	st := *s.lastStatus
	return &st
}

func (s *ExportScheduler) runExport(ctx context.Context) Status {
	status := s.export(ctx)
	status.At = time.Now()

	s.mu.Lock()
	s.lastStatus = &status
	s.mu.Unlock()

	log.Printf("Annotation export: %s", status.Message)
	return status
}

func (s *ExportScheduler) export(ctx context.Context) Status {
	if s.config.ExportDir == "" {
		return Status{State: "failed", Message: "Export directory not configured"}
	}

	startTime := time.Now()
	books, err := s.library.All(ctx)
	if err != nil {
		return Status{State: "failed", Message: fmt.Sprintf("Failed to load annotations: %v", err)}
	}
	if len(books) == 0 {
		return Status{State: "success", Message: "No annotated books to export"}
	}

	result, err := exporters.NewMarkdownExporter(s.config.ExportDir).Export(books)
	if err != nil {
		return Status{State: "failed", Message: fmt.Sprintf("Export failed: %v", err)}
	}

	return Status{
		State: "success",
		Message: fmt.Sprintf("Exported %d books, %d highlights, %d bookmarks in %v",
			result.BooksProcessed, result.HighlightsProcessed, result.BookmarksProcessed,
			time.Since(startTime).Round(time.Millisecond)),
	}
}
