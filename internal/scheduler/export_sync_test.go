package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/epubreader/internal/entities"
	"github.com/mrlokans/epubreader/internal/exporters"
)

type stubLibrary struct {
	books []exporters.AnnotatedBook
	err   error
}

func (l stubLibrary) All(context.Context) ([]exporters.AnnotatedBook, error) {
	return l.books, l.err
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 3 * * *"))
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.Error(t, ValidateSchedule("every day"))
	assert.Error(t, ValidateSchedule("0 0 3 * * *"))
}

func TestStart_Disabled(t *testing.T) {
	s := NewExportScheduler(stubLibrary{}, Config{Enabled: false, Schedule: "0 3 * * *", ExportDir: t.TempDir()})

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRunTime())
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := NewExportScheduler(stubLibrary{}, Config{Enabled: true, Schedule: "nope", ExportDir: t.TempDir()})

	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestStartStop(t *testing.T) {
	s := NewExportScheduler(stubLibrary{}, Config{Enabled: true, Schedule: "0 3 * * *", ExportDir: t.TempDir()})

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	require.NotNil(t, s.NextRunTime())
	assert.False(t, s.NextRunTime().IsZero())

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestStop_OnContextCancel(t *testing.T) {
	s := NewExportScheduler(stubLibrary{}, Config{Enabled: true, Schedule: "0 3 * * *", ExportDir: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestRunNow_WritesMarkdown(t *testing.T) {
	dir := t.TempDir()
	library := stubLibrary{books: []exporters.AnnotatedBook{{
		Book:       entities.Book{ID: "b1", Title: "Dune"},
		Highlights: []entities.Highlight{{ID: "h1", Text: "Fear is the mind-killer", Color: entities.HighlightColorYellow}},
	}}}
	s := NewExportScheduler(library, Config{ExportDir: dir})

	status := s.RunNow(context.Background())
	assert.Equal(t, "success", status.State)
	assert.Contains(t, status.Message, "Exported 1 books, 1 highlights")

	_, err := os.Stat(filepath.Join(dir, "Dune.md"))
	assert.NoError(t, err)
	require.NotNil(t, s.LastStatus())
	assert.Equal(t, "success", s.LastStatus().State)
}

func TestRunNow_Failures(t *testing.T) {
	status := NewExportScheduler(stubLibrary{}, Config{}).RunNow(context.Background())
	assert.Equal(t, "failed", status.State)

	status = NewExportScheduler(stubLibrary{err: errors.New("db locked")}, Config{ExportDir: t.TempDir()}).RunNow(context.Background())
	assert.Equal(t, "failed", status.State)
	assert.Contains(t, status.Message, "db locked")

	status = NewExportScheduler(stubLibrary{}, Config{ExportDir: t.TempDir()}).RunNow(context.Background())
	assert.Equal(t, "success", status.State)
	assert.Equal(t, "No annotated books to export", status.Message)
}
