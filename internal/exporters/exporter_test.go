package exporters

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/database/annotations"
	"github.com/mrlokans/epubreader/internal/database/books"
	"github.com/mrlokans/epubreader/internal/entities"
)

func ms(year int, month time.Month, day, hour, min int) int64 {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC).UnixMilli()
}

func sampleBook() AnnotatedBook {
	return AnnotatedBook{
		Book: entities.Book{ID: "b1", Title: `The "Dune" Saga`, Author: "Frank Herbert"},
		Highlights: []entities.Highlight{
			{ID: "h1", CFIRange: "epubcfi(/6/4!/4/2,/1:0,/1:4)", Text: "Fear is\nthe mind-killer", Color: entities.HighlightColorYellow, CreatedAt: ms(2024, 6, 1, 10, 0)},
			{ID: "h2", CFIRange: "epubcfi(/6/8!/4/2,/1:0,/1:4)", Text: "The spice must flow", Color: entities.HighlightColorBlue, Note: "motto", CreatedAt: ms(2024, 6, 2, 9, 30)},
		},
		Bookmarks: []entities.Bookmark{
			{ID: "k1", CFI: "epubcfi(/6/10)", Label: "Chapter 3", CreatedAt: ms(2024, 6, 3, 8, 0)},
			{ID: "k2", CFI: "epubcfi(/6/12)", CreatedAt: ms(2024, 6, 1, 8, 0)},
		},
	}
}

func TestGenerateMarkdown(t *testing.T) {
	t.Run("renders frontmatter", func(t *testing.T) {
		md := GenerateMarkdown(sampleBook(), time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))

		assert.True(t, strings.HasPrefix(md, "---\n"))
		assert.Contains(t, md, `title: "The \"Dune\" Saga"`)
		assert.Contains(t, md, `author: "Frank Herbert"`)
		assert.Contains(t, md, "book_id: b1")
		assert.Contains(t, md, "exported_at: 2024-07-01")
		assert.Contains(t, md, "content_type: book_annotations")
	})

	t.Run("lists highlights newest first", func(t *testing.T) {
		md := GenerateMarkdown(sampleBook(), time.Now())

		spice := strings.Index(md, "The spice must flow")
		fear := strings.Index(md, "Fear is")
		require.NotEqual(t, -1, spice)
		require.NotEqual(t, -1, fear)
		assert.Less(t, spice, fear)

		assert.Contains(t, md, "### 2024-06-02 09:30 (blue)")
		assert.Contains(t, md, "> Fear is\n> the mind-killer")
		assert.Contains(t, md, "**Note:** motto")
		assert.Contains(t, md, "`epubcfi(/6/4!/4/2,/1:0,/1:4)`")
	})

	t.Run("lists bookmarks", func(t *testing.T) {
		md := GenerateMarkdown(sampleBook(), time.Now())

		assert.Contains(t, md, "## Bookmarks")
		assert.Contains(t, md, "- Chapter 3 (2024-06-03 08:00) `epubcfi(/6/10)`")
		assert.Contains(t, md, "- Bookmark (2024-06-01 08:00) `epubcfi(/6/12)`")
	})

	t.Run("omits bookmarks section when empty", func(t *testing.T) {
		b := sampleBook()
		b.Bookmarks = nil
		assert.NotContains(t, GenerateMarkdown(b, time.Now()), "## Bookmarks")
	})
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Dune.md", Filename(entities.Book{ID: "b1", Title: "Dune"}))
	assert.Equal(t, "AC DC.md", Filename(entities.Book{ID: "b1", Title: "AC/DC"}))
	assert.Equal(t, "b1.md", Filename(entities.Book{ID: "b1", Title: ""}))
	assert.Equal(t, "b1.md", Filename(entities.Book{ID: "b1", Title: ".."}))
}

func TestMarkdownExporter_Export(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "export")
	exporter := NewMarkdownExporter(dir)

	result, err := exporter.Export([]AnnotatedBook{sampleBook()})
	require.NoError(t, err)

	assert.Equal(t, 1, result.BooksProcessed)
	assert.Equal(t, 2, result.HighlightsProcessed)
	assert.Equal(t, 2, result.BookmarksProcessed)
	require.Len(t, result.Files, 1)

	content, err := os.ReadFile(result.Files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "The spice must flow")
}

func TestLibrary(t *testing.T) {
	store, err := database.Open(filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	bookRepo := books.NewRepository(store.DB)
	highlights := annotations.NewHighlights(store.DB)
	bookmarks := annotations.NewBookmarks(store.DB)

	require.NoError(t, bookRepo.Add(ctx, &entities.Book{ID: "b1", Title: "Dune", Content: []byte("epub"), AddedAt: 1}))
	require.NoError(t, bookRepo.Add(ctx, &entities.Book{ID: "b2", Title: "Unread", AddedAt: 2}))
	require.NoError(t, highlights.Add(ctx, &entities.Highlight{ID: "h1", BookID: "b1", CFIRange: "r", Color: entities.HighlightColorGreen}))
	require.NoError(t, bookmarks.Add(ctx, &entities.Bookmark{ID: "k1", BookID: "b1", CFI: "c"}))

	lib := NewLibrary(bookRepo, highlights, bookmarks)

	one, err := lib.Book(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, one.Book.Content)
	assert.Len(t, one.Highlights, 1)
	assert.Len(t, one.Bookmarks, 1)

	_, err = lib.Book(ctx, "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)

	all, err := lib.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b1", all[0].Book.ID)
}
