package books

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/database/annotations"
	"github.com/mrlokans/epubreader/internal/entities"
)

func setupTestDB(t *testing.T) (*database.Store, *Repository) {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, NewRepository(store.DB)
}

func ptr(s string) *string { return &s }

func TestRepository_AddAndGet(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	book := &entities.Book{
		ID:      "b1",
		Title:   "Dune",
		Author:  "Frank Herbert",
		Cover:   "data:image/png;base64,AAAA",
		Content: []byte("PK\x03\x04epub"),
		AddedAt: 1700000000000,
	}
	require.NoError(t, repo.Add(ctx, book))

	got, err := repo.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, "Frank Herbert", got.Author)
	assert.Equal(t, book.Cover, got.Cover)
	assert.Equal(t, book.Content, got.Content)
	assert.Equal(t, int64(1700000000000), got.AddedAt)
	assert.Nil(t, got.LastReadPosition)
}

func TestRepository_Add_MissingID(t *testing.T) {
	_, repo := setupTestDB(t)

	err := repo.Add(context.Background(), &entities.Book{Title: "No ID", AddedAt: 1})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestRepository_Add_ReplacesExisting(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, &entities.Book{ID: "b1", Title: "Draft", AddedAt: 1}))
	require.NoError(t, repo.Add(ctx, &entities.Book{ID: "b1", Title: "Final", AddedAt: 2}))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Final", all[0].Title)
	assert.Equal(t, int64(2), all[0].AddedAt)
}

func TestRepository_Get_NotFound(t *testing.T) {
	_, repo := setupTestDB(t)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = repo.Content(context.Background(), "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRepository_Exists(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	ok, err := repo.Exists(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Add(ctx, &entities.Book{ID: "b1", AddedAt: 1}))
	ok, err = repo.Exists(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepository_ListAll_NewestFirst(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, &entities.Book{ID: "a", Title: "Dune", AddedAt: 100}))
	require.NoError(t, repo.Add(ctx, &entities.Book{ID: "b", Title: "Neuromancer", AddedAt: 200}))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Neuromancer", all[0].Title)
	assert.Equal(t, "Dune", all[1].Title)
}

func TestRepository_ListAll_Empty(t *testing.T) {
	_, repo := setupTestDB(t)

	all, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRepository_ListSummaries_OmitsContent(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, &entities.Book{ID: "a", Title: "Dune", Content: []byte("big"), AddedAt: 1}))

	summaries, err := repo.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Dune", summaries[0].Title)
	assert.Empty(t, summaries[0].Content)

	content, err := repo.Content(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("big"), content)
}

func TestRepository_UpdateProgress(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, &entities.Book{ID: "b1", Title: "Dune", Content: []byte("x"), AddedAt: 5}))
	require.NoError(t, repo.UpdateProgress(ctx, "b1", "epubcfi(/6/4!/4/2)"))

	got, err := repo.Get(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got.LastReadPosition)
	assert.Equal(t, "epubcfi(/6/4!/4/2)", *got.LastReadPosition)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, []byte("x"), got.Content)
	assert.Equal(t, int64(5), got.AddedAt)
}

func TestRepository_UpdateProgress_MissingBookIsNoop(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.UpdateProgress(ctx, "missing", "epubcfi(/6/2)"))

	ok, err := repo.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_UpdateProgress_ConcurrentLastWriteWins(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, repo.Add(ctx, &entities.Book{ID: "b1", Title: "Dune", AddedAt: 1}))

	positions := []string{"epubcfi(/6/2)", "epubcfi(/6/4)", "epubcfi(/6/6)", "epubcfi(/6/8)"}
	var wg sync.WaitGroup
	for _, pos := range positions {
		wg.Add(1)
		go func(pos string) {
			defer wg.Done()
			assert.NoError(t, repo.UpdateProgress(ctx, "b1", pos))
		}(pos)
	}
	wg.Wait()

	got, err := repo.Get(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got.LastReadPosition)
	assert.Contains(t, positions, *got.LastReadPosition)
	assert.Equal(t, "Dune", got.Title)
}

func TestRepository_Remove_CascadesAnnotations(t *testing.T) {
	store, repo := setupTestDB(t)
	ctx := context.Background()
	highlights := annotations.NewHighlights(store.DB)
	bookmarks := annotations.NewBookmarks(store.DB)

	require.NoError(t, repo.Add(ctx, &entities.Book{ID: "b1", AddedAt: 1, LastReadPosition: ptr("epubcfi(/6/2)")}))
	require.NoError(t, repo.Add(ctx, &entities.Book{ID: "b2", AddedAt: 2}))
	require.NoError(t, highlights.Add(ctx, &entities.Highlight{ID: "h1", BookID: "b1", CFIRange: "r", Color: entities.HighlightColorBlue}))
	require.NoError(t, highlights.Add(ctx, &entities.Highlight{ID: "h2", BookID: "b2", CFIRange: "r", Color: entities.HighlightColorBlue}))
	require.NoError(t, bookmarks.Add(ctx, &entities.Bookmark{ID: "k1", BookID: "b1", CFI: "c"}))

	require.NoError(t, repo.Remove(ctx, "b1"))

	_, err := repo.Get(ctx, "b1")
	assert.ErrorIs(t, err, database.ErrNotFound)

	left, err := highlights.ListForBook(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, left)
	marks, err := bookmarks.ListForBook(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, marks)

	other, err := highlights.ListForBook(ctx, "b2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestRepository_Remove_Missing(t *testing.T) {
	_, repo := setupTestDB(t)

	assert.NoError(t, repo.Remove(context.Background(), "missing"))
}
