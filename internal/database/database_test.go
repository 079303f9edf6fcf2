package database_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/database/annotations"
	"github.com/mrlokans/epubreader/internal/database/books"
	"github.com/mrlokans/epubreader/internal/entities"
)

func testPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "library.db")
}

func ptr(s string) *string { return &s }

func TestOpen_CreatesLatestSchema(t *testing.T) {
	store, err := database.Open(testPath(t))
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, database.LatestVersion, store.Version())

	m := store.DB.Migrator()
	assert.True(t, m.HasTable(&entities.Book{}))
	assert.True(t, m.HasTable(&entities.Highlight{}))
	assert.True(t, m.HasTable(&entities.Bookmark{}))
	assert.True(t, m.HasTable(&entities.Setting{}))
	assert.True(t, m.HasIndex(&entities.Book{}, "idx_books_by_added"))
	assert.True(t, m.HasIndex(&entities.Highlight{}, "idx_highlights_by_book"))
	assert.True(t, m.HasIndex(&entities.Bookmark{}, "idx_bookmarks_by_book"))
	assert.True(t, m.HasColumn(&entities.Book{}, "CoverBlurHash"))
}

func TestOpenAt_RejectsUnknownVersion(t *testing.T) {
	_, err := database.OpenAt(testPath(t), 0)
	assert.Error(t, err)

	_, err = database.OpenAt(testPath(t), database.LatestVersion+1)
	assert.Error(t, err)
}

func TestOpen_SharesHandleAcrossCallers(t *testing.T) {
	path := testPath(t)

	const callers = 8
	stores := make([]*database.Store, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i], errs[i] = database.Open(path)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, stores[0], stores[i])
	}

	// Closing all but one holder keeps the connection usable.
	for i := 1; i < callers; i++ {
		require.NoError(t, stores[i].Close())
	}
	require.NoError(t, stores[0].Ping(context.Background()))
	require.NoError(t, stores[0].Close())

	// Extra closes are harmless.
	assert.NoError(t, stores[0].Close())
}

func TestOpen_ReopenAfterCloseKeepsData(t *testing.T) {
	path := testPath(t)
	ctx := context.Background()

	store, err := database.Open(path)
	require.NoError(t, err)
	require.NoError(t, books.NewRepository(store.DB).Add(ctx, &entities.Book{ID: "b1", Title: "Dune", AddedAt: 100}))
	require.NoError(t, store.Close())

	reopened, err := database.Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.NotSame(t, store, reopened)

	book, err := books.NewRepository(reopened.DB).Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
}

func TestUpgrade_PreservesVersionOneData(t *testing.T) {
	path := testPath(t)
	ctx := context.Background()

	v1, err := database.OpenAt(path, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version())
	assert.False(t, v1.DB.Migrator().HasTable(&entities.Bookmark{}))

	// v1 has no cover_blur_hash column yet, so write only the v1 fields.
	require.NoError(t, v1.DB.Select("id", "title", "author", "content", "added_at").
		Create(&entities.Book{ID: "b1", Title: "Dune", Author: "Frank Herbert", Content: []byte("epub"), AddedAt: 100}).Error)
	require.NoError(t, annotations.NewHighlights(v1.DB).Add(ctx, &entities.Highlight{
		ID: "h1", BookID: "b1", CFIRange: "epubcfi(/6/4!/4/2,/1:0,/1:5)", Text: "Fear", Color: entities.HighlightColorYellow, CreatedAt: 1,
	}))
	require.NoError(t, v1.Close())

	latest, err := database.Open(path)
	require.NoError(t, err)
	defer latest.Close()
	assert.Equal(t, database.LatestVersion, latest.Version())

	book, err := books.NewRepository(latest.DB).Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, []byte("epub"), book.Content)
	assert.Empty(t, book.CoverBlurHash)

	highlights, err := annotations.NewHighlights(latest.DB).ListForBook(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, highlights, 1)
	assert.Equal(t, "Fear", highlights[0].Text)

	bookmarks, err := annotations.NewBookmarks(latest.DB).ListForBook(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, bookmarks)
}

func TestUpgrade_SharedHandleUpgradesInPlace(t *testing.T) {
	path := testPath(t)

	old, err := database.OpenAt(path, 2)
	require.NoError(t, err)
	defer old.Close()
	assert.Equal(t, 2, old.Version())

	latest, err := database.Open(path)
	require.NoError(t, err)
	defer latest.Close()

	assert.Same(t, old, latest)
	assert.Equal(t, database.LatestVersion, latest.Version())
}

func TestOpenAt_OlderTargetLeavesNewerSchema(t *testing.T) {
	path := testPath(t)

	store, err := database.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	again, err := database.OpenAt(path, 1)
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, database.LatestVersion, again.Version())
}

func TestStore_CollectionsAreIndependent(t *testing.T) {
	store, err := database.Open(testPath(t))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, books.NewRepository(store.DB).Add(ctx, &entities.Book{ID: "b1", AddedAt: 1, LastReadPosition: ptr("epubcfi(/6/2)")}))
	require.NoError(t, annotations.NewHighlights(store.DB).Add(ctx, &entities.Highlight{
		ID: "h1", BookID: "b1", CFIRange: "epubcfi(/6/4!/4/2,/1:0,/1:5)", Text: "a", Color: entities.HighlightColorGreen, CreatedAt: 1,
	}))
	require.NoError(t, annotations.NewBookmarks(store.DB).Add(ctx, &entities.Bookmark{
		ID: "k1", BookID: "b1", CFI: "epubcfi(/6/4!/4/2)", Label: "Chapter 1", CreatedAt: 2,
	}))

	highlights, err := annotations.NewHighlights(store.DB).ListForBook(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, highlights, 1)
	assert.Equal(t, "h1", highlights[0].ID)

	bookmarks, err := annotations.NewBookmarks(store.DB).ListForBook(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "k1", bookmarks[0].ID)
}

func TestUpgrade_RerunningAppliedStepsKeepsData(t *testing.T) {
	path := testPath(t)
	ctx := context.Background()

	store, err := database.Open(path)
	require.NoError(t, err)

	book := &entities.Book{ID: "b1", Title: "Dune", Author: "Frank Herbert", Content: []byte("epub"), CoverBlurHash: "LKO2", AddedAt: 100}
	require.NoError(t, books.NewRepository(store.DB).Add(ctx, book))
	require.NoError(t, annotations.NewHighlights(store.DB).Add(ctx, &entities.Highlight{
		ID: "h1", BookID: "b1", CFIRange: "epubcfi(/6/4!/4/2,/1:0,/1:5)", Text: "Fear", Color: entities.HighlightColorYellow, CreatedAt: 1,
	}))
	require.NoError(t, annotations.NewBookmarks(store.DB).Add(ctx, &entities.Bookmark{
		ID: "k1", BookID: "b1", CFI: "epubcfi(/6/4!/4/2)", Label: "Chapter 1", CreatedAt: 2,
	}))

	// Forget every applied step so the next open replays the whole history.
	require.NoError(t, store.DB.Model(&entities.SchemaVersion{}).Where("id = ?", 1).Update("version", 0).Error)
	require.NoError(t, store.Close())

	reopened, err := database.Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, database.LatestVersion, reopened.Version())

	all, err := books.NewRepository(reopened.DB).ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, *book, all[0])

	highlights, err := annotations.NewHighlights(reopened.DB).ListForBook(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, highlights, 1)
	assert.Equal(t, "Fear", highlights[0].Text)

	bookmarks, err := annotations.NewBookmarks(reopened.DB).ListForBook(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "Chapter 1", bookmarks[0].Label)

	m := reopened.DB.Migrator()
	assert.True(t, m.HasIndex(&entities.Book{}, "idx_books_by_added"))
	assert.True(t, m.HasIndex(&entities.Highlight{}, "idx_highlights_by_book"))
	assert.True(t, m.HasIndex(&entities.Bookmark{}, "idx_bookmarks_by_book"))
	assert.True(t, m.HasColumn(&entities.Book{}, "CoverBlurHash"))
}
