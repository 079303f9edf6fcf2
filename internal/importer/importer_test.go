package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/epubreader/internal/covers"
	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/database/books"
	"github.com/mrlokans/epubreader/internal/engine"
	"github.com/mrlokans/epubreader/internal/engine/enginetest"
	"github.com/mrlokans/epubreader/internal/entities"
)

// epubBytes builds a minimal EPUB container.
func epubBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte(EPUBMediaType))
	require.NoError(t, err)

	w, err = zw.Create("META-INF/container.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><container version="1.0"/>`))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func coverURI(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 12, 18))))
	return covers.DataURI("image/png", buf.Bytes())
}

func setupTestDB(t *testing.T) *books.Repository {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return books.NewRepository(store.DB)
}

func TestValidate(t *testing.T) {
	epub := epubBytes(t)

	tests := []struct {
		name    string
		upload  Upload
		wantErr error
	}{
		{"epub by name", Upload{Filename: "dune.epub", Content: epub}, nil},
		{"epub by upper-case name", Upload{Filename: "DUNE.EPUB", Content: epub}, nil},
		{"epub by content type", Upload{Filename: "download", ContentType: "application/epub+zip", Content: epub}, nil},
		{"wrong extension", Upload{Filename: "dune.pdf", ContentType: "application/pdf", Content: epub}, ErrInvalidFileType},
		{"empty file", Upload{Filename: "dune.epub"}, ErrCorruptDocument},
		{"not a container", Upload{Filename: "dune.epub", Content: []byte("plain text pretending")}, ErrCorruptDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.upload)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestImport_WithUploadMetadata(t *testing.T) {
	repo := setupTestDB(t)
	imp := New(repo, nil)
	imp.now = func() time.Time { return time.UnixMilli(1700000000123) }
	imp.newID = func() string { return "book-1" }
	ctx := context.Background()
	epub := epubBytes(t)
	cover := coverURI(t)

	book, err := imp.Import(ctx, Upload{
		Filename: "dune.epub",
		Content:  epub,
		Title:    " Dune ",
		Author:   "Frank Herbert",
		Cover:    cover,
	})
	require.NoError(t, err)

	assert.Equal(t, "book-1", book.ID)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, int64(1700000000123), book.AddedAt)
	assert.NotEmpty(t, book.CoverBlurHash)

	stored, err := repo.Get(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, book, stored)
	assert.Equal(t, epub, stored.Content)
	assert.Nil(t, stored.LastReadPosition)
}

func TestImport_TitleFallsBackToFilename(t *testing.T) {
	repo := setupTestDB(t)
	imp := New(repo, nil)

	book, err := imp.Import(context.Background(), Upload{Filename: "Neuromancer.epub", Content: epubBytes(t)})
	require.NoError(t, err)
	assert.Equal(t, "Neuromancer", book.Title)
	assert.Empty(t, book.Author)
	assert.Empty(t, book.Cover)
	assert.NotEmpty(t, book.ID)
}

func TestImport_UsesEngineMetadata(t *testing.T) {
	repo := setupTestDB(t)
	eng := enginetest.New()
	eng.Meta = engine.Metadata{Title: "Neuromancer", Author: "William Gibson"}
	eng.CoverURI = coverURI(t)
	imp := New(repo, eng)

	book, err := imp.Import(context.Background(), Upload{Filename: "upload.epub", Content: epubBytes(t), Author: "Override"})
	require.NoError(t, err)

	assert.Equal(t, "Neuromancer", book.Title)
	assert.Equal(t, "Override", book.Author)
	assert.Equal(t, eng.CoverURI, book.Cover)
	assert.NotEmpty(t, book.CoverBlurHash)
	require.Len(t, eng.Documents, 1)
	assert.True(t, eng.Documents[0].Destroyed())
}

func TestImport_BadCoverIsDropped(t *testing.T) {
	repo := setupTestDB(t)
	imp := New(repo, nil)

	book, err := imp.Import(context.Background(), Upload{Filename: "a.epub", Content: epubBytes(t), Cover: "blob:http://localhost/123"})
	require.NoError(t, err)
	assert.Empty(t, book.Cover)
	assert.Empty(t, book.CoverBlurHash)
}

func TestImport_FailuresStoreNothing(t *testing.T) {
	repo := setupTestDB(t)
	eng := enginetest.New()
	eng.LoadErr = errors.New("missing container.xml")
	imp := New(repo, eng)
	ctx := context.Background()

	_, err := imp.Import(ctx, Upload{Filename: "broken.epub", Content: epubBytes(t)})
	assert.ErrorIs(t, err, ErrCorruptDocument)

	_, err = imp.Import(ctx, Upload{Filename: "notes.txt", Content: []byte("hello")})
	assert.ErrorIs(t, err, ErrInvalidFileType)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

type failingWriter struct{}

func (failingWriter) Add(context.Context, *entities.Book) error {
	return errors.New("disk full")
}

func TestImport_WriteFailure(t *testing.T) {
	imp := New(failingWriter{}, nil)

	_, err := imp.Import(context.Background(), Upload{Filename: "a.epub", Content: epubBytes(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestImportFile(t *testing.T) {
	repo := setupTestDB(t)
	imp := New(repo, nil)
	path := filepath.Join(t.TempDir(), "Dune.epub")
	require.NoError(t, os.WriteFile(path, epubBytes(t), 0644))

	book, err := imp.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)

	_, err = imp.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.epub"))
	assert.Error(t, err)
}
