// Package importer turns uploaded EPUB files into library books.
//
// An import either stores one complete Book in a single write or stores
// nothing. Metadata comes from the upload itself and, when a rendering
// engine is configured, from the document.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/mrlokans/epubreader/internal/covers"
	"github.com/mrlokans/epubreader/internal/engine"
	"github.com/mrlokans/epubreader/internal/entities"
	"github.com/mrlokans/epubreader/internal/validation"
)

// EPUBMediaType is the registered media type of EPUB files.
const EPUBMediaType = "application/epub+zip"

var (
	// ErrInvalidFileType is returned for uploads that are not EPUB files.
	ErrInvalidFileType = errors.New("please select a valid EPUB file")

	// ErrCorruptDocument is returned when the file claims to be an EPUB but
	// cannot be read as one.
	ErrCorruptDocument = errors.New("the EPUB file could not be read")
)

// Upload is a file handed to the importer.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte

	// Optional metadata supplied alongside the file. Document metadata is
	// only used for fields left empty here.
	Title  string
	Author string
	Cover  string // data: URI
}

// BookWriter stores imported books.
type BookWriter interface {
	Add(ctx context.Context, book *entities.Book) error
}

// Importer validates uploads and stores them as books.
type Importer struct {
	books  BookWriter
	engine engine.Engine

	now   func() time.Time
	newID func() string
}

// New creates an importer. eng may be nil, in which case metadata comes
// only from the upload.
func New(books BookWriter, eng engine.Engine) *Importer {
	return &Importer{
		books:  books,
		engine: eng,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Validate checks that u looks like an EPUB file. Either the file name or
// the declared content type must say EPUB, and the bytes must be a zip
// container.
func Validate(u Upload) error {
	declared := strings.HasSuffix(strings.ToLower(u.Filename), ".epub") ||
		strings.EqualFold(strings.TrimSpace(strings.Split(u.ContentType, ";")[0]), EPUBMediaType)
	if !declared {
		return ErrInvalidFileType
	}
	if len(u.Content) == 0 {
		return fmt.Errorf("%w: file is empty", ErrCorruptDocument)
	}

	mt := mimetype.Detect(u.Content)
	if !mt.Is(EPUBMediaType) && !mt.Is("application/zip") {
		return fmt.Errorf("%w: content is %s", ErrCorruptDocument, mt.String())
	}
	return nil
}

// Import validates u and stores it as a new book.
func (i *Importer) Import(ctx context.Context, u Upload) (*entities.Book, error) {
	if err := Validate(u); err != nil {
		return nil, err
	}

	book := &entities.Book{
		ID:      i.newID(),
		Title:   strings.TrimSpace(u.Title),
		Author:  strings.TrimSpace(u.Author),
		Cover:   u.Cover,
		Content: u.Content,
		AddedAt: i.now().UnixMilli(),
	}

	if i.engine != nil {
		if err := i.readDocument(ctx, book); err != nil {
			return nil, err
		}
	}

	if book.Title == "" {
		book.Title = titleFromFilename(u.Filename)
	}
	i.attachCover(book)

	if err := validation.Struct(book); err != nil {
		return nil, err
	}
	if err := i.books.Add(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to save book: %w", err)
	}

	log.Printf("[IMPORT] Imported %q by %q as %s (%d bytes)", book.Title, book.Author, book.ID, len(book.Content))
	return book, nil
}

// ImportFile imports the EPUB file at path.
func (i *Importer) ImportFile(ctx context.Context, path string) (*entities.Book, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return i.Import(ctx, Upload{Filename: filepath.Base(path), Content: content})
}

// readDocument fills empty metadata from the document. A document the
// engine cannot load is corrupt; a missing cover is not an error.
func (i *Importer) readDocument(ctx context.Context, book *entities.Book) error {
	doc, err := i.engine.Load(ctx, book.Content)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	defer doc.Destroy()

	meta, err := doc.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if book.Title == "" {
		book.Title = strings.TrimSpace(meta.Title)
	}
	if book.Author == "" {
		book.Author = strings.TrimSpace(meta.Author)
	}

	if book.Cover == "" {
		cover, err := doc.Cover(ctx)
		if err != nil {
			log.Printf("[IMPORT] Could not load cover: %v", err)
		} else {
			book.Cover = cover
		}
	}
	return nil
}

// attachCover drops unusable covers and computes the placeholder.
func (i *Importer) attachCover(book *entities.Book) {
	if book.Cover == "" {
		return
	}
	if _, _, err := covers.ParseDataURI(book.Cover); err != nil {
		log.Printf("[IMPORT] Ignoring cover of %q: %v", book.Title, err)
		book.Cover = ""
		return
	}
	hash, err := covers.BlurHashFromDataURI(book.Cover)
	if err != nil {
		log.Printf("[IMPORT] Could not compute cover placeholder for %q: %v", book.Title, err)
		return
	}
	book.CoverBlurHash = hash
}

func titleFromFilename(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}
