package covers

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrInvalidBookID is returned for IDs that cannot name a cache file.
var ErrInvalidBookID = errors.New("invalid book id for cover cache")

// Cache keeps decoded book covers on disk so they can be served as files.
type Cache struct {
	cacheDir string
}

// NewCache creates a new cover cache at the specified directory.
func NewCache(cacheDir string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{cacheDir: cacheDir}, nil
}

// Cover is a cached cover file.
type Cover struct {
	Path        string
	ContentType string
}

// GetCover returns the cached cover of a book, decoding and caching the
// data: URI on first use. It returns a zero Cover when the book has none.
func (c *Cache) GetCover(bookID, coverURI string) (Cover, error) {
	if coverURI == "" {
		return Cover{}, nil
	}
	if err := checkBookID(bookID); err != nil {
		return Cover{}, err
	}

	hash := sha256.Sum256([]byte(coverURI))
	prefix := fmt.Sprintf("cover_%s_%x", bookID, hash[:8])

	if matches, _ := filepath.Glob(filepath.Join(c.cacheDir, prefix+".*")); len(matches) > 0 {
		return Cover{Path: matches[0], ContentType: contentTypeFor(matches[0])}, nil
	}

	_, data, err := ParseDataURI(coverURI)
	if err != nil {
		return Cover{}, err
	}
	// Trust the bytes over the declared media type.
	mt := mimetype.Detect(data)
	cachePath := filepath.Join(c.cacheDir, prefix+mt.Extension())

	if err := c.write(cachePath, data); err != nil {
		return Cover{}, err
	}
	return Cover{Path: cachePath, ContentType: mt.String()}, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// InvalidateCover removes the cached cover for a book.
func (c *Cache) InvalidateCover(bookID string) error {
	if err := checkBookID(bookID); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(c.cacheDir, fmt.Sprintf("cover_%s_*", bookID)))
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// write saves data through a temp file in the cache directory and renames
// it into place.
func (c *Cache) write(cachePath string, data []byte) error {
	tmpFile, err := os.CreateTemp(c.cacheDir, "cover_tmp_")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, cachePath)
}

func checkBookID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\*?[`) || id == "." || id == ".." {
		return ErrInvalidBookID
	}
	return nil
}

// CacheDir returns the cache directory path.
func (c *Cache) CacheDir() string {
	return c.cacheDir
}
