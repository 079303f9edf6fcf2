package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/epubreader/internal/covers"
	"github.com/mrlokans/epubreader/internal/database"
)

// CoversController handles book cover requests.
type CoversController struct {
	cache *covers.Cache
	books BookStore
}

// NewCoversController creates a new CoversController.
func NewCoversController(cache *covers.Cache, books BookStore) *CoversController {
	return &CoversController{
		cache: cache,
		books: books,
	}
}

// GetCover serves a cached book cover image.
// GET /api/books/:id/cover
func (cc *CoversController) GetCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := cc.books.Get(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		respondInternalError(c, err, "get book cover")
		return
	}

	if book.Cover == "" {
		c.Status(http.StatusNotFound)
		return
	}

	cover, err := cc.cache.GetCover(id, book.Cover)
	if err != nil || cover.Path == "" {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Content-Type", cover.ContentType)
	c.Header("Cache-Control", "private, max-age=86400")
	c.File(cover.Path)
}
