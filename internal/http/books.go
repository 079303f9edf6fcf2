package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/epubreader/internal/covers"
	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/entities"
	"github.com/mrlokans/epubreader/internal/importer"
)

// BookResponse is a book without its content. The cover is served
// separately from CoverURL.
type BookResponse struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Author           string  `json:"author"`
	CoverURL         string  `json:"cover_url,omitempty"`
	CoverBlurHash    string  `json:"cover_blur_hash,omitempty"`
	AddedAt          int64   `json:"added_at"`
	LastReadPosition *string `json:"last_read_position,omitempty"`
}

func newBookResponse(b entities.Book) BookResponse {
	resp := BookResponse{
		ID:               b.ID,
		Title:            b.Title,
		Author:           b.Author,
		CoverBlurHash:    b.CoverBlurHash,
		AddedAt:          b.AddedAt,
		LastReadPosition: b.LastReadPosition,
	}
	if b.Cover != "" {
		resp.CoverURL = "/api/books/" + b.ID + "/cover"
	}
	return resp
}

type BooksController struct {
	books BookStore
	cache *covers.Cache
}

func NewBooksController(books BookStore, cache *covers.Cache) *BooksController {
	return &BooksController{books: books, cache: cache}
}

// GetAllBooks handles GET /api/books, most recently added first.
func (bc *BooksController) GetAllBooks(c *gin.Context) {
	books, err := bc.books.ListSummaries(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}

	resp := make([]BookResponse, 0, len(books))
	for _, b := range books {
		resp = append(resp, newBookResponse(b))
	}
	c.JSON(http.StatusOK, gin.H{
		"books": resp,
		"total": len(resp),
	})
}

// GetBook handles GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.books.Get(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondNotFound(c, "book")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, newBookResponse(*book))
}

// GetContent handles GET /api/books/:id/content and serves the EPUB file.
func (bc *BooksController) GetContent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	content, err := bc.books.Content(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondNotFound(c, "book")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get book content")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.epub"`, id))
	c.Data(http.StatusOK, importer.EPUBMediaType, content)
}

// ProgressRequest is the body of PUT /api/books/:id/progress.
type ProgressRequest struct {
	Position string `json:"position" validate:"required,startswith=epubcfi(,max=1024"`
}

// UpdateProgress handles PUT /api/books/:id/progress
func (bc *BooksController) UpdateProgress(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ProgressRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	exists, err := bc.books.Exists(ctx, id)
	if err != nil {
		respondInternalError(c, err, "check book")
		return
	}
	if !exists {
		respondNotFound(c, "book")
		return
	}

	if err := bc.books.UpdateProgress(ctx, id, req.Position); err != nil {
		respondInternalError(c, err, "update progress")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "last_read_position": req.Position})
}

// DeleteBook handles DELETE /api/books/:id. The book's highlights,
// bookmarks and cached cover go with it.
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := bc.books.Remove(c.Request.Context(), id); err != nil {
		respondInternalError(c, err, "delete book")
		return
	}

	if bc.cache != nil {
		if err := bc.cache.InvalidateCover(id); err != nil {
			log.Printf("Failed to remove cached cover of %s: %v", id, err)
		}
	}

	respondSuccess(c, "Book deleted")
}
