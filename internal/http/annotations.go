package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mrlokans/epubreader/internal/entities"
)

// AnnotationsController serves highlights and bookmarks.
type AnnotationsController struct {
	books      BookStore
	highlights AnnotationStore[entities.Highlight]
	bookmarks  AnnotationStore[entities.Bookmark]

	now   func() time.Time
	newID func() string
}

func NewAnnotationsController(books BookStore, highlights AnnotationStore[entities.Highlight], bookmarks AnnotationStore[entities.Bookmark]) *AnnotationsController {
	return &AnnotationsController{
		books:      books,
		highlights: highlights,
		bookmarks:  bookmarks,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// requireBook responds 404 and returns false when the book does not exist.
func (ac *AnnotationsController) requireBook(c *gin.Context, id string) bool {
	exists, err := ac.books.Exists(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "check book")
		return false
	}
	if !exists {
		respondNotFound(c, "book")
		return false
	}
	return true
}

// ListHighlights handles GET /api/books/:id/highlights, newest first.
func (ac *AnnotationsController) ListHighlights(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok || !ac.requireBook(c, bookID) {
		return
	}

	items, err := ac.highlights.ListForBook(c.Request.Context(), bookID)
	if err != nil {
		respondInternalError(c, err, "list highlights")
		return
	}
	entities.SortHighlightsNewestFirst(items)
	c.JSON(http.StatusOK, gin.H{"highlights": items, "total": len(items)})
}

// CreateHighlightRequest is the body of POST /api/books/:id/highlights.
type CreateHighlightRequest struct {
	CFIRange string `json:"cfi_range" validate:"required,startswith=epubcfi(,max=1024"`
	Text     string `json:"text"`
	Color    string `json:"color" validate:"required,oneof=#fef08a #86efac #93c5fd"`
	Note     string `json:"note"`
}

// CreateHighlight handles POST /api/books/:id/highlights
func (ac *AnnotationsController) CreateHighlight(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CreateHighlightRequest
	if !bindJSON(c, &req) || !ac.requireBook(c, bookID) {
		return
	}

	h := &entities.Highlight{
		ID:        ac.newID(),
		BookID:    bookID,
		CFIRange:  req.CFIRange,
		Text:      req.Text,
		Color:     req.Color,
		Note:      req.Note,
		CreatedAt: ac.now().UnixMilli(),
	}
	if err := ac.highlights.Add(c.Request.Context(), h); err != nil {
		respondInternalError(c, err, "create highlight")
		return
	}
	respondCreated(c, h)
}

// DeleteHighlight handles DELETE /api/highlights/:id. Deleting a missing
// highlight succeeds, like deleting a missing book.
func (ac *AnnotationsController) DeleteHighlight(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ac.highlights.Remove(c.Request.Context(), id); err != nil {
		respondInternalError(c, err, "delete highlight")
		return
	}
	respondSuccess(c, "Highlight deleted")
}

// ListBookmarks handles GET /api/books/:id/bookmarks, newest first.
func (ac *AnnotationsController) ListBookmarks(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok || !ac.requireBook(c, bookID) {
		return
	}

	items, err := ac.bookmarks.ListForBook(c.Request.Context(), bookID)
	if err != nil {
		respondInternalError(c, err, "list bookmarks")
		return
	}
	entities.SortBookmarksNewestFirst(items)
	c.JSON(http.StatusOK, gin.H{"bookmarks": items, "total": len(items)})
}

// CreateBookmarkRequest is the body of POST /api/books/:id/bookmarks.
type CreateBookmarkRequest struct {
	CFI   string `json:"cfi" validate:"required,startswith=epubcfi(,max=1024"`
	Label string `json:"label" validate:"max=512"`
}

// CreateBookmark handles POST /api/books/:id/bookmarks
func (ac *AnnotationsController) CreateBookmark(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CreateBookmarkRequest
	if !bindJSON(c, &req) || !ac.requireBook(c, bookID) {
		return
	}

	b := &entities.Bookmark{
		ID:        ac.newID(),
		BookID:    bookID,
		CFI:       req.CFI,
		Label:     req.Label,
		CreatedAt: ac.now().UnixMilli(),
	}
	if err := ac.bookmarks.Add(c.Request.Context(), b); err != nil {
		respondInternalError(c, err, "create bookmark")
		return
	}
	respondCreated(c, b)
}

// DeleteBookmark handles DELETE /api/bookmarks/:id. Idempotent.
func (ac *AnnotationsController) DeleteBookmark(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ac.bookmarks.Remove(c.Request.Context(), id); err != nil {
		respondInternalError(c, err, "delete bookmark")
		return
	}
	respondSuccess(c, "Bookmark deleted")
}
