// Package annotations provides database operations for highlights and bookmarks.
//
// Highlights and bookmarks live in independent collections with the same
// access pattern, so a single generic Repository serves both:
//
//	highlights := annotations.NewHighlights(store.DB)
//	items, err := highlights.ListForBook(ctx, bookID)
package annotations

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/entities"
)

// Kind is the set of annotation entities stored by a Repository.
type Kind interface {
	entities.Highlight | entities.Bookmark
}

// Repository handles database operations for one annotation kind.
type Repository[T Kind] struct {
	db *gorm.DB
}

// NewRepository creates a repository for annotations of kind T.
func NewRepository[T Kind](db *gorm.DB) *Repository[T] {
	return &Repository[T]{db: db}
}

// NewHighlights creates a highlights repository.
func NewHighlights(db *gorm.DB) *Repository[entities.Highlight] {
	return NewRepository[entities.Highlight](db)
}

// NewBookmarks creates a bookmarks repository.
func NewBookmarks(db *gorm.DB) *Repository[entities.Bookmark] {
	return NewRepository[entities.Bookmark](db)
}

// Add inserts the annotation or replaces the stored one with the same ID.
func (r *Repository[T]) Add(ctx context.Context, item *T) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(item).Error
}

// Get retrieves an annotation by ID. Returns database.ErrNotFound if it does not exist.
func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	var item T
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListForBook returns every annotation of the book. The order is unspecified;
// presentation order is up to the caller.
func (r *Repository[T]) ListForBook(ctx context.Context, bookID string) ([]T, error) {
	items := []T{}
	err := r.db.WithContext(ctx).Where("book_id = ?", bookID).Find(&items).Error
	return items, err
}

// Remove deletes an annotation. Removing a missing annotation is not an error.
func (r *Repository[T]) Remove(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T)).Error
}

// RemoveForBook deletes every annotation of the book.
func (r *Repository[T]) RemoveForBook(ctx context.Context, bookID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("book_id = ?", bookID).Delete(new(T))
	return result.RowsAffected, result.Error
}
