// Package books provides database operations for the book collection.
//
// # Usage
//
//	repo := books.NewRepository(store.DB)
//	book, err := repo.Get(ctx, "0b8e...")
package books

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/entities"
)

// ErrMissingID is returned when a book without an ID is written.
var ErrMissingID = errors.New("book id is required")

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Add inserts the book, or fully replaces the stored book with the same ID.
func (r *Repository) Add(ctx context.Context, book *entities.Book) error {
	if book.ID == "" {
		return ErrMissingID
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(book).Error
}

// Get retrieves a book by ID. Returns database.ErrNotFound if it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// Exists reports whether a book with the given ID is stored.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Book{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ListAll returns every book, most recently added first.
func (r *Repository) ListAll(ctx context.Context) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.WithContext(ctx).Order("added_at DESC, id ASC").Find(&books).Error
	return books, err
}

// ListSummaries is ListAll without the book content, for listings.
func (r *Repository) ListSummaries(ctx context.Context) ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.WithContext(ctx).Omit("content").Order("added_at DESC, id ASC").Find(&books).Error
	return books, err
}

// Content returns the stored EPUB payload of a book.
func (r *Repository) Content(ctx context.Context, id string) ([]byte, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Select("id", "content").Where("id = ?", id).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return book.Content, nil
}

// Remove deletes a book together with its highlights and bookmarks.
// Removing a book that does not exist is not an error.
func (r *Repository) Remove(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", id).Delete(&entities.Highlight{}).Error; err != nil {
			return fmt.Errorf("delete highlights: %w", err)
		}
		if err := tx.Where("book_id = ?", id).Delete(&entities.Bookmark{}).Error; err != nil {
			return fmt.Errorf("delete bookmarks: %w", err)
		}
		return tx.Where("id = ?", id).Delete(&entities.Book{}).Error
	})
}

// UpdateProgress records the last read position of a book.
//
// The update touches only last_read_position in a single statement, so it
// cannot clobber other fields and concurrent updates resolve to the last
// write. Updating a book that does not exist is a no-op.
func (r *Repository) UpdateProgress(ctx context.Context, id, position string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Book{}).
		Where("id = ?", id).
		Update("last_read_position", position).Error
}
