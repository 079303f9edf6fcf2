// Package database provides the local library store.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Shared handles (Open/Close), connection setup
//	├── migrations.go    # Versioned, additive schema history
//	├── books/           # Book CRUD and reading progress
//	├── annotations/     # Highlight and bookmark CRUD (generic over the kind)
//	└── settings/        # Key/value application settings
//
// # Schema history
//
//	v1  books (by added_at), highlights (by book_id)
//	v2  bookmarks (by book_id)
//	v3  settings, books.cover_blur_hash
//
// The persisted version lives in the schema_version table. Each step runs in
// its own transaction together with the version bump and only ever adds
// tables, columns or indexes, so data written by an older version stays
// readable after an upgrade.
//
// # Using Sub-packages
//
//	store, err := database.Open("./library.db")
//	defer store.Close()
//
//	booksRepo := books.NewRepository(store.DB)
//	highlights := annotations.NewHighlights(store.DB)
//	bookmarks := annotations.NewBookmarks(store.DB)
//
// Repositories translate gorm.ErrRecordNotFound into ErrNotFound so callers
// can treat a missing record as normal control flow:
//
//	book, err := booksRepo.Get(ctx, id)
//	if errors.Is(err, database.ErrNotFound) { ... }
package database
