package entities

import "sort"

// Highlight palette. The selection menu offers exactly these colours.
const (
	HighlightColorYellow = "#fef08a"
	HighlightColorGreen  = "#86efac"
	HighlightColorBlue   = "#93c5fd"
)

// HighlightColors lists the palette in menu order.
var HighlightColors = []string{HighlightColorYellow, HighlightColorGreen, HighlightColorBlue}

// IsHighlightColor reports whether color belongs to the highlight palette.
func IsHighlightColor(color string) bool {
	for _, c := range HighlightColors {
		if c == color {
			return true
		}
	}
	return false
}

// Book is an imported EPUB together with its reading position.
//
// Content is write-once: it is set at import and never updated afterwards.
// LastReadPosition is an engine location (CFI) and is the only field that
// changes after import.
type Book struct {
	ID               string  `gorm:"primaryKey;size:64" json:"id" validate:"required"`
	Title            string  `gorm:"size:512" json:"title"`
	Author           string  `gorm:"size:256" json:"author"`
	Cover            string  `gorm:"type:text" json:"cover,omitempty"`           // data: URI
	CoverBlurHash    string  `gorm:"size:64" json:"cover_blur_hash,omitempty"` // placeholder for Cover
	Content          []byte  `gorm:"type:blob" json:"-"`
	AddedAt          int64   `gorm:"not null;index:idx_books_by_added" json:"added_at" validate:"required"`
	LastReadPosition *string `gorm:"size:1024" json:"last_read_position,omitempty"`
}

func (Book) TableName() string {
	return "books"
}

// Highlight is a coloured text range inside a book. Text is a snapshot of
// the range taken at creation and is never re-derived.
type Highlight struct {
	ID        string `gorm:"primaryKey;size:64" json:"id" validate:"required"`
	BookID    string `gorm:"not null;size:64;index:idx_highlights_by_book" json:"book_id" validate:"required"`
	CFIRange  string `gorm:"column:cfi_range;size:1024" json:"cfi_range" validate:"required"`
	Text      string `gorm:"type:text" json:"text"`
	Color     string `gorm:"size:16" json:"color" validate:"required,oneof=#fef08a #86efac #93c5fd"`
	Note      string `gorm:"type:text" json:"note,omitempty"`
	CreatedAt int64  `gorm:"autoCreateTime:false" json:"created_at"`
}

func (Highlight) TableName() string {
	return "highlights"
}

// Bookmark is a single saved location. Label is derived from the chapter
// title (or page number) when the bookmark is made and is not kept in sync.
type Bookmark struct {
	ID        string `gorm:"primaryKey;size:64" json:"id" validate:"required"`
	BookID    string `gorm:"not null;size:64;index:idx_bookmarks_by_book" json:"book_id" validate:"required"`
	CFI       string `gorm:"column:cfi;size:1024" json:"cfi" validate:"required"`
	Label     string `gorm:"size:512" json:"label,omitempty"`
	CreatedAt int64  `gorm:"autoCreateTime:false" json:"created_at"`
}

func (Bookmark) TableName() string {
	return "bookmarks"
}

// SortHighlightsNewestFirst orders highlights by creation time, newest first.
func SortHighlightsNewestFirst(items []Highlight) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt > items[j].CreatedAt })
}

// SortBookmarksNewestFirst orders bookmarks by creation time, newest first.
func SortBookmarksNewestFirst(items []Bookmark) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt > items[j].CreatedAt })
}

// SchemaVersion holds the version of the persisted schema. The table has a
// single row with ID 1.
type SchemaVersion struct {
	ID      uint `gorm:"primaryKey"`
	Version int  `gorm:"not null"`
}

func (SchemaVersion) TableName() string {
	return "schema_version"
}
