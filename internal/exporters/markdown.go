package exporters

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mrlokans/epubreader/internal/entities"
)

var colorNames = map[string]string{
	entities.HighlightColorYellow: "yellow",
	entities.HighlightColorGreen:  "green",
	entities.HighlightColorBlue:   "blue",
}

type MarkdownExporter struct {
	ExportDir string
	now       func() time.Time
}

func NewMarkdownExporter(exportDir string) *MarkdownExporter {
	return &MarkdownExporter{ExportDir: exportDir, now: time.Now}
}

// GenerateMarkdown renders a book's highlights and bookmarks, newest first.
func GenerateMarkdown(b AnnotatedBook, exportedAt time.Time) string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "---\n")
	fmt.Fprintf(&builder, "content_type: book_annotations\n")
	fmt.Fprintf(&builder, "book_id: %s\n", b.Book.ID)
	fmt.Fprintf(&builder, "exported_at: %s\n", exportedAt.Format("2006-01-02"))
	fmt.Fprintf(&builder, "title: \"%s\"\n", strings.ReplaceAll(b.Book.Title, "\"", "\\\""))
	fmt.Fprintf(&builder, "author: \"%s\"\n", strings.ReplaceAll(b.Book.Author, "\"", "\\\""))
	fmt.Fprintf(&builder, "tags: [highlights, books]\n")
	fmt.Fprintf(&builder, "---\n\n")

	highlights := append([]entities.Highlight(nil), b.Highlights...)
	entities.SortHighlightsNewestFirst(highlights)
	fmt.Fprintf(&builder, "## Highlights\n\n")
	for _, h := range highlights {
		fmt.Fprintf(&builder, "### %s", formatMillis(h.CreatedAt))
		if name, ok := colorNames[h.Color]; ok {
			fmt.Fprintf(&builder, " (%s)", name)
		}
		fmt.Fprintf(&builder, "\n\n")
		fmt.Fprintf(&builder, "> %s\n\n", strings.ReplaceAll(h.Text, "\n", "\n> "))
		if h.Note != "" {
			fmt.Fprintf(&builder, "**Note:** %s\n\n", h.Note)
		}
		fmt.Fprintf(&builder, "`%s`\n\n", h.CFIRange)
	}

	if len(b.Bookmarks) > 0 {
		bookmarks := append([]entities.Bookmark(nil), b.Bookmarks...)
		entities.SortBookmarksNewestFirst(bookmarks)
		fmt.Fprintf(&builder, "## Bookmarks\n\n")
		for _, bm := range bookmarks {
			label := bm.Label
			if label == "" {
				label = "Bookmark"
			}
			fmt.Fprintf(&builder, "- %s (%s) `%s`\n", label, formatMillis(bm.CreatedAt), bm.CFI)
		}
		fmt.Fprintf(&builder, "\n")
	}

	return builder.String()
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}

var unsafeFilename = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]+`)

// Filename returns the markdown file name used for a book.
func Filename(book entities.Book) string {
	name := strings.TrimSpace(unsafeFilename.ReplaceAllString(book.Title, " "))
	if name == "" || strings.Trim(name, ".") == "" {
		name = book.ID
	}
	return name + ".md"
}

// ExportBook writes one book and returns the file path.
func (exporter *MarkdownExporter) ExportBook(b AnnotatedBook) (string, error) {
	if err := os.MkdirAll(exporter.ExportDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	outputPath := filepath.Join(exporter.ExportDir, Filename(b.Book))
	content := GenerateMarkdown(b, exporter.now())
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return "", err
	}
	return outputPath, nil
}

// Export writes every book. A book that fails is counted and skipped.
func (exporter *MarkdownExporter) Export(books []AnnotatedBook) (ExportResult, error) {
	result := ExportResult{}
	for _, b := range books {
		path, err := exporter.ExportBook(b)
		if err != nil {
			log.Printf("Failed to export %q: %v", b.Book.Title, err)
			result.BooksFailed++
			continue
		}
		result.BooksProcessed++
		result.HighlightsProcessed += len(b.Highlights)
		result.BookmarksProcessed += len(b.Bookmarks)
		result.Files = append(result.Files, path)
	}

	if result.BooksProcessed == 0 && result.BooksFailed > 0 {
		return result, fmt.Errorf("failed to export %d books", result.BooksFailed)
	}
	return result, nil
}
