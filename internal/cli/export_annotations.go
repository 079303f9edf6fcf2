package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/epubreader/internal/config"
	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/database/annotations"
	"github.com/mrlokans/epubreader/internal/database/books"
	"github.com/mrlokans/epubreader/internal/exporters"
)

// ExportCommand writes highlights and bookmarks as markdown files.
type ExportCommand struct {
	BookID       string
	All          bool
	OutputDir    string
	DatabasePath string

	Out io.Writer
}

func NewExportCommand() *ExportCommand {
	return &ExportCommand{Out: os.Stdout}
}

func (cmd *ExportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)

	fs.StringVar(&cmd.BookID, "book", "", "ID of the book to export")
	fs.BoolVar(&cmd.All, "all", false, "Export every book that has annotations")
	fs.StringVar(&cmd.OutputDir, "output", config.DefaultExportDir, "Output directory for markdown files")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the library database")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s export (-book <id> | -all) [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Export highlights and bookmarks as markdown.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.BookID == "" && !cmd.All {
		return fmt.Errorf("either -book or -all is required")
	}
	if cmd.BookID != "" && cmd.All {
		return fmt.Errorf("-book and -all cannot be combined")
	}
	if cmd.OutputDir == "" {
		return fmt.Errorf("-output must not be empty")
	}
	return nil
}

func (cmd *ExportCommand) Run() error {
	ctx := context.Background()

	store, err := database.Open(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	library := exporters.NewLibrary(
		books.NewRepository(store.DB),
		annotations.NewHighlights(store.DB),
		annotations.NewBookmarks(store.DB),
	)

	var selected []exporters.AnnotatedBook
	if cmd.All {
		selected, err = library.All(ctx)
		if err != nil {
			return fmt.Errorf("failed to load annotations: %w", err)
		}
	} else {
		book, err := library.Book(ctx, cmd.BookID)
		if err != nil {
			return fmt.Errorf("failed to load book %s: %w", cmd.BookID, err)
		}
		selected = append(selected, book)
	}

	if len(selected) == 0 {
		fmt.Fprintln(cmd.Out, "No annotated books to export")
		return nil
	}

	result, err := exporters.NewMarkdownExporter(cmd.OutputDir).Export(selected)
	if err != nil {
		return err
	}

	for _, path := range result.Files {
		fmt.Fprintf(cmd.Out, "Wrote %s\n", path)
	}
	fmt.Fprintf(cmd.Out, "\nExported %d books (%d highlights, %d bookmarks)\n",
		result.BooksProcessed, result.HighlightsProcessed, result.BookmarksProcessed)
	if result.BooksFailed > 0 {
		fmt.Fprintf(cmd.Out, "%d books failed\n", result.BooksFailed)
	}
	return nil
}
