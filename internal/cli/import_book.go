package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mrlokans/epubreader/internal/config"
	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/database/books"
	"github.com/mrlokans/epubreader/internal/importer"
)

// ImportCommand adds EPUB files to the library from the command line.
type ImportCommand struct {
	Files        []string
	DatabasePath string
	Title        string
	Author       string
	DryRun       bool

	Out io.Writer
}

func NewImportCommand() *ImportCommand {
	return &ImportCommand{Out: os.Stdout}
}

func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)

	var file string
	fs.StringVar(&file, "file", "", "Path to an EPUB file (required unless files are given as arguments)")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the library database")
	fs.StringVar(&cmd.Title, "title", "", "Title to store instead of the one derived from the file name")
	fs.StringVar(&cmd.Author, "author", "", "Author to store")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Validate the files without storing them")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import -file <book.epub> [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s import [options] <book.epub>...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import EPUB files into the local library.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if file != "" {
		cmd.Files = append(cmd.Files, file)
	}
	cmd.Files = append(cmd.Files, fs.Args()...)

	if len(cmd.Files) == 0 {
		return fmt.Errorf("required flag -file not provided")
	}
	if len(cmd.Files) > 1 && (cmd.Title != "" || cmd.Author != "") {
		return fmt.Errorf("-title and -author can only be used with a single file")
	}
	return nil
}

func (cmd *ImportCommand) Run() error {
	ctx := context.Background()

	store, err := database.Open(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	imp := importer.New(books.NewRepository(store.DB), nil)

	failed := 0
	for _, path := range cmd.Files {
		if err := cmd.importOne(ctx, imp, path); err != nil {
			fmt.Fprintf(cmd.Out, "FAILED %s: %v\n", path, err)
			failed++
		}
	}

	fmt.Fprintf(cmd.Out, "\nImported %d of %d files\n", len(cmd.Files)-failed, len(cmd.Files))
	if failed > 0 {
		return fmt.Errorf("%d files could not be imported", failed)
	}
	return nil
}

func (cmd *ImportCommand) importOne(ctx context.Context, imp *importer.Importer, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	upload := importer.Upload{
		Filename: filepath.Base(path),
		Content:  content,
		Title:    cmd.Title,
		Author:   cmd.Author,
	}

	if cmd.DryRun {
		if err := importer.Validate(upload); err != nil {
			return err
		}
		fmt.Fprintf(cmd.Out, "OK     %s (dry run)\n", path)
		return nil
	}

	book, err := imp.Import(ctx, upload)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Out, "OK     %s -> %s %q\n", path, book.ID, book.Title)
	return nil
}
