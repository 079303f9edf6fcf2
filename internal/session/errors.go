package session

import "errors"

var (
	// ErrBookNotFound is returned by Open when the book is not in the library.
	ErrBookNotFound = errors.New("book not found")

	// ErrNotReady is returned when an operation needs an open book.
	ErrNotReady = errors.New("no book is open")

	// ErrNoSelection is returned when a highlight is requested without selected text.
	ErrNoSelection = errors.New("no text is selected")

	// ErrInvalidColor is returned for highlight colours outside the palette.
	ErrInvalidColor = errors.New("color is not in the highlight palette")

	// ErrAlreadyOpen is returned by Open when the session already holds a book.
	ErrAlreadyOpen = errors.New("session already has a book open")

	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("session is closed")
)
