package render

import (
	"context"
	"errors"
)

var (
	// ErrTemplateUnavailable means the background template is missing or
	// cannot be read. It aborts the whole render step.
	ErrTemplateUnavailable = errors.New("template unavailable")
	// ErrOutputUnavailable means a document could not be written.
	ErrOutputUnavailable = errors.New("output unavailable")
)

// Style is a text style profile applied to a block.
type Style struct {
	FontFamily string
	Bold       bool
	Italic     bool
	// FontSize is in points.
	FontSize float64
	// Color is a CSS hex colour, e.g. "#000000".
	Color string
	// Subset asks the backend to embed only the glyphs used. Backends that
	// always subset may ignore it.
	Subset bool
}

// Margins are page margins in millimetres.
type Margins struct {
	Left  float64
	Top   float64
	Right float64
}

// Point is a position on the page in millimetres from the top-left corner.
type Point struct {
	X float64
	Y float64
}

// Block is a rich-text (HTML) block. A nil At places the block at the
// current flow position below the previous block.
type Block struct {
	HTML  string
	Style Style
	At    *Point
}

// TemplateID identifies an imported template page within one canvas.
type TemplateID int

// Canvas is the set of drawing primitives the renderer composes. One canvas
// produces one document.
type Canvas interface {
	// ImportTemplate loads the first page of the template at path.
	ImportTemplate(path string) (TemplateID, error)
	// AddPage starts a new page drawn over the given template.
	AddPage(tpl TemplateID) error
	// WriteBlock draws a rich-text block on the current page.
	WriteBlock(b Block) error
	// Save finalizes the document and writes it to path.
	Save(ctx context.Context, path string) error
}

// Backend creates canvases.
type Backend interface {
	NewCanvas(m Margins) (Canvas, error)
}
