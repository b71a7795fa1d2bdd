// Package render lays out one seminar document per term and draws it through
// a Backend.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appLog "seminars/internal/log"
	"seminars/internal/model"
)

// DefaultMargins mirror the printed template: the artwork occupies the top
// 50mm of the page.
var DefaultMargins = Margins{Left: 15, Top: 50, Right: 15}

// DefaultTitleStyle and DefaultBodyStyle are the two style profiles of the
// document: the title region uses the subset display font, the body plain
// text.
var (
	DefaultTitleStyle = Style{FontFamily: "calibri", Bold: true, FontSize: 24, Color: "#000000", Subset: true}
	DefaultBodyStyle  = Style{FontFamily: "arial", FontSize: 11, Color: "#000000"}
)

// DefaultCancellationNotice is the banner above a cancelled seminar.
const DefaultCancellationNotice = `<i><b>Please note:</b> the following seminar has been <b>CANCELLED</b>:</i>`

// Renderer writes the per-term documents of a dataset.
type Renderer struct {
	Backend Backend
	Layout  Layout
	Margins Margins

	// TemplatePath is the background artwork imported onto the first page.
	TemplatePath string
	// OutputDir receives the documents.
	OutputDir string
	// DocumentTitle prefixes every file name, e.g. "NPEU Seminars".
	DocumentTitle string
}

// FileName is the document name for a term and revision.
func FileName(title, term, revision string) string {
	return fmt.Sprintf("%s - %s %s.pdf", title, safeName(term), revision)
}

// safeName keeps a term usable as part of a file name.
func safeName(s string) string {
	return strings.NewReplacer("/", "-", `\`, "-", "\x00", "").Replace(s)
}

// CheckTemplate verifies the template can be opened before any document is
// drawn, so a missing template never leaves a partial set of documents.
func (r *Renderer) CheckTemplate() error {
	f, err := os.Open(r.TemplatePath)
	if err != nil {
		return fmt.Errorf("render: %w: %v", ErrTemplateUnavailable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("render: %w: %v", ErrTemplateUnavailable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("render: %w: %s is a directory", ErrTemplateUnavailable, r.TemplatePath)
	}
	return nil
}

// RenderAll writes one document per term and returns their paths in term
// order. It stops at the first failure.
func (r *Renderer) RenderAll(ctx context.Context, ds *model.Dataset) ([]string, error) {
	if err := r.CheckTemplate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("render: %w: %v", ErrOutputUnavailable, err)
	}

	paths := make([]string, 0, len(ds.Groups))
	for _, term := range ds.Terms() {
		path, err := r.RenderTerm(ctx, term, ds.Groups[term], ds.Revision)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// RenderTerm composes and writes the document for one term.
func (r *Renderer) RenderTerm(ctx context.Context, term string, events []model.Event, revision string) (string, error) {
	margins := r.Margins
	if margins == (Margins{}) {
		margins = DefaultMargins
	}

	canvas, err := r.Backend.NewCanvas(margins)
	if err != nil {
		return "", fmt.Errorf("render: new canvas: %w", err)
	}

	tpl, err := canvas.ImportTemplate(r.TemplatePath)
	if err != nil {
		return "", fmt.Errorf("render: %w: %v", ErrTemplateUnavailable, err)
	}
	if err := canvas.AddPage(tpl); err != nil {
		return "", fmt.Errorf("render: add page: %w", err)
	}

	titleStyle := r.Layout.TitleStyle
	if titleStyle == (Style{}) {
		titleStyle = DefaultTitleStyle
	}
	bodyStyle := r.Layout.BodyStyle
	if bodyStyle == (Style{}) {
		bodyStyle = DefaultBodyStyle
	}

	if err := canvas.WriteBlock(Block{HTML: r.Layout.TitleHTML(term), Style: titleStyle}); err != nil {
		return "", fmt.Errorf("render: title: %w", err)
	}

	layout := r.Layout
	if layout.MutedColor == "" {
		layout.MutedColor = "#777"
	}
	if layout.CancellationNotice == "" {
		layout.CancellationNotice = DefaultCancellationNotice
	}
	if err := canvas.WriteBlock(Block{HTML: layout.BodyHTML(events), Style: bodyStyle}); err != nil {
		return "", fmt.Errorf("render: body: %w", err)
	}

	path := filepath.Join(r.OutputDir, FileName(r.DocumentTitle, term, revision))
	if err := canvas.Save(ctx, path); err != nil {
		return "", fmt.Errorf("render: %w: %v", ErrOutputUnavailable, err)
	}

	appLog.Info("document written", "term", term, "events", len(events), "path", path)
	return path, nil
}
