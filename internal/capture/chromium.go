package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	appLog "seminars/internal/log"
	"seminars/internal/render"
)

// Page geometry (A4 portrait) in millimetres and inches.
const (
	PageWidthMM  = 210.0
	PageHeightMM = 297.0
	pageWidthIn  = PageWidthMM / 25.4
	pageHeightIn = PageHeightMM / 25.4

	DefaultTimeoutSec = 30
)

// PDFBackend draws documents as HTML and prints them to PDF with a headless
// Chromium instance driven by chromedp.
type PDFBackend struct {
	// Timeout bounds each document's print. If zero, DefaultTimeoutSec is used.
	Timeout time.Duration

	// ExecPath optionally points at a specific Chromium binary.
	ExecPath string
}

// NewCanvas implements render.Backend.
func (b *PDFBackend) NewCanvas(m render.Margins) (render.Canvas, error) {
	return &htmlCanvas{backend: b, margins: m}, nil
}

type htmlPage struct {
	background string // data URI, empty for a blank page
	blocks     []render.Block
}

// template is either an image inlined as a data URI or a PDF whose first page
// is stamped under the printed document.
type template struct {
	image string
	pdf   string
}

// htmlCanvas accumulates pages in memory; nothing touches Chromium until Save.
type htmlCanvas struct {
	backend   *PDFBackend
	margins   render.Margins
	templates []template
	pages     []*htmlPage

	// underlay is the PDF template shared by the document's pages, if any.
	underlay string
}

// ImportTemplate accepts a PDF, whose first page becomes the page background,
// or an image (PNG, JPEG or SVG) kept as a data URI.
func (c *htmlCanvas) ImportTemplate(path string) (render.TemplateID, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		if _, err := pdfPageCount(path); err != nil {
			return 0, fmt.Errorf("capture: failed to read template: %w", err)
		}
		c.templates = append(c.templates, template{pdf: path})
		return render.TemplateID(len(c.templates) - 1), nil
	}

	mt := mime.TypeByExtension(ext)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	if !strings.HasPrefix(mt, "image/") {
		return 0, fmt.Errorf("capture: unsupported template type %q for %s", filepath.Ext(path), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("capture: failed to read template: %w", err)
	}
	uri := "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
	c.templates = append(c.templates, template{image: uri})
	return render.TemplateID(len(c.templates) - 1), nil
}

func (c *htmlCanvas) AddPage(tpl render.TemplateID) error {
	if int(tpl) < 0 || int(tpl) >= len(c.templates) {
		return fmt.Errorf("capture: unknown template %d", tpl)
	}
	t := c.templates[tpl]
	if t.pdf != "" {
		if c.underlay != "" && c.underlay != t.pdf {
			return fmt.Errorf("capture: one PDF template per document, have %s", c.underlay)
		}
		c.underlay = t.pdf
	}
	c.pages = append(c.pages, &htmlPage{background: t.image})
	return nil
}

func (c *htmlCanvas) WriteBlock(b render.Block) error {
	if len(c.pages) == 0 {
		return fmt.Errorf("capture: no page to draw on")
	}
	p := c.pages[len(c.pages)-1]
	p.blocks = append(p.blocks, b)
	return nil
}

// Save prints the composed HTML to PDF and writes it to path.
func (c *htmlCanvas) Save(parentCtx context.Context, path string) error {
	if len(c.pages) == 0 {
		return fmt.Errorf("capture: document has no pages")
	}
	doc := c.HTML()

	timeout := c.backend.Timeout
	if timeout <= 0 {
		timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	allocCtx := parentCtx
	if c.backend.ExecPath != "" {
		opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.ExecPath(c.backend.ExecPath))
		var cancelAlloc context.CancelFunc
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(parentCtx, opts...)
		defer cancelAlloc()
	}

	// Create a new chromedp context.
	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// Apply timeout to the entire print sequence.
	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	var pdf []byte
	tasks := chromedp.Tasks{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if c.underlay == "" {
				return nil
			}
			return emulation.SetDefaultBackgroundColorOverride().
				WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0}).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(pageWidthIn).
				WithPaperHeight(pageHeightIn).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	// The page itself is printed without a fill, so the template shows
	// through beneath the text.
	if c.underlay != "" {
		var err error
		if pdf, err = underlay(pdf, c.underlay); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PDF: %w", err)
	}
	appLog.Debug("pdf printed", "path", path, "bytes", len(pdf), "pages", len(c.pages))
	return nil
}
