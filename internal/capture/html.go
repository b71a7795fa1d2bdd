package capture

import (
	"fmt"
	"strconv"
	"strings"

	"seminars/internal/render"
)

// HTML returns the printable document for the canvas. Each page is a sheet
// with its template as background; content taller than a sheet flows onto
// plain continuation pages.
func (c *htmlCanvas) HTML() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><style>\n")
	fmt.Fprintf(&b, "@page { size: %smm %smm; margin: 0; }\n", mm(PageWidthMM), mm(PageHeightMM))
	b.WriteString("html, body { margin: 0; padding: 0; background: transparent; }\n")
	fmt.Fprintf(&b, ".page { position: relative; box-sizing: border-box; width: %smm; min-height: %smm; "+
		"padding: %smm %smm 0 %smm; background-repeat: no-repeat; background-position: top left; "+
		"background-size: %smm %smm; break-after: page; }\n",
		mm(PageWidthMM), mm(PageHeightMM),
		mm(c.margins.Top), mm(c.margins.Right), mm(c.margins.Left),
		mm(PageWidthMM), mm(PageHeightMM))
	b.WriteString(".page:last-child { break-after: auto; }\n")
	b.WriteString("table { width: 100%; border-collapse: collapse; }\n")
	b.WriteString("td { vertical-align: top; padding: 0; }\n")
	b.WriteString("hr { border: 0; border-top: 0.3mm solid currentColor; margin: 1mm 0; }\n")
	b.WriteString("h1 { font-size: inherit; margin: 0 0 4mm 0; }\n")
	b.WriteString("</style></head><body>\n")

	for _, p := range c.pages {
		b.WriteString(`<div class="page"`)
		if p.background != "" {
			fmt.Fprintf(&b, ` style="background-image: url('%s');"`, p.background)
		}
		b.WriteString(">\n")
		for _, blk := range p.blocks {
			fmt.Fprintf(&b, "<div style=\"%s\">%s</div>\n", blockCSS(blk), blk.HTML)
		}
		b.WriteString("</div>\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

// blockCSS converts a style profile and optional position into inline CSS.
func blockCSS(blk render.Block) string {
	s := blk.Style
	parts := make([]string, 0, 8)
	if s.FontFamily != "" {
		parts = append(parts, "font-family: "+cssFamily(s.FontFamily))
	}
	if s.FontSize > 0 {
		parts = append(parts, "font-size: "+strconv.FormatFloat(s.FontSize, 'f', -1, 64)+"pt")
	}
	if s.Bold {
		parts = append(parts, "font-weight: bold")
	}
	if s.Italic {
		parts = append(parts, "font-style: italic")
	}
	if s.Color != "" {
		parts = append(parts, "color: "+s.Color)
	}
	if blk.At != nil {
		parts = append(parts, "position: absolute", "left: "+mm(blk.At.X)+"mm", "top: "+mm(blk.At.Y)+"mm")
	}
	return strings.Join(parts, "; ")
}

// cssFamily maps the document's font names onto installed families with a
// generic fallback.
func cssFamily(name string) string {
	switch strings.ToLower(name) {
	case "calibri":
		return "Calibri, Carlito, sans-serif"
	case "arial":
		return "Arial, 'Liberation Sans', Helvetica, sans-serif"
	default:
		return name + ", sans-serif"
	}
}

func mm(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
