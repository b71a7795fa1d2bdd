package render

import (
	"fmt"
	"html"
	"strings"

	"seminars/internal/model"
)

// Layout holds the fixed texts and styles of the seminar document.
type Layout struct {
	SeriesTitle string
	// DefaultVenue is omitted from rendered rows; any other location is shown.
	DefaultVenue string
	// CancellationNotice is the HTML banner placed above a cancelled seminar.
	CancellationNotice string

	TitleStyle Style
	BodyStyle  Style
	// MutedColor replaces the body colour on cancelled rows.
	MutedColor string
}

const (
	emphasisFont = "font-size: 13pt;"
	roleFont     = "font-size: 10pt;"
	rule         = `<tr><td colspan="2"><hr /></td></tr>`
	spacedRule   = `<tr><td colspan="2"><br /><hr /></td></tr>`
)

// TitleHTML is the centered heading block.
func (l Layout) TitleHTML(term string) string {
	return `<h1 style="text-align: center;">` + esc(l.SeriesTitle) + `<br />` + esc(term) + `<br /></h1>`
}

// BodyHTML lays out one two-column row per event, separated by rules.
func (l Layout) BodyHTML(events []model.Event) string {
	var b strings.Builder
	b.WriteString("<table>")
	b.WriteString(rule)
	for _, ev := range events {
		l.writeRow(&b, ev)
		b.WriteString(spacedRule)
	}
	b.WriteString("</table>")
	return b.String()
}

func (l Layout) writeRow(b *strings.Builder, ev model.Event) {
	if ev.Cancelled {
		b.WriteString(`<tr><td colspan="2" style="text-align: center">` + l.CancellationNotice + `<br /></td></tr>`)
		fmt.Fprintf(b, `<tr style="color: %s">`, l.MutedColor)
	} else {
		b.WriteString("<tr>")
	}

	// Left column: month, weekday + day with ordinal, time range.
	b.WriteString(`<td width="20%">`)
	b.WriteString(`<b style="` + emphasisFont + `">` + ev.Date.Format("January") + `</b><br />`)
	b.WriteString(ev.Date.Format("Mon") + " " + fmt.Sprint(ev.Date.Day()) + "<sup>" + Ordinal(ev.Date.Day()) + "</sup>")
	b.WriteString("<br /><br />" + esc(ev.Start) + " – " + esc(ev.End))
	b.WriteString("</td>")

	// Right column: speaker, role, title, then the optional lines.
	b.WriteString(`<td width="80%">`)
	b.WriteString(`<b style="` + emphasisFont + `">` + esc(ev.Speaker) + `</b><br />`)
	b.WriteString(`<i style="` + roleFont + `">` + esc(ev.SpeakerRole) + `</i><br />`)
	b.WriteString(esc(ev.Title))
	if l.ShowsLocation(ev) {
		b.WriteString(`<br /><b>` + esc(ev.Location) + `</b>`)
	}
	if ev.Notes != "" {
		b.WriteString("<br />" + esc(ev.Notes))
	}
	b.WriteString("</td></tr>")
}

// ShowsLocation reports whether ev's location line is rendered.
func (l Layout) ShowsLocation(ev model.Event) bool {
	return ev.Location != l.DefaultVenue
}

// Ordinal returns the English ordinal suffix for a day of month.
func Ordinal(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func esc(s string) string {
	return html.EscapeString(s)
}
