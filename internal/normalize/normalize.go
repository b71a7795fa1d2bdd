// Package normalize turns raw schedule rows into canonical model.Event
// records.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules"
	"github.com/olebedev/when/rules/en"

	"seminars/internal/model"
)

// CancelledMarker is the only Cancelled value that marks a seminar cancelled.
const CancelledMarker = "Y"

// ErrMalformedDate is returned when a row's Date cannot be parsed.
var ErrMalformedDate = errors.New("malformed date")

// Row is one source row keyed by the fixed column names.
type Row struct {
	Term        string
	Date        string
	TimeStart   string
	TimeEnd     string
	Speaker     string
	SpeakerRole string
	Title       string
	Location    string
	Notes       string
	Cancelled   string
}

// RowError attaches the 1-based source row number to a normalization error.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// dateLayouts are tried in order. Slash dates are month-first and dash/dot
// dates day-first, matching how the schedule spreadsheets have always been
// read.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"1/2/2006",
	"1/2/06",
	"2-1-2006",
	"2.1.2006",
	"2 January 2006",
	"Monday 2 January 2006",
	"Monday, 2 January 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"Mon 2 Jan 2006",
	"Mon, 2 Jan 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2-Jan-2006",
	"2-Jan-06",
}

var (
	// yearPattern captures the explicit four-digit year the fallback requires.
	yearPattern = regexp.MustCompile(`(?:^|[\s,])((?:19|20)\d{2})\.?$`)
	// weekdayPrefix is dropped before the fallback; the date alone decides.
	weekdayPrefix = regexp.MustCompile(`(?i)^(?:mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)[a-z]*\.?,?\s+`)
)

// Normalizer converts rows to events for one pipeline run.
type Normalizer struct {
	// Location is the single local zone dates are anchored in.
	Location *time.Location

	// Revision is the batch stamp copied onto every event.
	Revision string

	parser *when.Parser
}

// New returns a Normalizer for one run. The natural-language fallback only
// knows month/day phrases ("22nd of January"); relative phrases and slash
// dates are never handed to it.
func New(loc *time.Location, revision string) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	w := when.New(nil)
	w.Add(en.ExactMonthDate(rules.Override))
	return &Normalizer{
		Location: loc,
		Revision: revision,
		parser:   w,
	}
}

// Normalize converts a single row. All text fields are copied verbatim.
func (n *Normalizer) Normalize(row Row) (model.Event, error) {
	date, err := n.ParseDate(row.Date)
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		Date:        date,
		Start:       row.TimeStart,
		End:         row.TimeEnd,
		Speaker:     row.Speaker,
		SpeakerRole: row.SpeakerRole,
		Title:       row.Title,
		Location:    row.Location,
		Notes:       row.Notes,
		Cancelled:   IsCancelled(row.Cancelled),
		Term:        row.Term,
		Revision:    n.Revision,
	}, nil
}

// NormalizeAll converts every row, stopping at the first failure. The batch
// is all-or-nothing so no partial slice is returned on error.
func (n *Normalizer) NormalizeAll(rows []Row) ([]model.Event, error) {
	out := make([]model.Event, 0, len(rows))
	for i, row := range rows {
		ev, err := n.Normalize(row)
		if err != nil {
			return nil, &RowError{Row: i + 1, Err: err}
		}
		out = append(out, ev)
	}
	return out, nil
}

// ParseDate parses s into midnight of its calendar day in n.Location.
func (n *Normalizer) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrMalformedDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, n.Location); err == nil {
			return n.midnight(t), nil
		}
	}

	if t, ok := n.parseMonthDay(s); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
}

// parseMonthDay reads spelled-out dates such as "Wednesday 22nd January
// 2020" or "the twenty-second of January, 2020". The year must be written
// out; it anchors the parse, so the result depends on s alone.
func (n *Normalizer) parseMonthDay(s string) (time.Time, bool) {
	if n.parser == nil || strings.Contains(s, "/") {
		return time.Time{}, false
	}
	m := yearPattern.FindStringSubmatchIndex(s)
	if m == nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(s[m[2]:m[3]])
	if err != nil {
		return time.Time{}, false
	}
	rest := strings.TrimRight(strings.TrimSpace(s[:m[0]]), ",")
	rest = weekdayPrefix.ReplaceAllString(rest, "")
	rest = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(rest), "the "))
	if rest == "" {
		return time.Time{}, false
	}

	// The rule leaves the year alone and fills month and day, so a second
	// anchor only moves the result when the day was never given.
	var got []time.Time
	for _, day := range []int{1, 2} {
		r, err := n.parser.Parse(rest, time.Date(year, 1, day, 0, 0, 0, 0, n.Location))
		if err != nil || r == nil || strings.TrimSpace(r.Text) != rest {
			return time.Time{}, false
		}
		got = append(got, r.Time.In(n.Location))
	}
	t := got[0]
	if !t.Equal(got[1]) || t.Year() != year || t.Month() != monthIn(rest) {
		// Bare month name, or a day past the end of the month.
		return time.Time{}, false
	}
	return n.midnight(t), nil
}

// monthIn returns the month named in s, or zero.
func monthIn(s string) time.Month {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '.'
	})
	for _, w := range words {
		if m, ok := en.MONTH_OFFSET[w]; ok {
			return time.Month(m)
		}
		if m, ok := en.MONTH_OFFSET[strings.TrimSuffix(w, ".")]; ok {
			return time.Month(m)
		}
	}
	return 0
}

// IsCancelled reports whether the Cancelled column carries the exact marker.
func IsCancelled(v string) bool {
	return v == CancelledMarker
}
