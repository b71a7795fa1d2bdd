// Package token derives the calendar-invite record for an event and packs it
// into the opaque event code consumed by the external calendar service.
//
// Wire format: url.QueryEscape(base64.StdEncoding(json(CalendarData))).
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"seminars/internal/model"
)

var (
	// ErrMalformedTime is returned when a start/end string is not a time of day.
	ErrMalformedTime = errors.New("malformed time")
	// ErrEncoding is returned when a record cannot be serialized or a token
	// cannot be decoded.
	ErrEncoding = errors.New("token encoding")
)

// CalendarData is the record carried inside a token. Start and End are Unix
// seconds.
type CalendarData struct {
	Alias       string `json:"alias"`
	Description string `json:"description"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Location    string `json:"location"`
	Summary     string `json:"summary"`
}

// Encoder holds the fixed texts woven into every record.
type Encoder struct {
	SeriesTitle   string // "NPEU Seminar Series"
	SummaryPrefix string // "NPEU Seminar: "
	AliasPrefix   string // "npeu-seminar-"
	Boilerplate   string // "All welcome."

	// Location is the zone start/end times of day are read in.
	Location *time.Location
}

// Record builds the calendar record for ev without encoding it.
func (e *Encoder) Record(ev model.Event) (CalendarData, error) {
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	start, err := At(ev.Date, ev.Start, loc)
	if err != nil {
		return CalendarData{}, fmt.Errorf("token: start: %w", err)
	}
	end, err := At(ev.Date, ev.End, loc)
	if err != nil {
		return CalendarData{}, fmt.Errorf("token: end: %w", err)
	}

	return CalendarData{
		Alias:       e.Alias(ev.Date),
		Description: html.EscapeString(e.Description(ev)),
		Start:       start.Unix(),
		End:         end.Unix(),
		Location:    ev.Location,
		Summary:     e.SummaryPrefix + ev.Speaker,
	}, nil
}

// Encode returns ev with its Token set.
func (e *Encoder) Encode(ev model.Event) (model.Event, error) {
	rec, err := e.Record(ev)
	if err != nil {
		return ev, err
	}
	tok, err := Pack(rec)
	if err != nil {
		return ev, err
	}
	ev.Token = tok
	return ev, nil
}

// EncodeAll encodes every event, aborting on the first failure.
func (e *Encoder) EncodeAll(evs []model.Event) ([]model.Event, error) {
	out := make([]model.Event, 0, len(evs))
	for i, ev := range evs {
		enc, err := e.Encode(ev)
		if err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i+1, ev.Speaker, err)
		}
		out = append(out, enc)
	}
	return out, nil
}

// Description is the plain-text invite body before HTML escaping. Speaker and
// title carry markdown-style emphasis.
func (e *Encoder) Description(ev model.Event) string {
	var b strings.Builder
	b.WriteString(e.SeriesTitle + " " + ev.Term)
	b.WriteString("\n\n*" + ev.Speaker + "*")
	b.WriteString("\n(" + ev.SpeakerRole + ")")
	b.WriteString("\n\n_" + ev.Title + "_")
	b.WriteString("\n\n" + e.Boilerplate)
	if ev.Notes != "" {
		b.WriteString("\n\n" + ev.Notes)
	}
	return b.String()
}

// Alias depends only on the calendar date so repeated runs reconcile to the
// same external event.
func (e *Encoder) Alias(date time.Time) string {
	return e.AliasPrefix + date.Format("2006-01-02")
}

// Pack serializes rec into a token.
func Pack(rec CalendarData) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return url.QueryEscape(base64.StdEncoding.EncodeToString(data)), nil
}

// Decode reverses Pack.
func Decode(tok string) (CalendarData, error) {
	var rec CalendarData
	b64, err := url.QueryUnescape(tok)
	if err != nil {
		return rec, fmt.Errorf("%w: unescape: %v", ErrEncoding, err)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return rec, fmt.Errorf("%w: base64: %v", ErrEncoding, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%w: json: %v", ErrEncoding, err)
	}
	return rec, nil
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"15.04",
	"3:04pm",
	"3.04pm",
	"3pm",
}

// ParseClock parses a time-of-day string into hour, minute and second.
func ParseClock(s string) (hour, min, sec int, err error) {
	norm := strings.ToLower(strings.Join(strings.Fields(s), ""))
	for _, layout := range timeLayouts {
		if t, perr := time.Parse(layout, norm); perr == nil {
			return t.Hour(), t.Minute(), t.Second(), nil
		}
	}
	return 0, 0, 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
}

// At combines a calendar date with a time-of-day string in loc.
func At(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	h, m, s, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, s, 0, loc), nil
}
