package token

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seminars/internal/model"
)

func testEncoder() *Encoder {
	return &Encoder{
		SeriesTitle:   "NPEU Seminar Series",
		SummaryPrefix: "NPEU Seminar: ",
		AliasPrefix:   "npeu-seminar-",
		Boilerplate:   "All welcome.",
		Location:      time.UTC,
	}
}

func testEvent() model.Event {
	return model.Event{
		Date:        time.Date(2020, 1, 22, 0, 0, 0, 0, time.UTC),
		Start:       "13:00",
		End:         "14:00",
		Speaker:     "Dr Jane Smith",
		SpeakerRole: "Senior Researcher",
		Title:       "Outcomes after preterm birth",
		Location:    "Richard Doll Lecture Theatre",
		Term:        "Hilary 2020",
		Revision:    "2020-01-15-1000",
	}
}

func TestRecord(t *testing.T) {
	rec, err := testEncoder().Record(testEvent())
	require.NoError(t, err)

	assert.Equal(t, "npeu-seminar-2020-01-22", rec.Alias)
	assert.Equal(t, "NPEU Seminar: Dr Jane Smith", rec.Summary)
	assert.Equal(t, "Richard Doll Lecture Theatre", rec.Location)
	assert.Equal(t, time.Date(2020, 1, 22, 13, 0, 0, 0, time.UTC).Unix(), rec.Start)
	assert.Equal(t, time.Date(2020, 1, 22, 14, 0, 0, 0, time.UTC).Unix(), rec.End)
	assert.Equal(t,
		"NPEU Seminar Series Hilary 2020\n\n*Dr Jane Smith*\n(Senior Researcher)\n\n_Outcomes after preterm birth_\n\nAll welcome.",
		rec.Description)
}

func TestDescriptionNotesAndEscaping(t *testing.T) {
	ev := testEvent()
	ev.Title = "Mothers & babies <2020>"
	ev.Notes = "Lunch provided"

	rec, err := testEncoder().Record(ev)
	require.NoError(t, err)
	assert.Contains(t, rec.Description, "_Mothers &amp; babies &lt;2020&gt;_")
	assert.True(t, strings.HasSuffix(rec.Description, "All welcome.\n\nLunch provided"))

	ev.Notes = ""
	rec, err = testEncoder().Record(ev)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rec.Description, "All welcome."))
}

func TestEncodeRoundTrip(t *testing.T) {
	enc := testEncoder()
	events := []model.Event{testEvent()}

	withNotes := testEvent()
	withNotes.Notes = "Room change: see \"notices\" / café"
	withNotes.Start = "1.30pm"
	withNotes.End = "3 PM"
	events = append(events, withNotes)

	for _, ev := range events {
		out, err := enc.Encode(ev)
		require.NoError(t, err)
		require.NotEmpty(t, out.Token)

		want, err := enc.Record(ev)
		require.NoError(t, err)
		got, err := Decode(out.Token)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestTokenIsURLSafe(t *testing.T) {
	out, err := testEncoder().Encode(testEvent())
	require.NoError(t, err)
	assert.NotContains(t, out.Token, "+")
	assert.NotContains(t, out.Token, "/")
	assert.NotContains(t, out.Token, "=")
}

func TestTokenDeterministic(t *testing.T) {
	enc := testEncoder()
	a, err := enc.Encode(testEvent())
	require.NoError(t, err)
	b, err := enc.Encode(testEvent())
	require.NoError(t, err)
	assert.Equal(t, a.Token, b.Token)
}

func TestAliasDependsOnlyOnDate(t *testing.T) {
	enc := testEncoder()

	a := testEvent()
	b := testEvent()
	b.Start = "09:00"
	b.End = "10:30"
	b.Revision = "2021-06-01-1200"
	b.Speaker = "Someone Else"

	ra, err := enc.Record(a)
	require.NoError(t, err)
	rb, err := enc.Record(b)
	require.NoError(t, err)
	assert.Equal(t, ra.Alias, rb.Alias)
	assert.NotEqual(t, ra.Start, rb.Start)
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		h, m, s int
	}{
		{"13:00", 13, 0, 0},
		{"09:15:30", 9, 15, 30},
		{"14.45", 14, 45, 0},
		{"1:30pm", 13, 30, 0},
		{"1.30 PM", 13, 30, 0},
		{"11am", 11, 0, 0},
		{" 12pm ", 12, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			h, m, s, err := ParseClock(tc.in)
			require.NoError(t, err)
			assert.Equal(t, []int{tc.h, tc.m, tc.s}, []int{h, m, s})
		})
	}
}

func TestMalformedTime(t *testing.T) {
	ev := testEvent()
	ev.End = "lunchtime"
	_, err := testEncoder().Encode(ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedTime))

	_, err = testEncoder().EncodeAll([]model.Event{testEvent(), ev})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedTime))
}

func TestDecodeInvalid(t *testing.T) {
	for _, tok := range []string{"%zz", "not*base64", url.QueryEscape("bm90IGpzb24=")} {
		_, err := Decode(tok)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEncoding))
	}
}
