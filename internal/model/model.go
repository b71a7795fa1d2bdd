package model

import (
	"sort"
	"time"
)

// RevisionLayout is the minute-granularity layout of a batch revision stamp.
const RevisionLayout = "2006-01-02-1504"

// NewRevision stamps a pipeline run. It is generated once per run and shared
// by every Event and output document of that run.
func NewRevision(t time.Time) string {
	return t.Format(RevisionLayout)
}

// Event is one seminar occurrence after normalization.
//
// JSON field names follow the persisted dataset format consumed by the
// website, so they must not change.
type Event struct {
	// Date is midnight of the seminar's calendar day in the pipeline zone.
	Date time.Time `json:"date"`

	// Start and End are stored verbatim from the source row.
	Start string `json:"start"`
	End   string `json:"end"`

	Speaker     string `json:"speaker"`
	SpeakerRole string `json:"speaker_role"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Notes       string `json:"notes"`

	Cancelled bool   `json:"cancelled"`
	Term      string `json:"term"`
	Revision  string `json:"lastmod"`

	// Token is the encoded calendar record, see internal/token.
	Token string `json:"event_code"`
}

// Dataset is the persisted, term-grouped output of one pipeline run.
type Dataset struct {
	Groups   map[string][]Event `json:"terms"`
	Revision string             `json:"lastmod"`

	// order keeps first-seen term order for rendering; it is not persisted.
	order []string
}

// NewDataset returns an empty dataset stamped with revision.
func NewDataset(revision string) *Dataset {
	return &Dataset{
		Groups:   make(map[string][]Event),
		Revision: revision,
	}
}

// Add appends ev to its term group.
func (d *Dataset) Add(ev Event) {
	if d.Groups == nil {
		d.Groups = make(map[string][]Event)
	}
	if _, ok := d.Groups[ev.Term]; !ok {
		d.order = append(d.order, ev.Term)
	}
	d.Groups[ev.Term] = append(d.Groups[ev.Term], ev)
}

// Terms returns the term keys in first-seen order. A dataset decoded from
// storage has no recorded order, so its keys are returned sorted.
func (d *Dataset) Terms() []string {
	if len(d.order) == len(d.Groups) {
		out := make([]string, len(d.order))
		copy(out, d.order)
		return out
	}
	out := make([]string, 0, len(d.Groups))
	for term := range d.Groups {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// EventCount returns the number of events across all groups.
func (d *Dataset) EventCount() int {
	n := 0
	for _, evs := range d.Groups {
		n += len(evs)
	}
	return n
}
