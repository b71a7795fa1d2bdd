// Package dataset groups encoded events by term.
package dataset

import (
	"seminars/internal/model"
)

// Build places each event under its term, keeping input order within each
// group. Events are assumed to already carry revision.
func Build(events []model.Event, revision string) *model.Dataset {
	ds := model.NewDataset(revision)
	for _, ev := range events {
		ds.Add(ev)
	}
	return ds
}
