// Package source turns schedule spreadsheets into normalizer rows.
package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"seminars/internal/normalize"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

const (
	colTerm        = "Term"
	colDate        = "Date"
	colTimeStart   = "Time Start"
	colTimeEnd     = "Time End"
	colSpeaker     = "Speaker"
	colSpeakerRole = "Speaker Role"
	colTitle       = "Title"
	colLocation    = "Location"
	colNotes       = "Notes"
	colCancelled   = "Cancelled"
)

var required = []string{
	colTerm, colDate, colTimeStart, colTimeEnd,
	colSpeaker, colSpeakerRole, colTitle, colLocation,
}

var bom = []byte{0xef, 0xbb, 0xbf}

// ReadFile reads rows from a CSV file on disk.
func ReadFile(path string) ([]normalize.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes CSV bytes with a header row into rows. Blank lines are
// skipped; every cell is trimmed.
func Parse(data []byte) ([]normalize.Row, error) {
	data = bytes.TrimPrefix(data, bom)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("source: empty file")
		}
		return nil, fmt.Errorf("source: read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("source: %w %q", ErrMissingColumn, name)
		}
	}

	var rows []normalize.Row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		if blank(rec) {
			continue
		}
		cell := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		rows = append(rows, normalize.Row{
			Term:        cell(colTerm),
			Date:        cell(colDate),
			TimeStart:   cell(colTimeStart),
			TimeEnd:     cell(colTimeEnd),
			Speaker:     cell(colSpeaker),
			SpeakerRole: cell(colSpeakerRole),
			Title:       cell(colTitle),
			Location:    cell(colLocation),
			Notes:       cell(colNotes),
			Cancelled:   cell(colCancelled),
		})
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
