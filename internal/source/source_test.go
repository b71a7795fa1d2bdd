package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "\ufeffTerm,Date,Time Start,Time End,Speaker,Speaker Role,Title,Location,Notes,Cancelled\n" +
	"Hilary 2020, 22/01/2020 ,13:00,14:00,Dr Jane Smith,Senior Researcher,\"Outcomes, revisited\",Richard Doll Lecture Theatre,,\n" +
	",,,,,,,,,\n" +
	"Trinity 2020,2020-05-06,13:00,14:00,Prof Lee,Director,Trials,Room 2,Drinks after,Y\n"

func TestParse(t *testing.T) {
	rows, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Hilary 2020", rows[0].Term)
	assert.Equal(t, "22/01/2020", rows[0].Date)
	assert.Equal(t, "Outcomes, revisited", rows[0].Title)
	assert.Equal(t, "", rows[0].Notes)

	assert.Equal(t, "Drinks after", rows[1].Notes)
	assert.Equal(t, "Y", rows[1].Cancelled)
	assert.Equal(t, "Room 2", rows[1].Location)
}

func TestParseOptionalColumns(t *testing.T) {
	data := "Title,Term,Date,Time Start,Time End,Speaker,Speaker Role,Location\n" +
		"Trials,Hilary 2020,2020-01-22,13:00,14:00,A,B,C\n"
	rows, err := Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Trials", rows[0].Title)
	assert.Equal(t, "", rows[0].Cancelled)
}

func TestParseMissingColumn(t *testing.T) {
	_, err := Parse([]byte("Term,Date\nHilary,2020-01-22\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))

	_, err = Parse(nil)
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "npeu-seminar-dates.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	rows, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFetchUsesConditionalCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	first, err := f.Fetch(context.Background(), srv.URL+"/export?token=secret")
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.Fetch(context.Background(), srv.URL+"/export?token=secret")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchFallsBackOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	_, err = NewFetcher(t.TempDir()).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://docs.example.org/...(redacted)", redactURL("https://docs.example.org/d/abc/export?format=csv"))
	assert.Equal(t, "(redacted)", redactURL("not a url"))
}
