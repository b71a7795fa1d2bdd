package inbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seminars/internal/config"
	"seminars/internal/pipeline"
	"seminars/internal/render"
	"seminars/internal/store"
)

type nopCanvas struct{}

func (nopCanvas) ImportTemplate(path string) (render.TemplateID, error) {
	_, err := os.Stat(path)
	return 1, err
}
func (nopCanvas) AddPage(render.TemplateID) error { return nil }
func (nopCanvas) WriteBlock(render.Block) error   { return nil }
func (nopCanvas) Save(_ context.Context, path string) error {
	return os.WriteFile(path, []byte("%PDF"), 0o644)
}

type nopBackend struct{}

func (nopBackend) NewCanvas(render.Margins) (render.Canvas, error) { return nopCanvas{}, nil }

const good = "Term,Date,Time Start,Time End,Speaker,Speaker Role,Title,Location\n" +
	"Hilary 2020,2020-01-22,13:00,14:00,Dr A,Researcher,Talk,Richard Doll Lecture Theatre\n"

func newWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	tpl := filepath.Join(dir, "tpl.png")
	require.NoError(t, os.WriteFile(tpl, []byte("png"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Pipelines[0].Template = tpl
	cfg.Pipelines[0].OutputDir = filepath.Join(dir, "out")

	reg, err := pipeline.FromConfig(cfg, pipeline.Deps{
		Location: time.UTC,
		Backend:  nopBackend{},
		Store:    store.NewFileStore(filepath.Join(dir, "data")),
	})
	require.NoError(t, err)
	p, _ := reg.Get("seminars")
	p.Now = func() time.Time { return time.Date(2020, 1, 15, 10, 0, 0, 0, time.UTC) }

	in := filepath.Join(dir, "inbox")
	require.NoError(t, os.MkdirAll(in, 0o755))
	w := New(in, reg)
	w.Now = func() time.Time { return time.Date(2020, 1, 15, 10, 5, 0, 0, time.UTC) }
	return w, in
}

func TestScanProcessesBoundFile(t *testing.T) {
	w, in := newWatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(in, "npeu-seminar-dates.csv"), []byte(good), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "minutes.csv"), []byte(good), 0o644))

	outcomes, err := w.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, "seminars", outcomes[0].Pipeline)
	assert.Equal(t, "2020-01-15-1000", outcomes[0].Revision)

	assert.Len(t, archived(t, in, "processed", "npeu-seminar-dates.csv.2020-01-15-1000.*"), 1)
	assert.NoFileExists(t, filepath.Join(in, "npeu-seminar-dates.csv"))
	assert.FileExists(t, filepath.Join(in, "minutes.csv"), "unbound files stay put")

	outcomes, err = w.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestScanMovesFailures(t *testing.T) {
	w, in := newWatcher(t)
	bad := "Term,Date,Time Start,Time End,Speaker,Speaker Role,Title,Location\n" +
		"Hilary 2020,sometime,13:00,14:00,Dr A,Researcher,Talk,Room 1\n"
	require.NoError(t, os.WriteFile(filepath.Join(in, "npeu-seminar-dates.csv"), []byte(bad), 0o644))

	outcomes, err := w.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].Err)
	assert.Len(t, archived(t, in, "failed", "npeu-seminar-dates.csv.20200115-100500.*"), 1)
}

func TestScanKeepsRepeatedDrops(t *testing.T) {
	w, in := newWatcher(t)
	src := filepath.Join(in, "npeu-seminar-dates.csv")

	// The pipeline clock is frozen, so both runs share a revision.
	for i := 0; i < 2; i++ {
		require.NoError(t, os.WriteFile(src, []byte(good), 0o644))
		outcomes, err := w.Scan(context.Background())
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		require.NoError(t, outcomes[0].Err)
		assert.NotEmpty(t, outcomes[0].RunID)
	}
	assert.Len(t, archived(t, in, "processed", "npeu-seminar-dates.csv.2020-01-15-1000.*"), 2)

	bad := "Term,Date,Time Start,Time End,Speaker,Speaker Role,Title,Location\n" +
		"Hilary 2020,sometime,13:00,14:00,Dr A,Researcher,Talk,Room 1\n"
	for i := 0; i < 2; i++ {
		require.NoError(t, os.WriteFile(src, []byte(bad), 0o644))
		_, err := w.Scan(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, archived(t, in, "failed", "npeu-seminar-dates.csv.20200115-100500.*"), 2)
}

func archived(t *testing.T, in, sub, pattern string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(in, sub, pattern))
	require.NoError(t, err)
	return matches
}

func TestScanMissingDir(t *testing.T) {
	w, _ := newWatcher(t)
	w.Dir = filepath.Join(t.TempDir(), "nope")
	_, err := w.Scan(context.Background())
	assert.Error(t, err)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	w, _ := newWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Error(t, w.Start(ctx, "every now and then"))
	assert.NoError(t, w.Start(ctx, "*/5 * * * *"))
}
