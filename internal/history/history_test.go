package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	base := time.Date(2020, 1, 15, 9, 0, 0, 0, time.UTC)
	for i, status := range []string{StatusOK, StatusFailed, StatusOK} {
		require.NoError(t, l.Record(ctx, Run{
			ID:        uuid.NewString(),
			Pipeline:  "seminars",
			Filename:  "npeu-seminar-dates.csv",
			Revision:  base.Add(time.Duration(i) * time.Minute).Format("2006-01-02-1504"),
			Terms:     2,
			Events:    3,
			Status:    status,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "2020-01-15-0902", runs[0].Revision)
	assert.Equal(t, "2020-01-15-0901", runs[1].Revision)
	assert.Equal(t, StatusFailed, runs[1].Status)
	assert.Equal(t, 3, runs[0].Events)
}

func TestLedgerOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	l, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, Run{ID: "a", Pipeline: "seminars", Status: StatusOK, StartedAt: time.Now()}))
	require.NoError(t, l.Close())

	l, err = Open(ctx, path)
	require.NoError(t, err)
	defer l.Close()
	runs, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ID)
}
