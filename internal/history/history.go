// Package history keeps a sqlite ledger of pipeline runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	bun.BaseModel `bun:"table:runs"`

	ID         string    `bun:"id,pk" json:"id"`
	Pipeline   string    `bun:"pipeline,notnull" json:"pipeline"`
	Filename   string    `bun:"filename" json:"filename"`
	Revision   string    `bun:"revision" json:"revision"`
	Terms      int       `bun:"terms" json:"terms"`
	Events     int       `bun:"events" json:"events"`
	Documents  int       `bun:"documents" json:"documents"`
	Status     string    `bun:"status,notnull" json:"status"`
	Error      string    `bun:"error" json:"error,omitempty"`
	StartedAt  time.Time `bun:"started_at,notnull" json:"started_at"`
	DurationMs int64     `bun:"duration_ms" json:"duration_ms"`
}

// Ledger records runs in a sqlite database.
type Ledger struct {
	db *bun.DB
}

// Open opens (creating if needed) the ledger at path. ":memory:" gives a
// throwaway ledger.
func Open(ctx context.Context, path string) (*Ledger, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		dsn = "file:" + path + "?mode=rwc"
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writes.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.NewCreateTable().Model((*Run)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record inserts a run.
func (l *Ledger) Record(ctx context.Context, r Run) error {
	if _, err := l.db.NewInsert().Model(&r).Exec(ctx); err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := make([]Run, 0, limit)
	if err := l.db.NewSelect().
		Model(&runs).
		Order("started_at DESC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	return runs, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
