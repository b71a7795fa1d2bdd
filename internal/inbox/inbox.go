// Package inbox watches a drop directory for schedule uploads and feeds them
// to the pipeline registry on a cron schedule.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	appLog "seminars/internal/log"
	"seminars/internal/pipeline"
	"seminars/internal/source"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Outcome is the result of handling one inbox file.
type Outcome struct {
	File     string
	Pipeline string
	Revision string
	RunID    string
	Err      error
}

// Watcher scans Dir and dispatches files whose names are bound to a
// pipeline. Handled files move to processed/, failures to failed/, and
// anything else is left alone.
type Watcher struct {
	Dir      string
	Registry *pipeline.Registry
	Now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// New returns a Watcher over dir.
func New(dir string, reg *pipeline.Registry) *Watcher {
	return &Watcher{Dir: dir, Registry: reg}
}

func (w *Watcher) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Start schedules Scan with a cron spec and stops it when ctx is done.
func (w *Watcher) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		if _, err := w.Scan(ctx); err != nil {
			appLog.Error("inbox scan failed", err, "dir", w.Dir)
		}
	}); err != nil {
		return fmt.Errorf("inbox: invalid schedule %q: %w", spec, err)
	}
	w.cron = c
	c.Start()
	appLog.Info("inbox watcher started", "dir", w.Dir, "schedule", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("inbox watcher stopped", "dir", w.Dir)
	}()
	return nil
}

// Scan handles every bound file currently in Dir.
func (w *Watcher) Scan(ctx context.Context) ([]Outcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}

	var outcomes []Outcome
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := w.Registry.Bound(name); !ok {
			appLog.Debug("inbox file not bound to a pipeline", "file", name)
			continue
		}
		if ctx.Err() != nil {
			return outcomes, ctx.Err()
		}
		outcomes = append(outcomes, w.handle(ctx, name))
	}
	return outcomes, nil
}

func (w *Watcher) handle(ctx context.Context, name string) Outcome {
	path := filepath.Join(w.Dir, name)
	out := Outcome{File: name}

	rows, err := source.ReadFile(path)
	if err == nil {
		var res *pipeline.Result
		res, _, err = w.Registry.Dispatch(ctx, path, rows)
		if res != nil {
			out.Pipeline = res.Pipeline
			out.Revision = res.Revision
			out.RunID = res.RunID
		}
	}
	out.Err = err

	// Revisions and timestamps repeat within a minute or second, so the run
	// id keeps each archived upload.
	id := out.RunID
	if id == "" {
		id = uuid.NewString()
	}
	id = shortID(id)

	if err != nil {
		dst, mvErr := w.move(path, failedDir, w.now().Format("20060102-150405")+"."+id)
		if mvErr != nil {
			appLog.Error("inbox move failed", mvErr, "file", name)
		}
		appLog.Warn("inbox file failed", "file", name, "moved_to", dst, "err", err)
		return out
	}

	dst, mvErr := w.move(path, processedDir, out.Revision+"."+id)
	if mvErr != nil {
		appLog.Error("inbox move failed", mvErr, "file", name)
	}
	appLog.Info("inbox file processed", "file", name, "pipeline", out.Pipeline, "revision", out.Revision, "moved_to", dst)
	return out
}

// move renames path into sub/<name>.<suffix>.
func (w *Watcher) move(path, sub, suffix string) (string, error) {
	dir := filepath.Join(w.Dir, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, filepath.Base(path)+"."+suffix)
	return dst, os.Rename(path, dst)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
