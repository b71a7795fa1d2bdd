// Package pipeline runs the seminar schedule through normalize, encode,
// group and render as one atomic operation.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"seminars/internal/config"
	"seminars/internal/dataset"
	"seminars/internal/history"
	appLog "seminars/internal/log"
	"seminars/internal/metrics"
	"seminars/internal/model"
	"seminars/internal/normalize"
	"seminars/internal/render"
	"seminars/internal/store"
	"seminars/internal/token"
)

// Recorder receives one entry per finished run.
type Recorder interface {
	Record(ctx context.Context, r history.Run) error
}

// Result describes a committed run.
type Result struct {
	RunID     string         `json:"run_id"`
	Pipeline  string         `json:"pipeline"`
	Revision  string         `json:"revision"`
	Dataset   *model.Dataset `json:"dataset"`
	Documents []string       `json:"documents"`
	Duration  time.Duration  `json:"duration"`
}

// Pipeline is one configured seminar series.
type Pipeline struct {
	Name string
	// SourceFilename is the upload name the hook binds to this pipeline.
	SourceFilename string
	// Location is the single zone dates and times of day are read in.
	Location *time.Location

	Encoder  *token.Encoder
	Renderer *render.Renderer

	Store      store.Store
	DatasetKey string

	Recorder Recorder
	Metrics  *metrics.Metrics

	Now func() time.Time

	mu sync.Mutex
}

// Deps are the shared collaborators of every pipeline built from config.
type Deps struct {
	Location *time.Location
	Backend  render.Backend
	Store    store.Store
	Recorder Recorder
	Metrics  *metrics.Metrics
}

// New builds a pipeline from its config entry.
func New(pc config.PipelineConfig, d Deps) *Pipeline {
	return &Pipeline{
		Name:           pc.Name,
		SourceFilename: pc.SourceFilename,
		Location:       d.Location,
		Encoder: &token.Encoder{
			SeriesTitle:   pc.SeriesTitle,
			SummaryPrefix: pc.SummaryPrefix,
			AliasPrefix:   pc.AliasPrefix,
			Boilerplate:   pc.Boilerplate,
			Location:      d.Location,
		},
		Renderer: &render.Renderer{
			Backend: d.Backend,
			Layout: render.Layout{
				SeriesTitle:        pc.SeriesTitle,
				DefaultVenue:       pc.DefaultVenue,
				CancellationNotice: pc.CancellationNotice,
			},
			TemplatePath:  pc.Template,
			OutputDir:     pc.OutputDir,
			DocumentTitle: pc.DocumentTitle,
		},
		Store:      d.Store,
		DatasetKey: pc.DatasetKey,
		Recorder:   d.Recorder,
		Metrics:    d.Metrics,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}

// Run processes a full batch of rows. Either every term document is
// committed and the dataset replaced, or nothing observable changes.
// filename is only recorded in the run history.
func (p *Pipeline) Run(ctx context.Context, filename string, rows []normalize.Row) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := p.now()
	res := &Result{
		RunID:    uuid.NewString(),
		Pipeline: p.Name,
		Revision: model.NewRevision(started.In(p.location())),
	}
	appLog.Info("pipeline start", "pipeline", p.Name, "revision", res.Revision, "rows", len(rows), "run_id", res.RunID)

	err := p.run(ctx, rows, res)
	res.Duration = time.Since(started)
	p.finish(ctx, filename, started, res, err)
	if err != nil {
		appLog.Error("pipeline failed", err, "pipeline", p.Name, "revision", res.Revision, "run_id", res.RunID)
		return nil, err
	}
	appLog.Info("pipeline done", "pipeline", p.Name, "revision", res.Revision,
		"terms", len(res.Dataset.Groups), "events", res.Dataset.EventCount(),
		"documents", len(res.Documents), "took", res.Duration)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, rows []normalize.Row, res *Result) error {
	n := normalize.New(p.location(), res.Revision)
	events, err := n.NormalizeAll(rows)
	if err != nil {
		return fmt.Errorf("pipeline %s: normalize: %w", p.Name, err)
	}
	appLog.Debug("normalized", "pipeline", p.Name, "revision", res.Revision, "events", len(events))

	encoded, err := p.Encoder.EncodeAll(events)
	if err != nil {
		return fmt.Errorf("pipeline %s: encode: %w", p.Name, err)
	}

	ds := dataset.Build(encoded, res.Revision)
	data, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("pipeline %s: %w: %v", p.Name, token.ErrEncoding, err)
	}

	outDir := p.Renderer.OutputDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("pipeline %s: %w: %v", p.Name, render.ErrOutputUnavailable, err)
	}
	staging := filepath.Join(outDir, ".staging-"+res.RunID)
	defer os.RemoveAll(staging)

	r := *p.Renderer
	r.OutputDir = staging
	staged, err := r.RenderAll(ctx, ds)
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", p.Name, err)
	}

	if err := p.Store.Save(ctx, p.DatasetKey, data); err != nil {
		return fmt.Errorf("pipeline %s: persist: %w", p.Name, err)
	}

	docs, err := commit(staged, outDir)
	if err != nil {
		return fmt.Errorf("pipeline %s: %w: commit: %v", p.Name, render.ErrOutputUnavailable, err)
	}

	res.Dataset = ds
	res.Documents = docs
	return nil
}

// commit moves staged documents into dir. Staging lives inside dir so each
// move is a same-filesystem rename.
func commit(staged []string, dir string) ([]string, error) {
	out := make([]string, 0, len(staged))
	for _, src := range staged {
		dst := filepath.Join(dir, filepath.Base(src))
		if err := os.Rename(src, dst); err != nil {
			return out, err
		}
		out = append(out, dst)
	}
	return out, nil
}

func (p *Pipeline) finish(ctx context.Context, filename string, started time.Time, res *Result, runErr error) {
	var events, docs, terms int
	if res.Dataset != nil {
		events = res.Dataset.EventCount()
		terms = len(res.Dataset.Groups)
		docs = len(res.Documents)
	}
	p.Metrics.ObserveRun(p.Name, runErr == nil, events, docs, res.Duration)

	if p.Recorder == nil {
		return
	}
	entry := history.Run{
		ID:         res.RunID,
		Pipeline:   p.Name,
		Filename:   filename,
		Revision:   res.Revision,
		Terms:      terms,
		Events:     events,
		Documents:  docs,
		Status:     history.StatusOK,
		StartedAt:  started.UTC(),
		DurationMs: res.Duration.Milliseconds(),
	}
	if runErr != nil {
		entry.Status = history.StatusFailed
		entry.Error = runErr.Error()
	}
	// The ledger is advisory; a failed write never changes the run outcome.
	if err := p.Recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		appLog.Warn("history record failed", "pipeline", p.Name, "run_id", res.RunID, "err", err)
	}
}

// Dataset returns the persisted dataset document as stored.
func (p *Pipeline) Dataset(ctx context.Context) ([]byte, error) {
	data, err := p.Store.Load(ctx, p.DatasetKey)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", p.Name, err)
	}
	return data, nil
}

// IsMalformed reports whether err is a batch-level input problem rather than
// an infrastructure failure.
func IsMalformed(err error) bool {
	return errors.Is(err, normalize.ErrMalformedDate) || errors.Is(err, token.ErrMalformedTime)
}
