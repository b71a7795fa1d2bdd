package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"seminars/internal/config"
	appLog "seminars/internal/log"
	"seminars/internal/metrics"
	"seminars/internal/normalize"
)

// Registry selects pipelines by name or by bound source filename.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Pipeline
	byFile map[string]*Pipeline
	names  []string

	Metrics *metrics.Metrics
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Pipeline),
		byFile: make(map[string]*Pipeline),
	}
}

// FromConfig registers one pipeline per config entry.
func FromConfig(cfg *config.Config, d Deps) (*Registry, error) {
	reg := NewRegistry()
	reg.Metrics = d.Metrics
	for _, pc := range cfg.Pipelines {
		if err := reg.Register(New(pc, d)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds p. Names and source filenames must be unique.
func (r *Registry) Register(p *Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Name == "" {
		return fmt.Errorf("pipeline: empty name")
	}
	if _, ok := r.byName[p.Name]; ok {
		return fmt.Errorf("pipeline: %q already registered", p.Name)
	}
	if p.SourceFilename != "" {
		if other, ok := r.byFile[p.SourceFilename]; ok {
			return fmt.Errorf("pipeline: source filename %q already bound to %q", p.SourceFilename, other.Name)
		}
		r.byFile[p.SourceFilename] = p
	}
	r.byName[p.Name] = p
	r.names = append(r.names, p.Name)
	return nil
}

// Get returns the named pipeline.
func (r *Registry) Get(name string) (*Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// Names lists registered pipelines in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Bound returns the pipeline whose source filename is exactly the base name
// of filename.
func (r *Registry) Bound(filename string) (*Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byFile[filepath.Base(filename)]
	return p, ok
}

// Dispatch is the upload-completion hook. When no pipeline is bound to
// filename it returns ok == false and a nil error, and nothing is touched.
func (r *Registry) Dispatch(ctx context.Context, filename string, rows []normalize.Row) (*Result, bool, error) {
	p, ok := r.Bound(filename)
	if !ok {
		appLog.Debug("no pipeline bound", "filename", filepath.Base(filename))
		r.Metrics.ObserveSkip()
		return nil, false, nil
	}
	res, err := p.Run(ctx, filename, rows)
	if err != nil {
		return nil, true, err
	}
	return res, true, nil
}
