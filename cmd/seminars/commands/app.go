package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"seminars/internal/capture"
	"seminars/internal/config"
	"seminars/internal/history"
	appLog "seminars/internal/log"
	"seminars/internal/metrics"
	"seminars/internal/pipeline"
	"seminars/internal/printer"
	"seminars/internal/render"
	"seminars/internal/store"
)

// app holds everything a command needs, built from the loaded config.
type app struct {
	cfg      *config.Config
	registry *pipeline.Registry
	ledger   *history.Ledger
	metrics  *metrics.Metrics

	closers []func() error
}

// loadConfig loads and validates the config file, applying its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.Error(
			"failed to load config",
			err.Error(),
			[]string{fmt.Sprintf("Check the file at %s, or point --config / SEMINARS_CONFIG elsewhere", configPath)},
		)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return nil, printer.Error("invalid config", err.Error(), nil)
	}
	return cfg, nil
}

// newApp wires stores, ledger, metrics and the pipeline registry.
func newApp(ctx context.Context, backend render.Backend) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, metrics: metrics.New()}

	st, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var rec pipeline.Recorder
	if cfg.History.Path != "" {
		l, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			a.Close()
			return nil, printer.Error("failed to open run history", err.Error(),
				[]string{"Set history.path to a writable location, or empty it to disable the ledger"})
		}
		a.ledger = l
		a.closers = append(a.closers, l.Close)
		rec = l
	}

	if backend == nil {
		backend = &capture.PDFBackend{
			Timeout:  60 * time.Second,
			ExecPath: os.Getenv("SEMINARS_CHROME"),
		}
	}

	reg, err := pipeline.FromConfig(cfg, pipeline.Deps{
		Location: cfg.Location(),
		Backend:  backend,
		Store:    st,
		Recorder: rec,
		Metrics:  a.metrics,
	})
	if err != nil {
		a.Close()
		return nil, printer.Error("invalid pipeline config", err.Error(), nil)
	}
	a.registry = reg
	return a, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	sc := a.cfg.Store
	switch sc.Backend {
	case config.StoreRedis:
		rs := store.NewRedisStore(&redis.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		}, sc.RedisPrefix)
		a.closers = append(a.closers, rs.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			return nil, printer.Error("redis unreachable", err.Error(),
				[]string{fmt.Sprintf("Check store.redis_addr (%s)", sc.RedisAddr)})
		}
		return rs, nil
	case config.StoreFile:
		return store.NewFileStore(sc.Dir), nil
	default:
		return nil, printer.Error("invalid config", fmt.Sprintf("unknown store backend %q", sc.Backend), nil)
	}
}

// Close releases everything newApp opened.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		appLog.Warn("shutdown cleanup failed", "err", err)
	}
}

// printResult summarises a committed run.
func printResult(res *pipeline.Result) {
	printer.Success("%s: %d events in %d terms\n", res.Pipeline, res.Dataset.EventCount(), len(res.Dataset.Groups))
	printer.Detail("revision", res.Revision)
	printer.Detail("run", res.RunID)
	for _, doc := range res.Documents {
		printer.Detail("document", doc)
	}
}

// runFailed reports a pipeline error with a hint matching its class.
func runFailed(err error) error {
	var hints []string
	switch {
	case pipeline.IsMalformed(err):
		hints = []string{"Fix the reported row in the spreadsheet and upload it again; nothing was changed"}
	case errors.Is(err, render.ErrTemplateUnavailable):
		hints = []string{"Check the pipeline's template path"}
	case errors.Is(err, render.ErrOutputUnavailable):
		hints = []string{"Check that the pipeline's output_dir is writable"}
	}
	return printer.Error("run failed", err.Error(), hints)
}
