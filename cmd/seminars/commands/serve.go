package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"seminars/internal/inbox"
	appLog "seminars/internal/log"
	"seminars/internal/web"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload hook API and watch the inbox directory",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveListen != "" {
		a.cfg.Listen = serveListen
	}

	appLog.Info("effective config",
		"listen", a.cfg.Listen,
		"timezone", a.cfg.Location().String(),
		"pipelines", a.registry.Names(),
		"store", a.cfg.Store.Backend,
		"inbox", a.cfg.Inbox.Dir,
		"history", a.cfg.History.Path,
	)

	if a.cfg.Inbox.Dir != "" {
		if err := os.MkdirAll(a.cfg.Inbox.Dir, 0o755); err != nil {
			return err
		}
		w := inbox.New(a.cfg.Inbox.Dir, a.registry)
		if err := w.Start(ctx, a.cfg.Inbox.Cron); err != nil {
			return err
		}
	}

	var hist web.HistoryReader
	if a.ledger != nil {
		hist = a.ledger
	}
	srv := web.NewServer(a.cfg, a.registry, hist, a.metrics)
	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
		return err
	}
	appLog.Info("seminars exiting")
	return nil
}
