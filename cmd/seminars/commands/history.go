package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"seminars/internal/history"
	"seminars/internal/printer"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent pipeline runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return printer.Error("history is disabled", "history.path is empty in the config.", nil)
	}

	l, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return printer.Error("failed to open run history", err.Error(), nil)
	}
	defer l.Close()

	runs, err := l.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		printer.Info("no runs recorded yet\n")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tPIPELINE\tREVISION\tSTATUS\tTERMS\tEVENTS\tDOCS\tTOOK")
	for _, r := range runs {
		status := r.Status
		if r.Error != "" {
			status += ": " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Pipeline, r.Revision, status,
			r.Terms, r.Events, r.Documents, time.Duration(r.DurationMs)*time.Millisecond)
	}
	return tw.Flush()
}
