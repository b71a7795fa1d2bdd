package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"seminars/internal/normalize"
	"seminars/internal/printer"
	"seminars/internal/source"
)

var (
	runPipeline string
	runURL      string
	runCacheDir string
)

var runCmd = &cobra.Command{
	Use:   "run --pipeline NAME [FILE]",
	Short: "Run a pipeline on a schedule file or published export",
	Long: `Run the named pipeline on FILE regardless of its name, or on the CSV
published at --url.

Examples:
  # Rebuild from a local export
  seminars run --pipeline seminars ~/Downloads/npeu-seminar-dates.csv

  # Rebuild from the published spreadsheet
  seminars run --pipeline seminars --url "https://docs.example.org/export?format=csv"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runPipeline, "pipeline", "p", "", "Pipeline to run (required)")
	runCmd.Flags().StringVar(&runURL, "url", "", "Fetch the schedule CSV from this URL instead of FILE")
	runCmd.Flags().StringVar(&runCacheDir, "cache-dir", "/var/lib/seminars/source-cache", "Cache for --url downloads")
	_ = runCmd.MarkFlagRequired("pipeline")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if (len(args) == 0) == (runURL == "") {
		return printer.Error("nothing to read", "Give exactly one of FILE or --url.", nil)
	}

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	p, ok := a.registry.Get(runPipeline)
	if !ok {
		return printer.Error(
			"unknown pipeline",
			fmt.Sprintf("No pipeline named %q is configured.", runPipeline),
			[]string{fmt.Sprintf("Configured pipelines: %v", a.registry.Names())},
		)
	}

	var (
		rows     []normalize.Row
		filename string
	)
	if runURL != "" {
		printer.Step("fetching schedule\n")
		fetched, err := source.NewFetcher(runCacheDir).Fetch(ctx, runURL)
		if err != nil {
			return printer.Error("fetch failed", err.Error(), nil)
		}
		if fetched.FromCache {
			printer.Warning("using cached export\n")
		}
		rows, err = source.Parse(fetched.Body)
		if err != nil {
			return printer.Error("unreadable schedule", err.Error(), nil)
		}
		filename = p.SourceFilename
	} else {
		filename = filepath.Base(args[0])
		rows, err = source.ReadFile(args[0])
		if err != nil {
			return printer.Error("unreadable schedule", err.Error(), nil)
		}
	}

	printer.Step("running %s on %d rows\n", p.Name, len(rows))
	res, err := p.Run(ctx, filename, rows)
	if err != nil {
		return runFailed(err)
	}
	printResult(res)
	return nil
}
