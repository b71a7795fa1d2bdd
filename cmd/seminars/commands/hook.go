package commands

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"seminars/internal/printer"
	"seminars/internal/source"
)

var hookCmd = &cobra.Command{
	Use:   "hook FILE",
	Short: "Upload-completion hook: run the pipeline bound to FILE's name",
	Long: `Called after a file upload completes. If FILE's base name is bound to a
pipeline, that pipeline runs on it; any other name is a no-op and exits 0.`,
	Args: cobra.ExactArgs(1),
	RunE: runHook,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func runHook(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	path := args[0]

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, ok := a.registry.Bound(path); !ok {
		printer.Info("nothing to do: no pipeline is bound to %q\n", filepath.Base(path))
		return nil
	}

	rows, err := source.ReadFile(path)
	if err != nil {
		return printer.Error("unreadable schedule", err.Error(), nil)
	}

	res, _, err := a.registry.Dispatch(ctx, path, rows)
	if err != nil {
		return runFailed(err)
	}
	printResult(res)
	return nil
}
