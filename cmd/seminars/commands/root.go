package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appLog "seminars/internal/log"
)

const defaultConfigPath = "/etc/seminars/config.yaml"

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "seminars",
	Short: "Seminar schedule publisher",
	Long: `Seminars turns the seminar schedule spreadsheet into the dataset the
website reads and one printable PDF per term.

Every run is all-or-nothing: either the dataset is replaced and every term
document is written, or nothing changes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			appLog.Warn("failed to load .env", "err", err)
		}
		if !cmd.Flags().Changed("config") {
			if env := os.Getenv("SEMINARS_CONFIG"); env != "" {
				configPath = env
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to config file (env SEMINARS_CONFIG)")
}
