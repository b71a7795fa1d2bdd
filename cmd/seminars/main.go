package main

import (
	"os"

	"seminars/cmd/seminars/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	// Errors are printed by the printer package; cobra stays silent.
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
