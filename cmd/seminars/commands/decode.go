package commands

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"seminars/internal/printer"
	"seminars/internal/token"
)

var decodeCmd = &cobra.Command{
	Use:   "decode TOKEN",
	Short: "Decode an event_code into its calendar record",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	rec, err := token.Decode(args[0])
	if err != nil {
		return printer.Error("invalid token", err.Error(),
			[]string{"Pass the event_code exactly as it appears in the dataset, quoted"})
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	printer.Println(string(out))
	printer.Detail("starts", time.Unix(rec.Start, 0).Format(time.RFC1123))
	printer.Detail("ends", time.Unix(rec.End, 0).Format(time.RFC1123))
	return nil
}
