package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/prequal-cli/internal/lead"
)

var importCmd = &cobra.Command{
	Use:   "import <leads.xlsx>",
	Short: "Import a lead spreadsheet and pre-seed conversations",
	Long:  "Reads an intake-form XLSX export and creates one conversation per row, with the form's answers already filled so the engine skips those questions.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := lead.NewImporter(e.Store, e.Conversations).ImportFile(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("imported %d conversations\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
