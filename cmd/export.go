package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/prequal-cli/internal/export"
)

var exportUpload bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export decided conversations to CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		conversations, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer conversations.Close() //nolint:errcheck

		states, err := conversations.List(ctx)
		if err != nil {
			return err
		}

		path, err := export.WriteCSV(cfg.Export.Dir, states)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)

		if exportUpload {
			if err := export.Upload(ctx, cfg.Export, path); err != nil {
				return err
			}
			fmt.Println("uploaded to FTP drop")
		}

		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "upload the CSV to the configured FTP drop")
	rootCmd.AddCommand(exportCmd)
}
