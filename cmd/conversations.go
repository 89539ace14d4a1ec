package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List conversations and their status",
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

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPHASE\tTURNS\tDECISION\tUPDATED")
		for i := range states {
			s := &states[i]
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				s.ConversationID, s.Phase, s.TurnNumber, s.FinalDecision,
				s.UpdatedAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
}
