package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatConversationID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run an interactive pre-qualification conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		id := chatConversationID
		if id == "" {
			id = uuid.New().String()
		}
		fmt.Printf("conversation %s (say hello to begin, 'quit' to exit)\n\n", id)

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("you> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "quit" || line == "exit" {
				break
			}

			reply, err := e.Orchestrator.ProcessTurn(ctx, id, line)
			if err != nil {
				return err
			}
			fmt.Printf("agent> %s\n", reply)

			state, err := e.Conversations.Load(ctx, id)
			if err == nil && state != nil && state.Complete() {
				break
			}
		}

		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatConversationID, "conversation", "", "resume an existing conversation ID")
	rootCmd.AddCommand(chatCmd)
}
