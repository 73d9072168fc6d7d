package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage conversations",
}

var listConversationsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		summaries, err := client.listConversations()
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("no conversations")
			return nil
		}
		for _, s := range summaries {
			fmt.Printf("%-24s created %s  last activity %s\n",
				s.ID,
				s.CreatedAt.Local().Format(time.RFC3339),
				s.LastMessage.Local().Format(time.RFC3339))
		}
		return nil
	},
}

var showConversationCmd = &cobra.Command{
	Use:   "show [conversation-id]",
	Short: "Print a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		detail, err := client.getConversation(args[0])
		if err != nil {
			return err
		}
		for _, msg := range detail.Messages {
			fmt.Printf("[%s] %s\n%s\n\n",
				msg.Timestamp.Local().Format("15:04:05"),
				msg.Role,
				msg.Content)
		}
		return nil
	},
}

var deleteConversationCmd = &cobra.Command{
	Use:   "delete [conversation-id]",
	Short: "Delete a conversation and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := client.deleteConversation(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func init() {
	conversationsCmd.AddCommand(listConversationsCmd)
	conversationsCmd.AddCommand(showConversationCmd)
	conversationsCmd.AddCommand(deleteConversationCmd)
}
