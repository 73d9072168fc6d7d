package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "opsctl",
	Short: "Ops Assistant CLI - chat with the location dataset from the terminal",
	Long: `opsctl is the command-line client for the Ops Assistant server.

It manages conversations and runs chat turns against the indoor
location-tracking dataset, streaming the assistant's reasoning, SQL
queries and answer as they happen.

Examples:
  # One-shot question
  opsctl chat --message "How many zones are there?"

  # Interactive session in an existing conversation
  opsctl chat conv_1a2b3c

  # Conversation management
  opsctl conversations list
  opsctl conversations show conv_1a2b3c
  opsctl conversations delete conv_1a2b3c

  # Check your rate-limit quota
  opsctl quota`,
	Version: version,
}

var (
	flagServerURL string
	flagAPIKey    string
)

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(quotaCmd)

	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "Server base URL (default from ~/.opsctl.yaml or http://localhost:3000)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key (default from ~/.opsctl.yaml or OPS_API_KEY)")
}
