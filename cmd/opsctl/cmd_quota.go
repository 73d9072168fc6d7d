package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show your rate-limit quota without consuming a request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		status, err := client.quota()
		if err != nil {
			return err
		}
		fmt.Printf("limit:     %d requests/hour\n", status.Limit)
		fmt.Printf("remaining: %d\n", status.Remaining)
		fmt.Printf("resets:    %s\n", status.Reset)
		return nil
	},
}
