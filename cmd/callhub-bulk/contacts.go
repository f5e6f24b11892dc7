package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dialops/callhub-client/pkg/pagination"
)

var contactsLimit int

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Export contacts as JSON lines",
	Long: `Walk the account's contact listing and print one JSON object per
line, suitable for piping into jq or a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		it := client.Contacts(contactsLimit)
		for {
			page, err := it.Next(cmd.Context())
			if errors.Is(err, pagination.ErrDone) {
				return nil
			}
			if err != nil {
				return err
			}
			for _, record := range page.Records {
				fmt.Fprintf(out, "%s\n", record)
			}
		}
	},
}

func init() {
	contactsCmd.Flags().IntVar(&contactsLimit, "limit", 0, "stop after this many contacts (0 exports everything)")
	rootCmd.AddCommand(contactsCmd)
}
