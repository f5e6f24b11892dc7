package main

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dialops/callhub-client/pkg/callhub"
)

var (
	bulkPhonebook int64
	bulkCountry   string
)

var bulkCreateCmd = &cobra.Command{
	Use:   "bulk-create <contacts.csv>",
	Short: "Import a CSV of contacts into a phonebook",
	Long: `Import contacts from a CSV file into a CallHub phonebook.

The first row of the file names the contact fields (as listed by the
fields command); every following row is one contact. Empty cells are
skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contacts, err := readContactsCSV(args[0])
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.BulkCreate(cmd.Context(), bulkPhonebook, contacts, bulkCountry); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Import of %d contacts accepted; CallHub mails a report when it completes.\n", len(contacts))
		return nil
	},
}

// readContactsCSV loads a CSV whose header row names contact fields and
// returns one Contact per data row.
func readContactsCSV(path string) ([]callhub.Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open contacts file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse contacts file: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("contacts file needs a header row and at least one contact")
	}

	header := rows[0]
	contacts := make([]callhub.Contact, 0, len(rows)-1)
	for _, row := range rows[1:] {
		contact := callhub.Contact{}
		for i, value := range row {
			if value == "" {
				continue
			}
			contact[header[i]] = value
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

func init() {
	bulkCreateCmd.Flags().Int64Var(&bulkPhonebook, "phonebook", 0, "id of the phonebook to import into (required)")
	bulkCreateCmd.Flags().StringVar(&bulkCountry, "country", "US", "ISO country code applied to every imported contact")
	bulkCreateCmd.MarkFlagRequired("phonebook")
	rootCmd.AddCommand(bulkCreateCmd)
}
