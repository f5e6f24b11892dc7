package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var fieldsRefresh bool

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the account's contact field schema",
	Long: `List the contact fields CallHub knows for this account, with the
numeric ids the bulk importer expects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		fetch := client.Fields
		if fieldsRefresh {
			fetch = client.RefreshFields
		}
		schema, err := fetch(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Field Name"})
		for _, field := range schema {
			t.AppendRow(table.Row{field.ID, field.Name})
		}
		t.Render()
		return nil
	},
}

func init() {
	fieldsCmd.Flags().BoolVar(&fieldsRefresh, "refresh", false, "fetch a fresh schema instead of the cached one")
	rootCmd.AddCommand(fieldsCmd)
}
