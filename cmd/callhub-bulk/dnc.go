package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dialops/callhub-client/pkg/batch"
)

var (
	dncAddList    int64
	dncRemoveList int64
)

var dncCmd = &cobra.Command{
	Use:   "dnc",
	Short: "Manage do-not-call lists and their phone numbers",
}

var dncListsCmd = &cobra.Command{
	Use:   "lists",
	Short: "List the account's do-not-call lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		lists, err := client.GetDNCLists(cmd.Context())
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(lists))
		for id := range lists {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Name"})
		for _, id := range ids {
			t.AppendRow(table.Row{id, lists[id]})
		}
		t.Render()
		return nil
	},
}

var dncPhonesCmd = &cobra.Command{
	Use:   "phones",
	Short: "List every phone number with a do-not-call entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		phones, err := client.GetDNCPhones(cmd.Context())
		if err != nil {
			return err
		}

		numbers := make([]string, 0, len(phones))
		for phone := range phones {
			numbers = append(numbers, phone)
		}
		sort.Strings(numbers)

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Phone", "List ID", "List Name", "Entry ID"})
		for _, phone := range numbers {
			for _, entry := range phones[phone] {
				t.AppendRow(table.Row{entry.Phone, entry.ListID, entry.ListName, entry.ContactID})
			}
		}
		t.Render()
		return nil
	},
}

var dncAddCmd = &cobra.Command{
	Use:   "add --list <id> <phone>...",
	Short: "Add phone numbers to a do-not-call list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		result, err := client.AddDNC(cmd.Context(), args, dncAddList)
		if err != nil {
			return err
		}

		renderOutcomes(cmd, args, result)
		if result.Failed() > 0 {
			return fmt.Errorf("%d of %d numbers were not added", result.Failed(), len(args))
		}
		return nil
	},
}

var dncRemoveCmd = &cobra.Command{
	Use:   "remove --list <id> <phone>...",
	Short: "Remove phone numbers from a do-not-call list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		result, matched, err := client.RemoveDNC(cmd.Context(), args, dncRemoveList)
		if err != nil {
			return err
		}
		if len(matched) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matching entries on that list.")
			return nil
		}

		phones := make([]string, len(matched))
		for i, entry := range matched {
			phones[i] = entry.Phone
		}
		renderOutcomes(cmd, phones, result)
		if result.Failed() > 0 {
			return fmt.Errorf("%d of %d entries were not removed", result.Failed(), len(matched))
		}
		return nil
	},
}

var dncCreateListCmd = &cobra.Command{
	Use:   "create-list <name>",
	Short: "Create a new do-not-call list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		id, err := client.CreateDNCList(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created list %q with id %d\n", args[0], id)
		return nil
	},
}

var dncRemoveListCmd = &cobra.Command{
	Use:   "remove-list <id>",
	Short: "Delete a do-not-call list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("list id must be numeric: %w", err)
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.RemoveDNCList(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed list %d\n", id)
		return nil
	},
}

// renderOutcomes prints one row per phone with the slot's status. Outcomes
// align with the phones slice by index.
func renderOutcomes(cmd *cobra.Command, phones []string, result *batch.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Phone", "Status"})
	for i, phone := range phones {
		status := "ok"
		if err := result.Outcomes[i].Err; err != nil {
			status = err.Error()
		}
		t.AppendRow(table.Row{phone, status})
	}
	t.Render()
}

func init() {
	dncAddCmd.Flags().Int64Var(&dncAddList, "list", 0, "id of the do-not-call list (required)")
	dncAddCmd.MarkFlagRequired("list")
	dncRemoveCmd.Flags().Int64Var(&dncRemoveList, "list", 0, "id of the do-not-call list (required)")
	dncRemoveCmd.MarkFlagRequired("list")

	dncCmd.AddCommand(dncListsCmd, dncPhonesCmd, dncAddCmd, dncRemoveCmd, dncCreateListCmd, dncRemoveListCmd)
	rootCmd.AddCommand(dncCmd)
}
