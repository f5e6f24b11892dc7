package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	leaderboardStart string
	leaderboardEnd   string
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the agent leaderboard as raw JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		end := time.Now()
		start := end.AddDate(0, 0, -30)
		var err error
		if leaderboardStart != "" {
			start, err = time.Parse("2006-01-02", leaderboardStart)
			if err != nil {
				return fmt.Errorf("parse --start: %w", err)
			}
		}
		if leaderboardEnd != "" {
			end, err = time.Parse("2006-01-02", leaderboardEnd)
			if err != nil {
				return fmt.Errorf("parse --end: %w", err)
			}
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		plot, err := client.AgentLeaderboard(cmd.Context(), start, end)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", plot)
		return nil
	},
}

func init() {
	leaderboardCmd.Flags().StringVar(&leaderboardStart, "start", "", "start date (YYYY-MM-DD, default 30 days ago)")
	leaderboardCmd.Flags().StringVar(&leaderboardEnd, "end", "", "end date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(leaderboardCmd)
}
