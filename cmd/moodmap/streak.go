package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justestif/moodmap/internal/history"
	"github.com/justestif/moodmap/internal/persist"
)

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Print listening streak statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		var records []history.SessionRecord
		if _, err := persist.LoadJSON(ctx, store, persist.KeySessionLog, &records); err != nil {
			return err
		}
		s := history.ComputeStreak(records)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Sessions:        %d\n", s.TotalSessions)
		fmt.Fprintf(out, "Days listened:   %d\n", s.TotalDays)
		fmt.Fprintf(out, "Current streak:  %d\n", s.CurrentStreak)
		fmt.Fprintf(out, "Longest streak:  %d\n", s.LongestStreak)
		return nil
	},
}
