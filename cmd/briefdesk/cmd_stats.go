package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show feedback statistics for the trailing window",
	RunE:  showStats,
}

func showStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	stats, err := a.feedback.GetFeedbackStats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Feedback over the last %d days:\n", stats.WindowDays)
	fmt.Printf("  total:    %d\n", stats.Total)
	fmt.Printf("  approved: %d\n", stats.Approved)
	fmt.Printf("  edited:   %d\n", stats.Edited)
	fmt.Printf("  rejected: %d\n", stats.Rejected)
	if stats.Total > 0 {
		fmt.Printf("  approval rate: %.0f%%\n", stats.ApprovalRate*100)
	}
	return nil
}
