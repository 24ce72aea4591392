package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show the learned preference profile",
	Long: `Prints the tone, length, and style preferences learned from your
recent edits, plus trailing verdict rates. The profile shapes every
prompt the orchestrator sends.`,
	RunE: showPrefs,
}

func showPrefs(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	profile, err := a.feedback.GetPreferenceProfile(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Learned preferences:")
	fmt.Printf("  tone:     %s\n", profile.PreferredTone)
	fmt.Printf("  length:   %s\n", profile.PreferredLength)
	if profile.PreferredStyle != "" {
		fmt.Printf("  style:    %s\n", profile.PreferredStyle)
	}
	fmt.Printf("  samples:  %d\n", profile.SampleSize)
	if profile.SampleSize > 0 {
		fmt.Printf("  approval: %.0f%%  edit: %.0f%%  rejection: %.0f%%\n",
			profile.ApprovalRate*100, profile.EditRate*100, profile.RejectionRate*100)
	}
	if !profile.ComputedAt.IsZero() {
		fmt.Printf("  computed: %s\n", profile.ComputedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
