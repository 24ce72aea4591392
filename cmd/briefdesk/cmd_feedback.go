package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	feedbackComment  string
	feedbackEditFile string
	feedbackUser     string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback [summary-id] [approved|edited|rejected]",
	Short: "Record a verdict on a summary",
	Long: `Records your verdict on a summary. Edited verdicts should carry the
edited text (--edit-file) so the learner can compare it against the
original and adapt tone, length, and style.

Unknown verdict values are kept but treated as approved.`,
	Args: cobra.ExactArgs(2),
	RunE: recordFeedback,
}

func init() {
	feedbackCmd.Flags().StringVarP(&feedbackComment, "comment", "c", "", "Free-form note attached to the verdict")
	feedbackCmd.Flags().StringVar(&feedbackEditFile, "edit-file", "", "File containing your edited version of the summary")
	feedbackCmd.Flags().StringVar(&feedbackUser, "user", "", "Operator identifier")
}

func recordFeedback(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	editedBody := ""
	if feedbackEditFile != "" {
		data, err := os.ReadFile(feedbackEditFile)
		if err != nil {
			return fmt.Errorf("failed to read edit file: %w", err)
		}
		editedBody = string(data)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	rec, err := a.feedback.StoreFeedback(ctx, args[0], args[1], feedbackComment, editedBody, feedbackUser)
	if err != nil {
		return err
	}

	fmt.Printf("Recorded %s verdict for summary %s (feedback %s)\n", rec.Verdict, rec.SummaryID, rec.ID)
	return nil
}
