package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"briefdesk/internal/types"

	"github.com/spf13/cobra"
)

var (
	historySource string
	historyLimit  int
	historyDays   int
	historyFull   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent summaries",
	Long: `Lists stored summaries, newest first. Use the printed IDs with the
feedback command to record a verdict.`,
	RunE: showHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historySource, "source", "s", "", "Filter by source tag")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Maximum summaries to show")
	historyCmd.Flags().IntVar(&historyDays, "days", 0, "Only summaries from the last N days")
	historyCmd.Flags().BoolVar(&historyFull, "full", false, "Print full summaries instead of one line each")
}

func showHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	filter := types.SummaryFilter{Source: historySource, Limit: historyLimit}
	if historyDays > 0 {
		filter.Since = time.Now().AddDate(0, 0, -historyDays)
	}

	summaries, err := a.store.QuerySummaries(ctx, filter)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No summaries yet.")
		return nil
	}

	for _, res := range summaries {
		if historyFull {
			printSummary(&res)
			continue
		}
		flag := " "
		if res.ParseDegraded {
			flag = "!"
		}
		fmt.Printf("%s %s  %-9s  %s  %s\n",
			flag, res.CreatedAt.Local().Format("2006-01-02 15:04"), res.Source, res.ID, firstLine(res.Summary))
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 100 {
		s = s[:100] + "..."
	}
	return s
}
