package main

import (
	"context"

	"briefdesk/internal/pipeline"

	"github.com/spf13/cobra"
)

var summarizeSource string

var summarizeCmd = &cobra.Command{
	Use:   "summarize [export.json]",
	Short: "Summarize a single source export",
	Long: `Summarizes one JSON export of activity records and prints the result.
The source tag defaults to the file name; override it with --source
to pick the matching prompt template.`,
	Args: cobra.ExactArgs(1),
	RunE: summarizeOne,
}

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeSource, "source", "s", "", "Source tag (chat, tickets, time, email)")
}

func summarizeOne(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	fetcher := pipeline.NewFileFetcher(summarizeSource, args[0])
	records, err := fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	bundle, err := a.resolver.Resolve(ctx, records)
	if err != nil {
		logger.Sugar().Warnf("context resolution failed: %v", err)
	}

	res, err := a.orch.Summarize(ctx, fetcher.Source(), records, bundle)
	if err != nil {
		return err
	}

	printSummary(res)
	return nil
}
