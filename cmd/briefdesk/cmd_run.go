package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"briefdesk/internal/orchestrator"
	"briefdesk/internal/pipeline"
	"briefdesk/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runInputDir string
	runWatch    bool
	runInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full digest cycle over every enabled source",
	Long: `Fetches activity from every enabled source, summarizes each one,
and prints the composite digest. Source exports are read as JSON
files from the input directory, one file per source (chat.json,
tickets.json, ...).

With --watch the cycle repeats on an interval until interrupted.`,
	RunE: runDigest,
}

func init() {
	runCmd.Flags().StringVarP(&runInputDir, "input", "i", ".briefdesk/inbox", "Directory of per-source JSON exports")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Keep running on an interval")
	runCmd.Flags().DurationVar(&runInterval, "interval", 15*time.Minute, "Cycle interval for --watch")
}

func runDigest(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	fetchers, err := pipeline.DiscoverFileFetchers(runInputDir, a.cfg.Sources.Enabled)
	if err != nil {
		return err
	}
	if len(fetchers) == 0 {
		return fmt.Errorf("no source exports found in %s", runInputDir)
	}

	p := pipeline.New(fetchers, a.resolver, a.orch, len(fetchers))

	if !runWatch {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return runOnce(ctx, p)
	}

	// Hot-reload prompt templates while watching.
	watcher, err := orchestrator.NewTemplateWatcher(a.templates)
	if err == nil {
		if err := watcher.Start(cmd.Context()); err == nil {
			defer watcher.Stop()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(runInterval)
	defer ticker.Stop()

	logger.Info("watching sources", zap.Duration("interval", runInterval))
	for {
		// Drop entities whose freshness window lapsed between cycles.
		if pruned := a.cache.Prune(); pruned > 0 {
			logger.Debug("pruned expired cache entries", zap.Int("count", pruned))
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		if err := runOnce(ctx, p); err != nil {
			logger.Warn("digest cycle failed", zap.Error(err))
		}
		cancel()

		select {
		case <-ticker.C:
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			return nil
		case <-cmd.Context().Done():
			return nil
		}
	}
}

func runOnce(ctx context.Context, p *pipeline.Pipeline) error {
	result, err := p.Run(ctx)
	if err != nil {
		return err
	}

	for source, srcErr := range result.Errors {
		logger.Warn("source failed", zap.String("source", source), zap.Error(srcErr))
	}
	if result.Composite == nil {
		fmt.Println("No new activity.")
		return nil
	}

	printSummary(result.Composite)
	return nil
}

// printSummary renders one result for the terminal.
func printSummary(res *types.SummaryResult) {
	fmt.Printf("── %s digest %s", res.Source, res.CreatedAt.Local().Format("2006-01-02 15:04"))
	if res.ParseDegraded {
		fmt.Print("  (degraded parse)")
	}
	fmt.Printf("\n   id: %s\n\n%s\n", res.ID, res.Summary)

	if len(res.ActionItems) > 0 {
		fmt.Println("\nAction items:")
		for _, item := range res.ActionItems {
			fmt.Printf("  - %s\n", item)
		}
	}
	if len(res.SuggestedMessages) > 0 {
		fmt.Println("\nSuggested replies (not sent):")
		sorted := append([]types.SuggestedMessage(nil), res.SuggestedMessages...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
		for _, msg := range sorted {
			if msg.Recipient != "" {
				fmt.Printf("  To %s (confidence %.2f):\n", msg.Recipient, msg.Confidence)
			} else {
				fmt.Printf("  (confidence %.2f):\n", msg.Confidence)
			}
			fmt.Printf("    %s\n", msg.Body)
		}
	}
	fmt.Println()
}
