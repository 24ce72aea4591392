package main

import (
	"fmt"
	"os"
	"path/filepath"

	"briefdesk/internal/config"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .briefdesk workspace in the current directory",
	Long: `Writes a default .briefdesk/config.yaml plus empty inbox and
templates directories. Edit the config to pick your model provider
and enabled sources, then drop JSON exports into the inbox.`,
	RunE: initWorkspace,
}

func initWorkspace(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	base := filepath.Join(cwd, ".briefdesk")
	cfgPath := filepath.Join(base, "config.yaml")
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("workspace already initialized at %s", base)
	}

	for _, dir := range []string{base, filepath.Join(base, "inbox"), filepath.Join(base, "templates"), filepath.Join(base, "logs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := config.DefaultConfig().Save(cfgPath); err != nil {
		return err
	}

	fmt.Printf("Initialized briefdesk workspace at %s\n", base)
	fmt.Println("Next steps:")
	fmt.Println("  1. Set OPENAI_API_KEY or ANTHROPIC_API_KEY (or edit config.yaml)")
	fmt.Println("  2. Drop per-source JSON exports into .briefdesk/inbox/")
	fmt.Println("  3. Run: briefdesk run")
	return nil
}
