// Package main is the entry point for the Flashblocks Catcher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const programName = "catcher"

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var globalFlags = struct {
	configPath string
	cli        bool
}{}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Catch falling blocks and race flashblocks against standard blocks",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// TUI is the default, CLI is for debugging
			return play(cmd.Context(), !globalFlags.cli)
		},
	}

	rootCmd.PersistentFlags().
		StringVar(&globalFlags.configPath, "config", "", "path to configuration file")
	rootCmd.Flags().
		BoolVar(&globalFlags.cli, "cli", false, "run headless with logs and console output (no TUI)")

	rootCmd.AddCommand(raceCommand())
	rootCmd.AddCommand(versionCommand())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s (commit: %s, built: %s)\n", programName, version, commit, buildDate)
		},
	}
}
