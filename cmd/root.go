package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kovalyov-valentin/news-retriever/internal/config"
)

var (
	verbose bool
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "newsd",
	Short: "Tiered news retrieval service",
	Long: `newsd serves news articles per category from cache, database, external
providers or placeholders, within a daily provider budget.

Configuration is read from config.hcl, config.local.hcl, .env and NR_* variables.

Example usage:
  newsd serve                  # HTTP API, Telegram bot and refresher
  newsd news technology -n 5   # Print articles for one category
  newsd refresh crypto         # Force a provider fetch
  newsd stats                  # Cache, quota and provider status
  newsd clear-cache            # Drop every cached category`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// withApp wires the core from configuration, runs fn and releases everything afterwards.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := newApp(cmd.Context(), config.Get(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	return fn(a)
}
