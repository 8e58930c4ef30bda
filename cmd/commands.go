package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

var newsCmd = &cobra.Command{
	Use:   "news <category>",
	Short: "Print articles for a category",
	Long: `Run one request through the retrieval waterfall and print the result as JSON.

Categories: ` + strings.Join(model.Categories, ", "),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(cmd, func(a *app) error {
			res := a.orchestrator.Retrieve(cmd.Context(), args[0], limit)
			logger.Info("served", "stage", res.Stage, "articles", len(res.Articles))
			return printJSON(res.Articles)
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <category>",
	Short: "Force a provider fetch for a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !model.IsCategory(args[0]) {
			return fmt.Errorf("unknown category %q", args[0])
		}

		return withApp(cmd, func(a *app) error {
			return printJSON(a.orchestrator.RefreshCategory(cmd.Context(), args[0]))
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache, quota and provider status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			return printJSON(a.orchestrator.Stats(cmd.Context()))
		})
	},
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop every cached category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			return a.orchestrator.ClearCache(cmd.Context())
		})
	},
}

func init() {
	newsCmd.Flags().IntP("limit", "n", 0, "number of articles (default from config)")

	rootCmd.AddCommand(newsCmd, refreshCmd, statsCmd, clearCacheCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
