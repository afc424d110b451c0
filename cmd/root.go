// Package cmd wires the CLI surface of the insights generator.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/santaclaude2025/insights/pkg/config"
	"github.com/santaclaude2025/insights/pkg/logger"
	"github.com/santaclaude2025/insights/pkg/pipeline"
)

var (
	flagDryRun  bool
	flagProject string
	flagAfter   string
	flagModel   string
)

var rootCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate a usage insights report from your Claude Code sessions",
	Long: `Insights scans your local Claude Code session transcripts, extracts
per-session metrics and LLM-judged facets, and renders an HTML report
about what you work on, what works, and where things go wrong.

Facets are cached under ~/.claude/usage-data/facets, so re-runs only
pay for sessions that have not been analyzed yet.`,
	Example: `  insights                           # full run, all sessions
  insights --dry-run                 # show what would be processed, with cost estimate
  insights --project "*claude*"      # only projects matching glob
  insights --after 2026-02-01        # only sessions modified after this date
  insights --model claude-opus-4-6   # override the model`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(); err != nil {
			fmt.Fprintln(os.Stderr, "warning: file logging disabled:", err)
		}

		cfg, err := config.Default()
		if err != nil {
			return err
		}
		if flagModel != "" {
			cfg = cfg.WithModel(flagModel)
		}

		p := pipeline.New(cfg, cmd.OutOrStdout())
		return p.Run(cmd.Context(), pipeline.Options{
			DryRun:      flagDryRun,
			ProjectGlob: flagProject,
			After:       flagAfter,
		})
	},
}

func init() {
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show session counts and cost estimate without making API calls")
	rootCmd.Flags().StringVar(&flagProject, "project", "", "filter projects by glob pattern (e.g. '*claude*')")
	rootCmd.Flags().StringVar(&flagAfter, "after", "", "only include sessions modified after this date (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&flagModel, "model", "", fmt.Sprintf("override model (default: %s)", config.DefaultModel))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
