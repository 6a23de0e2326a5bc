package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var analyzeEnrich bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <area>",
	Short: "Find under-served business categories in an area",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		ctx := cmd.Context()
		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		analysis, err := e.Analyzer.Analyze(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if analyzeEnrich && e.Merger != nil && len(analysis.Dominant) > 0 {
			analysis.Research = e.Merger.Note(ctx, analysis.Area, analysis.Dominant[0].Category)
		}
		return printJSON(analysis)
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeEnrich, "enrich", false, "attach a market research note (needs research enabled)")
	rootCmd.AddCommand(analyzeCmd)
}
