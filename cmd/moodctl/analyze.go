package main

import (
	"strings"

	"github.com/spacesedan/moodmeter/internal/sentiment"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <text...>",
		Short: "Classify a single piece of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, closeFn, err := buildAnalyzer(opts)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := analyzer.Analyze(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), []sentiment.Result{result}, opts.jsonOutput)
		},
	}
}
