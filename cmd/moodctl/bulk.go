package main

import (
	"fmt"
	"os"

	"github.com/spacesedan/moodmeter/internal/feedback"
	"github.com/spf13/cobra"
)

func newBulkCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk <file.csv>",
		Short: "Classify every row of a CSV file with a feedback column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			entries, err := feedback.ParseCSV(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			analyzer, closeFn, err := buildAnalyzer(opts)
			if err != nil {
				return err
			}
			defer closeFn()

			texts := make([]string, len(entries))
			for i, e := range entries {
				texts[i] = e.Text
			}
			return printResults(cmd.OutOrStdout(), analyzer.AnalyzeBulk(cmd.Context(), texts), opts.jsonOutput)
		},
	}
}
