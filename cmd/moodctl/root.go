package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spacesedan/moodmeter/config"
	"github.com/spacesedan/moodmeter/internal/clients"
	"github.com/spacesedan/moodmeter/internal/logging"
	"github.com/spacesedan/moodmeter/internal/sentiment"
	"github.com/spf13/cobra"
)

type options struct {
	classifier string
	jsonOutput bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "moodctl",
		Short:        "Classify feedback sentiment from the command line",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitLogger(opts.logLevel)
		},
	}

	root.PersistentFlags().StringVar(&opts.classifier, "classifier", config.CLASSIFIER_VADER,
		"classifier backend: vader, hugot, huggingface or openai")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "log level")

	root.AddCommand(newAnalyzeCmd(opts), newBulkCmd(opts), newPublishCmd())
	return root
}

// buildAnalyzer reads the environment like the services do, then applies
// the --classifier override.
func buildAnalyzer(opts *options) (*sentiment.Analyzer, func(), error) {
	loadEnv()

	if opts.classifier != "" {
		os.Setenv("CLASSIFIER", opts.classifier)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	backend, err := clients.NewBackend(cfg.Classifier, nil)
	if err != nil {
		return nil, nil, err
	}

	analyzer := sentiment.NewAnalyzer(backend.Classifier,
		sentiment.WithConcurrency(cfg.Analyzer.Concurrency),
		sentiment.WithBatchSize(cfg.Analyzer.BatchSize),
		sentiment.WithItemTimeout(cfg.Analyzer.ItemTimeout))
	return analyzer, backend.Close, nil
}

func loadEnv() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
}

func printResults(w io.Writer, results []sentiment.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tEMOJI\tSCORE\tCONFIDENCE\tTEXT")
	for _, r := range results {
		category := r.Category().String()
		if r.Fallback() {
			category += " (fallback)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.3f\t%s\n",
			category, r.Emoji(), r.Score(), r.Confidence(), preview(r.Text(), 60))
	}
	return tw.Flush()
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n-1]) + "…"
}
