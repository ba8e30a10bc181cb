package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spacesedan/moodmeter/config"
	"github.com/spacesedan/moodmeter/internal/clients/kafka_client"
	"github.com/spacesedan/moodmeter/internal/feedback"
	"github.com/spacesedan/moodmeter/internal/producer"
	"github.com/spf13/cobra"
)

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <file.csv>",
		Short: "Publish every CSV row as a feedback-submitted event",
		Long: `Publish reads a CSV file with a feedback column and sends one event per
non-blank row to the submitted topic, one Kafka transaction per batch.
The consumer worker analyzes and stores them.`,
		Args: cobra.ExactArgs(1),
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

			loadEnv()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			p, err := kafka_client.NewProducer(cmd.Context(), cfg.Kafka)
			if err != nil {
				return err
			}
			defer p.Close()

			n, err := producer.PublishEntries(cmd.Context(), p, cfg.Kafka.SubmittedTopic, entries, cfg.Kafka.BatchSize)
			if err != nil {
				slog.Error("[Moodctl] Publishing stopped", slog.Int("published", n))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d feedback events to %s\n", n, cfg.Kafka.SubmittedTopic)
			return nil
		},
	}
}
