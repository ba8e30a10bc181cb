package producer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spacesedan/moodmeter/internal/clients/kafka_client"
	"github.com/spacesedan/moodmeter/internal/feedback"
	"github.com/spacesedan/moodmeter/internal/models"
	"github.com/spacesedan/moodmeter/internal/utils"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, records []kafka_client.Record) error
}

// PublishEntries sends entries to topic as FeedbackEvents, one transaction
// per chunk of batchSize. Entries with blank text are skipped. It returns
// how many events were published.
func PublishEntries(ctx context.Context, publisher Publisher, topic string, entries []feedback.Entry, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = utils.BATCH_SIZE
	}

	buffer := utils.NewBatchBuffer[kafka_client.Record](batchSize)
	published := 0

	flush := func() error {
		records := buffer.GetAndClear()
		if len(records) == 0 {
			return nil
		}
		if err := publisher.Publish(ctx, topic, records); err != nil {
			return fmt.Errorf("publishing after %d events: %w", published, err)
		}
		published += len(records)
		return nil
	}

	skipped := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		if strings.TrimSpace(e.Text) == "" {
			skipped++
			continue
		}

		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		full := buffer.Add(kafka_client.Record{
			Key: id,
			Value: models.FeedbackEvent{
				ID:          id,
				Text:        e.Text,
				Department:  e.Department,
				SubmittedAt: time.Now().UTC(),
			},
		})
		if full {
			if err := flush(); err != nil {
				return published, err
			}
		}
	}
	if err := flush(); err != nil {
		return published, err
	}

	slog.Info("[Producer] Feedback events published",
		slog.String("topic", topic),
		slog.Int("published", published),
		slog.Int("skipped", skipped))
	return published, nil
}
