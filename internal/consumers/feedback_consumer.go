package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
	"github.com/spacesedan/moodmeter/internal/clients/kafka_client"
	"github.com/spacesedan/moodmeter/internal/feedback"
	"github.com/spacesedan/moodmeter/internal/models"
	"github.com/spacesedan/moodmeter/internal/utils"
)

type MessageSource interface {
	Next() (*kafka.Message, error)
}

type Committer interface {
	CommitLatest(msgs []*kafka.Message) error
}

type Submitter interface {
	SubmitBulk(ctx context.Context, entries []feedback.Entry) ([]feedback.Submission, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, records []kafka_client.Record) error
}

// pending is a consumed message; entry is nil when the payload could not be
// decoded, so the offset still moves past it.
type pending struct {
	msg   *kafka.Message
	entry *feedback.Entry
}

// FeedbackConsumer turns submitted feedback events into stored, analyzed
// feedback. Offsets are committed only after a batch was stored and its
// analyzed events were published.
type FeedbackConsumer struct {
	source    MessageSource
	committer Committer
	submitter Submitter
	publisher Publisher

	analyzedTopic string
	batchTimeout  time.Duration
	buffer        *utils.BatchBuffer[pending]

	healthy   *atomic.Bool
	idleDelay time.Duration
}

type FeedbackConsumerOption func(*FeedbackConsumer)

// WithHealthGate pauses reading while healthy is false, leaving messages on
// the topic until the classifier recovers.
func WithHealthGate(healthy *atomic.Bool) FeedbackConsumerOption {
	return func(c *FeedbackConsumer) {
		c.healthy = healthy
	}
}

func NewFeedbackConsumer(source MessageSource, committer Committer, submitter Submitter, publisher Publisher,
	analyzedTopic string, batchSize int, batchTimeout time.Duration, opts ...FeedbackConsumerOption,
) *FeedbackConsumer {
	if batchTimeout <= 0 {
		batchTimeout = utils.BATCH_TIMEOUT
	}
	c := &FeedbackConsumer{
		source:        source,
		committer:     committer,
		submitter:     submitter,
		publisher:     publisher,
		analyzedTopic: analyzedTopic,
		batchTimeout:  batchTimeout,
		buffer:        utils.NewBatchBuffer[pending](batchSize),
		idleDelay:     time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is done or a batch cannot be stored or published.
// Buffered messages that were not flushed are left uncommitted and will be
// redelivered.
func (c *FeedbackConsumer) Run(ctx context.Context) error {
	slog.Info("[FeedbackConsumer] Listening for feedback submissions")

	ticker := time.NewTicker(c.batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Warn("[FeedbackConsumer] Consumer shutting down...",
				slog.Int("unflushed", c.buffer.Size()))
			return nil
		case <-ticker.C:
			if err := c.flush(ctx); err != nil {
				return err
			}
		default:
			if c.healthy != nil && !c.healthy.Load() {
				slog.Debug("[FeedbackConsumer] Classifier unhealthy, pausing")
				select {
				case <-ctx.Done():
				case <-time.After(c.idleDelay):
				}
				continue
			}

			msg, err := c.source.Next()
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				slog.Error("[FeedbackConsumer] Kafka Consumer Error", slog.String("error", err.Error()))
				return err
			}
			if msg == nil {
				continue
			}

			if c.buffer.Add(decode(msg)) {
				if err := c.flush(ctx); err != nil {
					return err
				}
			}
		}
	}
}

func decode(msg *kafka.Message) pending {
	var event models.FeedbackEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		slog.Warn("[FeedbackConsumer] Failed to deserialize JSON, skipping message",
			slog.String("error", err.Error()),
			slog.String("offset", msg.TopicPartition.Offset.String()))
		return pending{msg: msg}
	}
	id := event.ID
	if id == "" {
		id = messageID(msg)
	}
	return pending{msg: msg, entry: &feedback.Entry{
		ID:         id,
		Text:       event.Text,
		Department: event.Department,
	}}
}

// messageID derives a stable id from the log position for events sent
// without one.
func messageID(msg *kafka.Message) string {
	topic := ""
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}
	return fmt.Sprintf("%s/%d/%d", topic, msg.TopicPartition.Partition, int64(msg.TopicPartition.Offset))
}

func (c *FeedbackConsumer) flush(ctx context.Context) error {
	if !c.buffer.HasData() {
		return nil
	}
	c.buffer.LogBatchProcessing("feedback")
	batch := c.buffer.GetAndClear()

	msgs := make([]*kafka.Message, 0, len(batch))
	entries := make([]feedback.Entry, 0, len(batch))
	// DynamoDB rejects a batch write that names the same key twice
	seen := make(map[string]int, len(batch))
	for _, p := range batch {
		msgs = append(msgs, p.msg)
		if p.entry == nil {
			continue
		}
		if i, ok := seen[p.entry.ID]; ok {
			slog.Warn("[FeedbackConsumer] Duplicate event in batch, keeping the latest",
				slog.String("id", p.entry.ID))
			entries[i] = *p.entry
			continue
		}
		seen[p.entry.ID] = len(entries)
		entries = append(entries, *p.entry)
	}

	if len(entries) > 0 {
		submissions, err := c.submitter.SubmitBulk(ctx, entries)
		if err != nil {
			return fmt.Errorf("[FeedbackConsumer] failed to store batch: %w", err)
		}

		if err := c.publisher.Publish(ctx, c.analyzedTopic, analyzedRecords(submissions)); err != nil {
			return fmt.Errorf("[FeedbackConsumer] failed to publish analyzed feedback: %w", err)
		}
	}

	if err := c.committer.CommitLatest(msgs); err != nil {
		// the batch is stored; redelivery overwrites the same ids
		slog.Warn("[FeedbackConsumer] Failed to commit offset", slog.String("error", err.Error()))
	}
	return nil
}

func analyzedRecords(submissions []feedback.Submission) []kafka_client.Record {
	records := make([]kafka_client.Record, len(submissions))
	for i, s := range submissions {
		records[i] = kafka_client.Record{
			Key: s.Feedback.ID,
			Value: models.FeedbackAnalyzedEvent{
				EventID:     uuid.NewString(),
				Feedback:    s.Feedback,
				Emoji:       s.Result.Emoji(),
				Description: s.Result.Description(),
			},
		}
	}
	return records
}
