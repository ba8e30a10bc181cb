package kafka_client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// OffsetCommitter is satisfied by *kafka.Consumer.
type OffsetCommitter interface {
	CommitMessage(msg *kafka.Message) ([]kafka.TopicPartition, error)
}

type KafkaCommitHandler struct {
	consumer   OffsetCommitter
	ctx        context.Context
	retryDelay time.Duration
}

func NewCommitHandler(ctx context.Context, consumer OffsetCommitter) *KafkaCommitHandler {
	return &KafkaCommitHandler{
		consumer:   consumer,
		ctx:        ctx,
		retryDelay: RETRY_DELAY,
	}
}

// Commit stores the offset after msg, so committing the last message of a
// partition covers every message before it.
func (ch *KafkaCommitHandler) Commit(msg *kafka.Message) error {
	if ch.consumer == nil {
		return errors.New("[KafkaCommitHandler] Kafka consumer has not been initialized")
	}

	for i := 0; i < MAX_RETRIES; i++ {
		if err := ch.ctx.Err(); err != nil {
			slog.Warn("[KafkaCommitHandler] Context canceled, stopping commit")
			return err
		}

		_, err := ch.consumer.CommitMessage(msg)
		if err == nil {
			slog.Debug("[KafkaCommitHandler] Successfully committed offset",
				slog.Int("partition", int(msg.TopicPartition.Partition)),
				slog.String("offset", msg.TopicPartition.Offset.String()))
			return nil
		}
		slog.Warn("[KafkaCommitHandler] Failed to commit offset, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()),
			slog.Int("partition", int(msg.TopicPartition.Partition)),
			slog.String("offset", msg.TopicPartition.Offset.String()))

		var kafkaErr kafka.Error
		if errors.As(err, &kafkaErr) && kafkaErr.Code() == kafka.ErrAllBrokersDown {
			slog.Error("[KafkaCommitHandler] All Kafka brokers are down. Aborting commit")
			return err
		}

		select {
		case <-ch.ctx.Done():
			return ch.ctx.Err()
		case <-time.After(ch.retryDelay):
		}
	}

	return fmt.Errorf("[KafkaCommitHandler] Failed to commit message after %d retries", MAX_RETRIES)
}

// CommitLatest commits the highest offset seen per partition in msgs.
func (ch *KafkaCommitHandler) CommitLatest(msgs []*kafka.Message) error {
	for _, msg := range LatestPerPartition(msgs) {
		if err := ch.Commit(msg); err != nil {
			return err
		}
	}
	return nil
}

func LatestPerPartition(msgs []*kafka.Message) []*kafka.Message {
	type partitionKey struct {
		topic     string
		partition int32
	}

	latest := make(map[partitionKey]*kafka.Message)
	var order []partitionKey
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		var topic string
		if msg.TopicPartition.Topic != nil {
			topic = *msg.TopicPartition.Topic
		}
		key := partitionKey{topic: topic, partition: msg.TopicPartition.Partition}

		current, seen := latest[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || msg.TopicPartition.Offset > current.TopicPartition.Offset {
			latest[key] = msg
		}
	}

	out := make([]*kafka.Message, 0, len(order))
	for _, key := range order {
		out = append(out, latest[key])
	}
	return out
}
