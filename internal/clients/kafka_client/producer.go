package kafka_client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/moodmeter/config"
)

// Record is one message to publish. Value is encoded as JSON.
type Record struct {
	Key   string
	Value any
}

type Producer struct {
	producer *kafka.Producer
}

func NewProducer(ctx context.Context, cfg config.KafkaConfig) (*Producer, error) {
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker),
		slog.String("transactional_id", cfg.TransactionalID))

	p, err := kafka.NewProducer(ProducerConfigMap(cfg))
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	if err := p.InitTransactions(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("[KafkaClient] Failed to init transactions: %w", err)
	}

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return &Producer{producer: p}, nil
}

func (p *Producer) Close() {
	slog.Info("[KafkaClient] Flushing Kafka producer before shutdown...")
	if remaining := p.producer.Flush(FLUSH_TIMEOUT_MS); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	p.producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
}

// Publish sends records to topic in a single transaction: either all of
// them become visible to read_committed consumers or none do.
func (p *Producer) Publish(ctx context.Context, topic string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	msgs, err := EncodeRecords(topic, records)
	if err != nil {
		return err
	}

	if err := p.producer.BeginTransaction(); err != nil {
		return fmt.Errorf("[KafkaClient] failed to begin transaction: %w", err)
	}

	for _, msg := range msgs {
		if err := p.produce(msg); err != nil {
			return p.abort(ctx, err)
		}
	}

	var commitErr error
	for i := 0; i < 3; i++ {
		commitErr = p.producer.CommitTransaction(ctx)
		if commitErr == nil {
			break
		}
		if kafkaErr, ok := commitErr.(kafka.Error); ok && kafkaErr.TxnRequiresAbort() {
			return p.abort(ctx, commitErr)
		}
		slog.Warn("[KafkaClient] Failed to commit transaction, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", commitErr.Error()))
	}
	if commitErr != nil {
		return fmt.Errorf("[KafkaClient] failed to commit transaction after 3 retries: %w", commitErr)
	}

	slog.Info("[KafkaClient] Published records to Kafka transactionally",
		slog.String("topic", topic),
		slog.Int("count", len(msgs)))
	return nil
}

func (p *Producer) produce(msg *kafka.Message) error {
	var err error
	for i := 0; i < 3; i++ {
		err = p.producer.Produce(msg, nil)
		if err == nil {
			return nil
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
	}
	return err
}

func (p *Producer) abort(ctx context.Context, cause error) error {
	if abortErr := p.producer.AbortTransaction(ctx); abortErr != nil {
		return fmt.Errorf("[KafkaClient] failed to abort transaction after %w: %w", cause, abortErr)
	}
	return cause
}

// EncodeRecords builds the kafka messages for records, keyed by Record.Key.
func EncodeRecords(topic string, records []Record) ([]*kafka.Message, error) {
	msgs := make([]*kafka.Message, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(r.Value)
		if err != nil {
			return nil, fmt.Errorf("[KafkaClient] failed to serialize record %s: %w", r.Key, err)
		}

		msg := &kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
			Value:          value,
		}
		if r.Key != "" {
			msg.Key = []byte(r.Key)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
