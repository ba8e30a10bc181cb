package kafka_client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/moodmeter/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	mu     sync.Mutex
	steps  []readStep
	cursor int
}

type readStep struct {
	msg *kafka.Message
	err error
}

func (r *scriptedReader) ReadMessage(time.Duration) (*kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.steps) {
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
	step := r.steps[r.cursor]
	r.cursor++
	return step.msg, step.err
}

func message(topic string, partition int32, offset kafka.Offset) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: partition, Offset: offset},
	}
}

func TestKafkaMessageIterator_Next(t *testing.T) {
	want := message("feedback-submitted", 0, 7)
	reader := &scriptedReader{steps: []readStep{
		{err: errors.New("transient")},
		{msg: want},
	}}

	it := NewKafkaMessageIterator(context.Background(), reader)
	it.retryDelay = time.Millisecond

	got, err := it.Next()
	require.NoError(t, err)
	assert.Same(t, want, got)

	// nothing left: a poll timeout is not an error
	got, err = it.Next()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKafkaMessageIterator_BrokersDown(t *testing.T) {
	reader := &scriptedReader{steps: []readStep{
		{err: kafka.NewError(kafka.ErrAllBrokersDown, "all brokers down", false)},
	}}

	_, err := NewKafkaMessageIterator(context.Background(), reader).Next()
	require.Error(t, err)
	assert.Equal(t, 1, reader.cursor)
}

func TestKafkaMessageIterator_GivesUp(t *testing.T) {
	steps := make([]readStep, MAX_RETRIES)
	for i := range steps {
		steps[i] = readStep{err: errors.New("transient")}
	}
	it := NewKafkaMessageIterator(context.Background(), &scriptedReader{steps: steps})
	it.retryDelay = time.Millisecond

	_, err := it.Next()
	assert.Error(t, err)
}

func TestKafkaMessageIterator_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewKafkaMessageIterator(ctx, &scriptedReader{}).Next()
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingCommitter struct {
	mu        sync.Mutex
	failures  int
	committed []*kafka.Message
}

func (c *recordingCommitter) CommitMessage(msg *kafka.Message) ([]kafka.TopicPartition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return nil, errors.New("coordinator loading")
	}
	c.committed = append(c.committed, msg)
	return []kafka.TopicPartition{msg.TopicPartition}, nil
}

func TestKafkaCommitHandler_RetriesThenCommits(t *testing.T) {
	committer := &recordingCommitter{failures: 2}
	ch := NewCommitHandler(context.Background(), committer)
	ch.retryDelay = time.Millisecond

	msg := message("feedback-submitted", 1, 3)
	require.NoError(t, ch.Commit(msg))
	assert.Equal(t, []*kafka.Message{msg}, committer.committed)
}

func TestKafkaCommitHandler_CommitLatest(t *testing.T) {
	committer := &recordingCommitter{}
	ch := NewCommitHandler(context.Background(), committer)

	p0a := message("t", 0, 1)
	p0b := message("t", 0, 5)
	p1 := message("t", 1, 2)
	require.NoError(t, ch.CommitLatest([]*kafka.Message{p0a, p1, p0b, nil}))
	assert.Equal(t, []*kafka.Message{p0b, p1}, committer.committed)
}

func TestEncodeRecords(t *testing.T) {
	msgs, err := EncodeRecords("feedback-analyzed", []Record{
		{Key: "fb-1", Value: map[string]int{"n": 1}},
		{Value: "plain"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "feedback-analyzed", *msgs[0].TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, msgs[0].TopicPartition.Partition)
	assert.Equal(t, []byte("fb-1"), msgs[0].Key)
	assert.JSONEq(t, `{"n":1}`, string(msgs[0].Value))
	assert.Nil(t, msgs[1].Key)
	assert.Equal(t, `"plain"`, string(msgs[1].Value))

	_, err = EncodeRecords("t", []Record{{Value: func() {}}})
	assert.Error(t, err)
}

func TestConfigMaps(t *testing.T) {
	cfg := config.KafkaConfig{Broker: "kafka:9092", GroupID: "g", TransactionalID: "tx-1"}

	consumer := *ConsumerConfigMap(cfg)
	assert.Equal(t, kafka.ConfigValue("kafka:9092"), consumer["bootstrap.servers"])
	assert.Equal(t, kafka.ConfigValue(false), consumer["enable.auto.commit"])
	assert.Equal(t, kafka.ConfigValue("read_committed"), consumer["isolation.level"])

	producer := *ProducerConfigMap(cfg)
	assert.Equal(t, kafka.ConfigValue("tx-1"), producer["transactional.id"])
	assert.Equal(t, kafka.ConfigValue(true), producer["enable.idempotence"])
}
