package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/SocialSync/config"
	"github.com/Gopher0727/SocialSync/internal/pkg/events"
)

func testKafkaConfig() *config.KafkaConfig {
	return &config.KafkaConfig{
		Brokers:       []string{"127.0.0.1:9092"},
		ConsumerGroup: "test-socialsync",
		Topics: config.TopicsConfig{
			Notification: "test.notifications",
			DLQ:          "test.notifications.dlq",
		},
		Producer: config.ProducerConfig{MaxRetries: 2, RetryBackoffMs: 1},
		Consumer: config.ConsumerConfig{MaxRetries: 2, RetryBackoffMs: 0},
	}
}

func TestProducer_Produce(t *testing.T) {
	t.Run("sends to the topic", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			assert.Equal(t, "hello", string(val))
			return nil
		})
		p := NewProducerWith(sp, testKafkaConfig(), nil)
		defer p.Close()

		_, _, err := p.Produce(context.Background(), "t", []byte("k"), []byte("hello"))
		assert.NoError(t, err)
	})

	t.Run("broker failure is wrapped", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		p := NewProducerWith(sp, testKafkaConfig(), nil)
		defer p.Close()

		_, _, err := p.Produce(context.Background(), "t", nil, []byte("x"))
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	})

	t.Run("cancelled context sends nothing", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		p := NewProducerWith(sp, testKafkaConfig(), nil)
		defer p.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := p.Produce(ctx, "t", nil, []byte("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestProducer_ProduceWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
		sp.ExpectSendMessageAndSucceed()
		p := NewProducerWith(sp, testKafkaConfig(), nil)
		defer p.Close()

		_, _, err := p.ProduceWithRetry(context.Background(), "t", nil, []byte("x"), 2)
		assert.NoError(t, err)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		for i := 0; i < 3; i++ {
			sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		}
		p := NewProducerWith(sp, testKafkaConfig(), nil)
		defer p.Close()

		_, _, err := p.ProduceWithRetry(context.Background(), "t", nil, []byte("x"), 2)
		require.Error(t, err)
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		assert.Contains(t, err.Error(), "3 attempts")
	})

	t.Run("stops when the context ends during backoff", func(t *testing.T) {
		cfg := testKafkaConfig()
		cfg.Producer.RetryBackoffMs = 10_000
		sp := mocks.NewSyncProducer(t, nil)
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		p := NewProducerWith(sp, cfg, nil)
		defer p.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, _, err := p.ProduceWithRetry(ctx, "t", nil, []byte("x"), 5)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestProducer_PublishNotification(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		n, err := events.Unmarshal(val)
		require.NoError(t, err)
		assert.Equal(t, "n-1", n.ID)
		assert.Equal(t, "user-1", n.UserID)
		return nil
	})
	p := NewProducerWith(sp, testKafkaConfig(), nil)
	defer p.Close()

	err := p.PublishNotification(context.Background(), events.Notification{
		ID: "n-1", UserID: "user-1", Type: "badge", Title: "New Badge Unlocked!", CreatedAt: time.Now(),
	})
	assert.NoError(t, err)
}
