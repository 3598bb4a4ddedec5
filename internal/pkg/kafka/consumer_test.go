package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Gopher0727/SocialSync/internal/pkg/events"
	redis "github.com/Gopher0727/SocialSync/internal/pkg/redis"
)

func message(value string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "test.notifications", Key: []byte("user-1"), Value: []byte(value)}
}

func TestConsumer_HandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("success needs no DLQ", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		calls := 0
		c := newConsumer(testKafkaConfig(), func(context.Context, *sarama.ConsumerMessage) error {
			calls++
			return nil
		}, NewProducerWith(sp, testKafkaConfig(), nil), nil)

		c.handleMessage(ctx, message("ok"))
		assert.Equal(t, 1, calls)
		require.NoError(t, c.dlqProducer.Close())
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		calls := 0
		c := newConsumer(testKafkaConfig(), func(context.Context, *sarama.ConsumerMessage) error {
			calls++
			if calls < 3 {
				return errors.New("redis unavailable")
			}
			return nil
		}, NewProducerWith(sp, testKafkaConfig(), nil), nil)

		c.handleMessage(ctx, message("retry"))
		assert.Equal(t, 3, calls)
		require.NoError(t, c.dlqProducer.Close())
	})

	t.Run("exhausted retries go to the DLQ", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			assert.Equal(t, "poison", string(val))
			return nil
		})
		calls := 0
		c := newConsumer(testKafkaConfig(), func(context.Context, *sarama.ConsumerMessage) error {
			calls++
			return errors.New("always fails")
		}, NewProducerWith(sp, testKafkaConfig(), nil), nil)

		c.handleMessage(ctx, message("poison"))
		assert.Equal(t, 3, calls)
		require.NoError(t, c.dlqProducer.Close())
	})

	t.Run("permanent failure skips retries", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		sp.ExpectSendMessageAndSucceed()
		calls := 0
		c := newConsumer(testKafkaConfig(), func(context.Context, *sarama.ConsumerMessage) error {
			calls++
			return Permanent(errors.New("bad payload"))
		}, NewProducerWith(sp, testKafkaConfig(), nil), nil)

		c.handleMessage(ctx, message("garbage"))
		assert.Equal(t, 1, calls)
		require.NoError(t, c.dlqProducer.Close())
	})
}

// 任意失败次数 f：处理函数最多被调用 MaxRetries+1 次，且仅当 f > MaxRetries 时进入 DLQ
func TestProperty_RetryThenDeadLetter(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := testKafkaConfig()
		cfg.Consumer.MaxRetries = rapid.IntRange(0, 4).Draw(rt, "maxRetries")
		failures := rapid.IntRange(0, 8).Draw(rt, "failures")

		sp := mocks.NewSyncProducer(rt, nil)
		deadLettered := failures > cfg.Consumer.MaxRetries
		if deadLettered {
			sp.ExpectSendMessageAndSucceed()
		}

		calls := 0
		c := newConsumer(cfg, func(context.Context, *sarama.ConsumerMessage) error {
			calls++
			if calls <= failures {
				return errors.New("fail")
			}
			return nil
		}, NewProducerWith(sp, cfg, nil), nil)

		c.handleMessage(context.Background(), message("m"))

		want := min(failures+1, cfg.Consumer.MaxRetries+1)
		if calls != want {
			rt.Fatalf("handler called %d times, want %d", calls, want)
		}
		if err := c.dlqProducer.Close(); err != nil {
			rt.Fatalf("close: %v", err)
		}
	})
}

func TestRelayToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	rc := redis.NewFromClient(rdb)
	defer rc.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, redis.NotificationChannel("user-1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	relay := RelayToRedis(rc)

	t.Run("valid event is republished as a frame", func(t *testing.T) {
		value, err := events.Notification{ID: "n-1", UserID: "user-1", Type: "comment", Title: "New Comment"}.Marshal()
		require.NoError(t, err)
		require.NoError(t, relay(ctx, &sarama.ConsumerMessage{Value: value}))

		select {
		case msg := <-sub.Channel():
			assert.Contains(t, msg.Payload, `"type":"notification"`)
			assert.Contains(t, msg.Payload, `"id":"n-1"`)
		case <-time.After(2 * time.Second):
			t.Fatal("no frame published")
		}
	})

	t.Run("malformed event is permanent", func(t *testing.T) {
		err := relay(ctx, &sarama.ConsumerMessage{Value: []byte("not protobuf \xff")})
		assert.ErrorIs(t, err, ErrPermanent)
	})
}

// ! 需要本地 Kafka，连接失败时跳过
func TestConsumer_StartStop(t *testing.T) {
	cfg := testKafkaConfig()
	consumer, err := NewConsumer(cfg, []string{cfg.Topics.Notification}, func(context.Context, *sarama.ConsumerMessage) error {
		return nil
	}, nil)
	if err != nil {
		t.Skipf("Skipping test: Kafka not available: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, consumer.Start(ctx))
	assert.NoError(t, consumer.Stop())
}
