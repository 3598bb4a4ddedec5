package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/config"
	"github.com/Gopher0727/SocialSync/internal/pkg/events"
	redis "github.com/Gopher0727/SocialSync/internal/pkg/redis"
)

// ErrPermanent marks a failure that retrying cannot fix; the message goes
// straight to the DLQ.
var ErrPermanent = errors.New("permanent failure")

func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// MessageHandler processes one consumed message.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// Consumer joins a consumer group and feeds messages to a handler, retrying
// failures and dead-lettering what still fails.
type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *config.KafkaConfig
	handler       MessageHandler
	dlqProducer   *Producer
	logger        *zap.Logger
	topics        []string
	ready         chan struct{}
	readyOnce     sync.Once
	wg            sync.WaitGroup
	cancel        context.CancelFunc
}

type consumerGroupHandler struct {
	consumer *Consumer
}

func NewConsumer(config *config.KafkaConfig, topics []string, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	saramaConfig.Net.DialTimeout = 10 * time.Second
	saramaConfig.Net.ReadTimeout = 10 * time.Second
	saramaConfig.Net.WriteTimeout = 10 * time.Second
	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond
	saramaConfig.Metadata.Timeout = 10 * time.Second

	consumerGroup, err := sarama.NewConsumerGroup(config.Brokers, config.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	dlqProducer, err := NewProducer(config, logger)
	if err != nil {
		consumerGroup.Close()
		return nil, fmt.Errorf("failed to create DLQ producer: %w", err)
	}

	c := newConsumer(config, handler, dlqProducer, logger)
	c.consumerGroup = consumerGroup
	c.topics = topics
	return c, nil
}

func newConsumer(config *config.KafkaConfig, handler MessageHandler, dlq *Producer, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		config:      config,
		handler:     handler,
		dlqProducer: dlq,
		logger:      logger,
		ready:       make(chan struct{}),
	}
}

// Start runs the consume loop in the background and returns once the first
// session is set up or ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		handler := &consumerGroupHandler{consumer: c}
		for {
			if err := c.consumerGroup.Consume(ctx, c.topics, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("kafka consume failed", zap.Strings("topics", c.topics), zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Warn("kafka consumer error", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case <-c.ready:
	case <-ctx.Done():
	}
	return nil
}

func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	var errs []error
	if c.consumerGroup != nil {
		if err := c.consumerGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close kafka consumer group: %w", err))
		}
	}
	c.wg.Wait()
	if c.dlqProducer != nil {
		if err := c.dlqProducer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close DLQ producer: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Ready is closed once the first consumer group session is set up.
func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.consumer.readyOnce.Do(func() { close(h.consumer.ready) })
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.consumer.handleMessage(session.Context(), message)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessage 重试处理，仍失败则写入 DLQ。DLQ 也失败时只记日志，消息照常提交。
func (c *Consumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	err := c.processMessageWithRetry(ctx, message)
	if err == nil || ctx.Err() != nil {
		return
	}
	if dlqErr := c.sendToDLQ(ctx, message, err); dlqErr != nil {
		c.logger.Error("failed to send message to DLQ",
			zap.String("topic", message.Topic),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.NamedError("cause", err),
			zap.Error(dlqErr))
	}
}

func (c *Consumer) processMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	maxRetries := c.config.Consumer.MaxRetries
	backoff := time.Duration(c.config.Consumer.RetryBackoffMs) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.handler(ctx, message)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrPermanent) {
			return err
		}

		if attempt < maxRetries {
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (c *Consumer) sendToDLQ(ctx context.Context, message *sarama.ConsumerMessage, processingErr error) error {
	dlqTopic := c.config.Topics.DLQ
	if _, _, err := c.dlqProducer.Produce(ctx, dlqTopic, message.Key, message.Value); err != nil {
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}
	c.logger.Warn("message sent to DLQ",
		zap.String("topic", message.Topic),
		zap.String("dlq", dlqTopic),
		zap.Int32("partition", message.Partition),
		zap.Int64("offset", message.Offset),
		zap.NamedError("cause", processingErr))
	return nil
}

// RelayToRedis republishes notification events on the recipient's redis
// channel, where every gateway node picks them up.
func RelayToRedis(rc redis.RedisClient) MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		n, err := events.Unmarshal(message.Value)
		if err != nil {
			return Permanent(err)
		}
		frame, err := n.JSON()
		if err != nil {
			return Permanent(err)
		}
		return rc.PublishNotification(ctx, n.UserID, frame)
	}
}
