package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Gopher0727/SocialSync/config"
)

// NotificationPattern matches every per-user notification channel.
const NotificationPattern = "notifications:*"

type RedisClient interface {
	Close() error
	GetClient() *redis.Client
	Ping(ctx context.Context) error

	SetUserOnline(ctx context.Context, userID string, ttl time.Duration) error
	IsUserOnline(ctx context.Context, userID string) (bool, error)
	RemoveUserOnline(ctx context.Context, userID string) error

	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)

	SetActiveCircle(ctx context.Context, userID, circleID string) error
	GetActiveCircle(ctx context.Context, userID string) (string, error)

	PublishNotification(ctx context.Context, userID string, payload []byte) error
	Publish(ctx context.Context, channel string, message any) error
	PSubscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error)
}

type Client struct {
	client *redis.Client
}

func NewClient(cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Client{client: rdb}, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{client: rdb}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) GetClient() *redis.Client {
	return c.client
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

func (c *Client) SetUserOnline(ctx context.Context, userID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, presenceKey(userID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set user %s online: %w", userID, err)
	}
	return nil
}

func (c *Client) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	n, err := c.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if user %s is online: %w", userID, err)
	}
	return n > 0, nil
}

func (c *Client) RemoveUserOnline(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to remove user %s online status: %w", userID, err)
	}
	return nil
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("session:revoked:%s", tokenID)
}

// RevokeToken 记录已注销的 jti，保留到令牌自然过期
func (c *Client) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token %s: %w", tokenID, err)
	}
	return nil
}

func (c *Client) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token %s: %w", tokenID, err)
	}
	return n > 0, nil
}

func activeCircleKey(userID string) string {
	return fmt.Sprintf("pref:%s:active_circle", userID)
}

// SetActiveCircle 持久化"上次使用的圈子"，不设过期
func (c *Client) SetActiveCircle(ctx context.Context, userID, circleID string) error {
	if err := c.client.Set(ctx, activeCircleKey(userID), circleID, 0).Err(); err != nil {
		return fmt.Errorf("failed to save active circle for %s: %w", userID, err)
	}
	return nil
}

// GetActiveCircle returns "" when no preference is stored.
func (c *Client) GetActiveCircle(ctx context.Context, userID string) (string, error) {
	id, err := c.client.Get(ctx, activeCircleKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load active circle for %s: %w", userID, err)
	}
	return id, nil
}

func NotificationChannel(userID string) string {
	return "notifications:" + userID
}

// UserFromChannel extracts the user id from a notification channel name.
func UserFromChannel(channel string) (string, bool) {
	userID, ok := strings.CutPrefix(channel, "notifications:")
	return userID, ok && userID != ""
}

func (c *Client) PublishNotification(ctx context.Context, userID string, payload []byte) error {
	return c.Publish(ctx, NotificationChannel(userID), payload)
}

func (c *Client) Publish(ctx context.Context, channel string, message any) error {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

func (c *Client) PSubscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error) {
	pubsub := c.client.PSubscribe(ctx, patterns...)
	// 等待订阅确认
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to psubscribe to patterns: %w", err)
	}
	return pubsub, nil
}
