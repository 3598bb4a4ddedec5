package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/config"
)

// Limiter defines the interface for rate limiting operations
type Limiter interface {
	// Allow consumes one token from the bucket identified by rule and key.
	Allow(ctx context.Context, rule Rule, key string) (Decision, error)
	// AllowN consumes n tokens at once, e.g. one per uploaded file.
	AllowN(ctx context.Context, rule Rule, key string, n int) (Decision, error)
	Reset(ctx context.Context, rule Rule, key string) error
	Remaining(ctx context.Context, rule Rule, key string) (int, error)
}

// Rule is a named limit per window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// 固定窗口计数：首次写入时设置过期，返回当前计数和剩余 TTL
var incrScript = redis.NewScript(`
local current = redis.call('INCRBY', KEYS[1], ARGV[1])
if tonumber(current) == tonumber(ARGV[1]) then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {current, redis.call('PTTL', KEYS[1])}
`)

// WindowLimiter counts requests per fixed window in Redis. The script keeps
// INCRBY and PEXPIRE atomic across gateway nodes.
type WindowLimiter struct {
	redisClient *redis.Client
	logger      *zap.Logger
	fallback    bool // Redis 不可用时放行 (fail-open)
	now         func() time.Time
}

func NewWindowLimiter(redisClient *redis.Client, logger *zap.Logger, fallback bool) *WindowLimiter {
	return &WindowLimiter{
		redisClient: redisClient,
		logger:      logger,
		fallback:    fallback,
		now:         time.Now,
	}
}

func (l *WindowLimiter) Allow(ctx context.Context, rule Rule, key string) (Decision, error) {
	return l.AllowN(ctx, rule, key, 1)
}

func (l *WindowLimiter) AllowN(ctx context.Context, rule Rule, key string, n int) (Decision, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true, Remaining: -1}, nil
	}
	bucketKey := l.bucketKey(rule, key, l.now())

	res, err := incrScript.Run(ctx, l.redisClient, []string{bucketKey}, n, rule.Window.Milliseconds()).Int64Slice()
	if err != nil {
		l.logger.Error("rate limit check failed", zap.String("key", bucketKey), zap.Error(err))
		if l.fallback {
			l.logger.Warn("rate limit check failed, allowing request (fail-open)", zap.String("key", key))
			return Decision{Allowed: true, Remaining: -1}, nil
		}
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	d := Decision{Allowed: count <= int64(rule.Limit), Remaining: max(rule.Limit-int(count), 0)}
	if !d.Allowed {
		d.RetryAfter = ttl
		l.logger.Warn("rate limit exceeded",
			zap.String("rule", rule.Name),
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", rule.Limit),
		)
	}
	return d, nil
}

func (l *WindowLimiter) Reset(ctx context.Context, rule Rule, key string) error {
	if err := l.redisClient.Del(ctx, l.bucketKey(rule, key, l.now())).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit for key %s: %w", key, err)
	}
	return nil
}

func (l *WindowLimiter) Remaining(ctx context.Context, rule Rule, key string) (int, error) {
	count, err := l.redisClient.Get(ctx, l.bucketKey(rule, key, l.now())).Int()
	if errors.Is(err, redis.Nil) {
		return rule.Limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get remaining tokens: %w", err)
	}
	return max(rule.Limit-count, 0), nil
}

func (l *WindowLimiter) bucketKey(rule Rule, key string, now time.Time) string {
	bucket := now.UnixMilli() / rule.Window.Milliseconds()
	return fmt.Sprintf("ratelimit:%s:%s:%d", rule.Name, key, bucket)
}

const (
	RuleAuth   = "auth"
	RuleJoin   = "join"
	RuleInvite = "invite"
	RuleUpload = "upload"
	RuleAPI    = "api"
)

// RuleFor 根据配置返回对应端点的限流规则，未知名称使用 api 规则
func RuleFor(name string, cfg *config.RateLimitConfig) Rule {
	limit := cfg.APIPerMinute
	switch name {
	case RuleAuth:
		limit = cfg.AuthPerMinute
	case RuleJoin:
		limit = cfg.JoinPerMinute
	case RuleInvite:
		limit = cfg.InvitePerMinute
	case RuleUpload:
		limit = cfg.UploadPerMinute
	default:
		name = RuleAPI
	}
	return Rule{Name: name, Limit: limit, Window: time.Minute}
}
