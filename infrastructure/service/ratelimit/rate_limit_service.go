package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fieldbook/fieldbook/infrastructure/service/logger"
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int
	RetryAfter time.Duration
}

// RateLimitService counts requests per key in fixed windows
type RateLimitService interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Close() error
}

// RateLimitConfig configures the limiter
type RateLimitConfig struct {
	Enabled  bool
	RedisURL string
	Requests int
	Window   time.Duration
}

// rateLimitService implements RateLimitService with Redis counters
type rateLimitService struct {
	redisClient *redis.Client
	logger      logger.Logger
	limit       int
	window      time.Duration
}

// NewRateLimitService connects to Redis, or returns a no-op limiter when disabled
func NewRateLimitService(config RateLimitConfig, log logger.Logger) (RateLimitService, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if !config.Enabled {
		log.Info(context.Background(), "Rate limiting disabled", nil)
		return NoopRateLimitService{}, nil
	}

	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisClient := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info(ctx, "Rate limiting service initialized", map[string]interface{}{
		"requests": config.Requests,
		"window":   config.Window.String(),
	})

	return NewRedisRateLimitService(redisClient, config.Requests, config.Window, log), nil
}

// NewRedisRateLimitService wraps an existing client
func NewRedisRateLimitService(client *redis.Client, limit int, window time.Duration, log logger.Logger) RateLimitService {
	if log == nil {
		log = logger.NewNop()
	}
	return &rateLimitService{redisClient: client, logger: log, limit: limit, window: window}
}

// Allow increments the key's counter and reports whether it is still within the limit
func (s *rateLimitService) Allow(ctx context.Context, key string) (Decision, error) {
	pipeline := s.redisClient.Pipeline()
	incrCmd := pipeline.Incr(ctx, key)
	ttlCmd := pipeline.PTTL(ctx, key)

	if _, err := pipeline.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	count := incrCmd.Val()
	ttl := ttlCmd.Val()

	// a key without expiry was just created by this INCR
	if ttl < 0 {
		if err := s.redisClient.PExpire(ctx, key, s.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		ttl = s.window
	}

	decision := Decision{
		Allowed: count <= int64(s.limit),
		Count:   count,
		Limit:   s.limit,
	}
	if !decision.Allowed {
		decision.RetryAfter = ttl
	}

	s.logger.Debug(ctx, "Rate limit check", map[string]interface{}{
		"key":     key,
		"current": count,
		"limit":   s.limit,
		"allowed": decision.Allowed,
	})

	return decision, nil
}

func (s *rateLimitService) Close() error {
	return s.redisClient.Close()
}

// NoopRateLimitService allows everything
type NoopRateLimitService struct{}

func (NoopRateLimitService) Allow(ctx context.Context, key string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

func (NoopRateLimitService) Close() error { return nil }
