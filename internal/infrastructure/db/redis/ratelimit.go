package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const window = time.Minute

// RateLimitStore is a fixed-window counter shared by every API replica.
// It satisfies echo's middleware.RateLimiterStore.
// Key format: ratelimit:<scope>:<identifier>:<window_start_unix>
type RateLimitStore struct {
	client    redis.Cmdable
	scope     string
	perWindow int64
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRateLimitStore allows perMinute operations per identifier in each minute window.
func NewRateLimitStore(client redis.Cmdable, scope string, perMinute int, logger zerolog.Logger) *RateLimitStore {
	return &RateLimitStore{
		client:    client,
		scope:     scope,
		perWindow: int64(perMinute),
		timeout:   defaultTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Allow counts one operation for identifier. Redis failures let the request through.
func (s *RateLimitStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key := s.key(identifier)
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("scope", s.scope).Msg("rate limiter unavailable, allowing request")
		return true, nil
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("rate limiter expire failed")
		}
	}
	return n <= s.perWindow, nil
}

func (s *RateLimitStore) key(identifier string) string {
	start := s.now().UTC().Truncate(window).Unix()
	return fmt.Sprintf("ratelimit:%s:%s:%d", s.scope, identifier, start)
}
