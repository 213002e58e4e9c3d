package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrThrottled indicates the caller exceeded the attempt budget.
	ErrThrottled = errors.New("too many attempts")
	// ErrUnavailable indicates the throttle backend is unreachable.
	ErrUnavailable = errors.New("throttle backend unavailable")
)

// Config holds the attempt budget for one throttle.
type Config struct {
	Enabled  bool
	Max      int
	Cooldown time.Duration
}

// AttemptThrottle counts attempts per key inside a rolling window. The
// counter gets a TTL on first increment, so the budget resets Cooldown
// after the first attempt in a burst.
type AttemptThrottle struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// NewAttemptThrottle creates a throttle with the given key prefix. Returns
// nil when disabled or no redis client is available; a nil throttle allows
// everything.
func NewAttemptThrottle(redisClient redis.UniversalClient, prefix string, cfg Config) *AttemptThrottle {
	if !cfg.Enabled || redisClient == nil {
		return nil
	}
	if cfg.Max <= 0 {
		cfg.Max = 10
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Minute
	}
	return &AttemptThrottle{redis: redisClient, prefix: prefix, config: cfg}
}

func (t *AttemptThrottle) key(id string) string {
	return t.prefix + id
}

// Hit records one attempt for the key and reports whether the budget is
// exceeded.
func (t *AttemptThrottle) Hit(ctx context.Context, id string) error {
	if t == nil || id == "" {
		return nil
	}

	count, err := t.redis.Incr(ctx, t.key(id)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := t.redis.Expire(ctx, t.key(id), t.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count > int64(t.config.Max) {
		return ErrThrottled
	}
	return nil
}

// Reset clears the counter for the key.
func (t *AttemptThrottle) Reset(ctx context.Context, id string) error {
	if t == nil || id == "" {
		return nil
	}
	if err := t.redis.Del(ctx, t.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Count returns the current attempt count for the key.
func (t *AttemptThrottle) Count(ctx context.Context, id string) (int, error) {
	if t == nil || id == "" {
		return 0, nil
	}
	count, err := t.redis.Get(ctx, t.key(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(count), nil
}
