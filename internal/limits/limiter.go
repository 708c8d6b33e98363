package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

// RateLimiter enforces an optional per-client requests-per-minute bound in
// front of the inference pipeline. It is nil-safe: without a redis client
// every request is allowed, so single-node deployments need no redis at all.
type RateLimiter struct {
	client *redis.Client
	rpm    int
}

// NewRateLimiter builds a limiter allowing rpm requests per client per
// minute. A non-positive rpm disables the limiter.
func NewRateLimiter(client *redis.Client, rpm int) *RateLimiter {
	return &RateLimiter{client: client, rpm: rpm}
}

// Allow counts one request for clientID and returns ErrLimitExceeded once
// the per-minute bound is passed.
func (l *RateLimiter) Allow(ctx context.Context, clientID string) error {
	if l == nil || l.client == nil || l.rpm <= 0 {
		return nil
	}

	bucket := time.Now().UTC().Unix() / 60
	key := fmt.Sprintf("rpm:%s:%d", clientID, bucket)

	cnt, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		l.client.Expire(ctx, key, time.Minute)
	}
	if int(cnt) > l.rpm {
		return ErrLimitExceeded
	}
	return nil
}
