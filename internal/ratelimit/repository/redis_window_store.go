package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/ratelimit/domain"
)

// incrementScript bumps the counter and arms its expiry on the first hit of a
// window. A key left without a TTL is re-armed.
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisWindowStore keeps one expiring counter per window in Redis.
type RedisWindowStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisWindowStore creates a RedisWindowStore whose keys start with prefix.
func NewRedisWindowStore(client redis.Scripter, prefix string) *RedisWindowStore {
	return &RedisWindowStore{
		client: client,
		prefix: prefix,
	}
}

// Increment runs the increment script. The window start is derived from the
// remaining TTL.
func (s *RedisWindowStore) Increment(
	ctx context.Context,
	key domain.Key,
	size time.Duration,
	now time.Time,
) (*domain.Window, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{s.prefix + key.String()}, size.Milliseconds()).Slice()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to increment rate limit window")
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}

	count, ok := res[0].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected rate limit count: %v", res[0])
	}
	ttl, ok := res[1].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected rate limit ttl: %v", res[1])
	}

	elapsed := size - time.Duration(ttl)*time.Millisecond
	return &domain.Window{
		Key:          key,
		RequestCount: int(count),
		WindowStart:  now.Add(-elapsed),
		UpdatedAt:    now,
	}, nil
}

// DeleteStale is a no-op: Redis expires windows on its own.
func (s *RedisWindowStore) DeleteStale(context.Context, time.Time) (int64, error) {
	return 0, nil
}
