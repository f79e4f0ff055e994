package sender

import (
	"context"

	"github.com/redis/go-redis/v9"

	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

// StreamAdder is the subset of the go-redis client used by RedisStreamSender.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSender appends events to a Redis stream.
type RedisStreamSender struct {
	client StreamAdder
	stream string
	maxLen int64
}

// NewRedisStreamSender creates a RedisStreamSender. A positive maxLen trims the
// stream approximately to that length.
func NewRedisStreamSender(client StreamAdder, stream string, maxLen int64) *RedisStreamSender {
	return &RedisStreamSender{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Send appends one stream entry holding the metadata fields and the payload.
func (s *RedisStreamSender) Send(ctx context.Context, msg outboxDomain.Message) error {
	values := make(map[string]any, 8)
	for key, value := range metadata(msg) {
		values[key] = value
	}
	values["payload"] = string(msg.Payload)

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	return s.client.XAdd(ctx, args).Err()
}
