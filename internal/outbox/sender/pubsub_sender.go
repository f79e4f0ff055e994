package sender

import (
	"context"

	"gocloud.dev/gcerrors"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub" // registers mem:// topics

	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

// PubSubSender publishes events to a Go CDK pub/sub topic. The driver is chosen by
// the topic URL scheme.
type PubSubSender struct {
	topic *pubsub.Topic
}

// OpenPubSubSender opens the topic at url.
func OpenPubSubSender(ctx context.Context, url string) (*PubSubSender, error) {
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, err
	}
	return NewPubSubSender(topic), nil
}

// NewPubSubSender creates a PubSubSender on an open topic.
func NewPubSubSender(topic *pubsub.Topic) *PubSubSender {
	return &PubSubSender{topic: topic}
}

// Send publishes the payload with the event metadata attached.
func (s *PubSubSender) Send(ctx context.Context, msg outboxDomain.Message) error {
	err := s.topic.Send(ctx, &pubsub.Message{
		Body:       msg.Payload,
		Metadata:   metadata(msg),
		LoggableID: msg.EventID.String(),
	})
	if err == nil {
		return nil
	}

	switch gcerrors.Code(err) {
	case gcerrors.InvalidArgument, gcerrors.PermissionDenied, gcerrors.FailedPrecondition:
		return outboxDomain.Permanent(err)
	default:
		return err
	}
}

// Close flushes and shuts down the topic.
func (s *PubSubSender) Close(ctx context.Context) error {
	return s.topic.Shutdown(ctx)
}
