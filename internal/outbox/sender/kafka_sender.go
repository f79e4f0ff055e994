package sender

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"

	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

// NewKafkaProducer creates a synchronous producer that waits for all in-sync replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 10 * time.Second

	return sarama.NewSyncProducer(brokers, config)
}

// KafkaSender publishes events to one topic per event type. The message key is the
// aggregate, so a partition sees an aggregate's events in ledger order.
type KafkaSender struct {
	producer    sarama.SyncProducer
	topicPrefix string
}

// NewKafkaSender creates a new KafkaSender.
func NewKafkaSender(producer sarama.SyncProducer, topicPrefix string) *KafkaSender {
	return &KafkaSender{
		producer:    producer,
		topicPrefix: topicPrefix,
	}
}

// Send produces the message and waits for the broker acknowledgement or ctx,
// whichever comes first. An abandoned produce may still land; consumers dedupe on
// the event ID header.
func (s *KafkaSender) Send(ctx context.Context, msg outboxDomain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	headers := make([]sarama.RecordHeader, 0, 7)
	for key, value := range metadata(msg) {
		headers = append(headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
	}

	pm := &sarama.ProducerMessage{
		Topic:   s.topicPrefix + msg.EventType,
		Key:     sarama.StringEncoder(msg.TenantID.String() + ":" + msg.AggregateID),
		Value:   sarama.ByteEncoder(msg.Payload),
		Headers: headers,
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := s.producer.SendMessage(pm)
		done <- err
	}()

	var err error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err = <-done:
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, sarama.ErrMessageSizeTooLarge) || errors.Is(err, sarama.ErrInvalidTopic) {
		return outboxDomain.Permanent(err)
	}
	return err
}

// Close closes the producer.
func (s *KafkaSender) Close() error {
	return s.producer.Close()
}
