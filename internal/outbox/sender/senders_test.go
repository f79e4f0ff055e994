package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/pubsub/mempubsub"

	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

func TestLogSender_Send(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	msg := newTestMessage()

	require.NoError(t, NewLogSender(logger).Send(context.Background(), msg))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "outbox event", entry["msg"])
	assert.Equal(t, msg.EventID.String(), entry["event_id"])
	assert.Equal(t, "pipeline.status_changed:0192", entry["idempotency_key"])
}

func TestPubSubSender_Send(t *testing.T) {
	ctx := context.Background()
	topic := mempubsub.NewTopic()
	sub := mempubsub.NewSubscription(topic, time.Minute)
	defer sub.Shutdown(ctx) //nolint:errcheck

	sender := NewPubSubSender(topic)
	defer sender.Close(ctx) //nolint:errcheck

	msg := newTestMessage()
	require.NoError(t, sender.Send(ctx, msg))

	receiveCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	received, err := sub.Receive(receiveCtx)
	require.NoError(t, err)
	received.Ack()

	assert.JSONEq(t, string(msg.Payload), string(received.Body))
	assert.Equal(t, msg.EventID.String(), received.Metadata["event-id"])
	assert.Equal(t, "pipeline.status_changed:0192", received.Metadata["idempotency-key"])
	assert.Equal(t, msg.TenantID.String(), received.Metadata["tenant-id"])
}

func TestOpenPubSubSender(t *testing.T) {
	ctx := context.Background()

	sender, err := OpenPubSubSender(ctx, "mem://crm-events-test")
	require.NoError(t, err)
	require.NoError(t, sender.Send(ctx, newTestMessage()))
	assert.NoError(t, sender.Close(ctx))

	_, err = OpenPubSubSender(ctx, "unknown://topic")
	assert.Error(t, err)
}

func headerValue(headers []sarama.RecordHeader, key string) string {
	for _, h := range headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaSender_Send(t *testing.T) {
	msg := newTestMessage()

	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		if pm.Topic != "crm.pipeline.status_changed" {
			return errors.New("unexpected topic " + pm.Topic)
		}
		key, err := pm.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != msg.TenantID.String()+":entry-1" {
			return errors.New("unexpected key " + string(key))
		}
		if headerValue(pm.Headers, "idempotency-key") != "pipeline.status_changed:0192" {
			return errors.New("missing idempotency key header")
		}
		return nil
	})

	sender := NewKafkaSender(producer, "crm.")
	require.NoError(t, sender.Send(context.Background(), msg))
	require.NoError(t, sender.Close())
}

func TestKafkaSender_SendErrors(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrMessageSizeTooLarge)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	sender := NewKafkaSender(producer, "crm.")

	err := sender.Send(context.Background(), newTestMessage())
	assert.True(t, outboxDomain.IsPermanent(err))
	assert.ErrorIs(t, err, sarama.ErrMessageSizeTooLarge)

	err = sender.Send(context.Background(), newTestMessage())
	assert.False(t, outboxDomain.IsPermanent(err))
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)

	require.NoError(t, sender.Close())
}

func TestKafkaSender_CanceledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	sender := NewKafkaSender(producer, "crm.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sender.Send(ctx, newTestMessage()), context.Canceled)
	require.NoError(t, sender.Close())
}

func TestKafkaSender_SendTimeout(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(*sarama.ProducerMessage) error {
		close(entered)
		<-release
		return nil
	})
	sender := NewKafkaSender(producer, "crm.")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sender.Send(ctx, newTestMessage())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	<-entered
	close(release)
	require.NoError(t, sender.Close())
}

type fakeStreamAdder struct {
	args *redis.XAddArgs
	err  error
}

func (f *fakeStreamAdder) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = a
	return redis.NewStringResult("1700000000000-0", f.err)
}

func TestRedisStreamSender_Send(t *testing.T) {
	client := &fakeStreamAdder{}
	msg := newTestMessage()

	require.NoError(t, NewRedisStreamSender(client, "crm-events", 10000).Send(context.Background(), msg))

	require.NotNil(t, client.args)
	assert.Equal(t, "crm-events", client.args.Stream)
	assert.Equal(t, int64(10000), client.args.MaxLen)
	assert.True(t, client.args.Approx)

	values := client.args.Values.(map[string]any)
	assert.Equal(t, string(msg.Payload), values["payload"])
	assert.Equal(t, "pipeline.status_changed:0192", values["idempotency-key"])
}

func TestRedisStreamSender_SendError(t *testing.T) {
	client := &fakeStreamAdder{err: errors.New("LOADING Redis is loading the dataset in memory")}

	err := NewRedisStreamSender(client, "crm-events", 0).Send(context.Background(), newTestMessage())

	assert.ErrorContains(t, err, "LOADING")
	assert.Zero(t, client.args.MaxLen)
}
