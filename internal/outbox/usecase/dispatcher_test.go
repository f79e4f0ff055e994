package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	databaseMocks "github.com/roofline/crmcore/internal/database/mocks"
	"github.com/roofline/crmcore/internal/metrics"
	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
	outboxMocks "github.com/roofline/crmcore/internal/outbox/usecase/mocks"
)

type recordingDispatchMetrics struct {
	mu       sync.Mutex
	claimed  int
	outcomes []string
}

func (r *recordingDispatchMetrics) RecordClaimed(_ context.Context, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimed += count
}

func (r *recordingDispatchMetrics) RecordDelivery(_ context.Context, _ string, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	txManager  *databaseMocks.MockTxManager
	repo       *outboxMocks.MockOutboxEventRepository
	senders    *outboxMocks.MockSenderResolver
	sender     *outboxMocks.MockSender
	metrics    *recordingDispatchMetrics
	now        time.Time
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	f := &dispatcherFixture{
		txManager: databaseMocks.NewMockTxManager(t),
		repo:      outboxMocks.NewMockOutboxEventRepository(t),
		senders:   outboxMocks.NewMockSenderResolver(t),
		sender:    outboxMocks.NewMockSender(t),
		metrics:   &recordingDispatchMetrics{},
		now:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	dispatcher, err := NewDispatcher(DispatcherConfig{
		Interval:      10 * time.Millisecond,
		BatchSize:     10,
		Workers:       4,
		LeaseDuration: time.Minute,
		SendTimeout:   time.Second,
		Backoff: outboxDomain.Backoff{
			Base: 2 * time.Second,
			Max:  time.Minute,
			Rand: func(int64) int64 { return 0 },
		},
		WorkerID: "test-worker",
	}, f.txManager, f.repo, f.senders, f.metrics, discardLogger())
	require.NoError(t, err)
	f.dispatcher = dispatcher
	f.dispatcher.now = func() time.Time { return f.now }

	return f
}

func (f *dispatcherFixture) expectClaim(events ...*outboxDomain.Event) {
	f.txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
	f.repo.On("Claim", mock.Anything, mock.MatchedBy(func(p outboxDomain.ClaimParams) bool {
		return p.Limit == 10 &&
			p.Now.Equal(f.now) &&
			p.LeaseUntil.Equal(f.now.Add(time.Minute)) &&
			len(p.Token) > len("test-worker:")
	})).Return(events, nil).Once()
}

func newDueEvent(aggregateID string, retryCount int) *outboxDomain.Event {
	key := "key-" + uuid.NewString()
	return &outboxDomain.Event{
		ID:             uuid.Must(uuid.NewV7()),
		TenantID:       uuid.Must(uuid.NewV7()),
		AggregateType:  "pipeline_entry",
		AggregateID:    aggregateID,
		EventType:      "pipeline.status_changed",
		Payload:        []byte(`{}`),
		IdempotencyKey: &key,
		Status:         outboxDomain.StatusProcessing,
		RetryCount:     retryCount,
		MaxRetries:     8,
		NextRetryAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_ProcessBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newDispatcherFixture(t)
		event := newDueEvent("entry-1", 0)
		f.expectClaim(event)

		f.senders.On("Resolve", "pipeline.status_changed").Return(f.sender, nil).Once()
		f.sender.On("Send", mock.Anything, mock.MatchedBy(func(msg outboxDomain.Message) bool {
			return msg.EventID == event.ID &&
				msg.IdempotencyKey == event.IdempotencyKey &&
				msg.Attempt == 1
		})).Return(nil).Once()
		f.repo.On("MarkCompleted", mock.Anything, event.ID, mock.AnythingOfType("string"), f.now).Return(nil).Once()

		count, err := f.dispatcher.ProcessBatch(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, 1, f.metrics.claimed)
		assert.Equal(t, []string{metrics.DeliveryCompleted}, f.metrics.outcomes)
	})

	t.Run("NothingDue", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.expectClaim()

		count, err := f.dispatcher.ProcessBatch(ctx)

		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Zero(t, f.metrics.claimed)
	})

	t.Run("ClaimError", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		f.repo.On("Claim", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

		_, err := f.dispatcher.ProcessBatch(ctx)

		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("TransientFailureSchedulesRetry", func(t *testing.T) {
		f := newDispatcherFixture(t)
		event := newDueEvent("entry-1", 0)
		f.expectClaim(event)

		f.senders.On("Resolve", "pipeline.status_changed").Return(f.sender, nil).Once()
		f.sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("503 from notification service")).Once()
		f.repo.On("MarkRetry", mock.Anything, event.ID, mock.AnythingOfType("string"),
			1, f.now.Add(time.Second), "503 from notification service", f.now).Return(nil).Once()

		_, err := f.dispatcher.ProcessBatch(ctx)

		require.NoError(t, err)
		assert.Equal(t, []string{metrics.DeliveryRetried}, f.metrics.outcomes)
	})

	t.Run("RetriesExhaustedFails", func(t *testing.T) {
		f := newDispatcherFixture(t)
		event := newDueEvent("entry-1", 8)
		f.expectClaim(event)

		f.senders.On("Resolve", "pipeline.status_changed").Return(f.sender, nil).Once()
		f.sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()
		f.repo.On("MarkFailed", mock.Anything, event.ID, mock.AnythingOfType("string"),
			9, "timeout", f.now).Return(nil).Once()

		_, err := f.dispatcher.ProcessBatch(ctx)

		require.NoError(t, err)
		assert.Equal(t, []string{metrics.DeliveryFailed}, f.metrics.outcomes)
	})

	t.Run("PermanentFailureFailsImmediately", func(t *testing.T) {
		f := newDispatcherFixture(t)
		event := newDueEvent("entry-1", 0)
		f.expectClaim(event)

		sendErr := outboxDomain.Permanent(errors.New("invalid phone number"))
		f.senders.On("Resolve", "pipeline.status_changed").Return(f.sender, nil).Once()
		f.sender.On("Send", mock.Anything, mock.Anything).Return(sendErr).Once()
		f.repo.On("MarkFailed", mock.Anything, event.ID, mock.AnythingOfType("string"),
			1, "invalid phone number", f.now).Return(nil).Once()

		_, err := f.dispatcher.ProcessBatch(ctx)

		require.NoError(t, err)
	})

	t.Run("UnroutedEventFails", func(t *testing.T) {
		f := newDispatcherFixture(t)
		event := newDueEvent("entry-1", 0)
		f.expectClaim(event)

		resolveErr := outboxDomain.Permanent(outboxDomain.ErrNoSender)
		f.senders.On("Resolve", "pipeline.status_changed").Return(nil, resolveErr).Once()
		f.repo.On("MarkFailed", mock.Anything, event.ID, mock.AnythingOfType("string"),
			1, outboxDomain.ErrNoSender.Error(), f.now).Return(nil).Once()

		_, err := f.dispatcher.ProcessBatch(ctx)

		require.NoError(t, err)
	})

	t.Run("LeaseLostIsNotOverwritten", func(t *testing.T) {
		f := newDispatcherFixture(t)
		event := newDueEvent("entry-1", 0)
		f.expectClaim(event)

		f.senders.On("Resolve", "pipeline.status_changed").Return(f.sender, nil).Once()
		f.sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
		f.repo.On("MarkCompleted", mock.Anything, event.ID, mock.Anything, f.now).
			Return(outboxDomain.ErrLeaseLost).Once()

		_, err := f.dispatcher.ProcessBatch(ctx)

		require.NoError(t, err)
		assert.Equal(t, []string{metrics.DeliveryLeaseLost}, f.metrics.outcomes)
	})

	t.Run("SameAggregateDeliveredInOrder", func(t *testing.T) {
		f := newDispatcherFixture(t)
		first := newDueEvent("entry-1", 0)
		second := newDueEvent("entry-1", 0)
		second.TenantID = first.TenantID
		other := newDueEvent("entry-2", 0)
		f.expectClaim(first, other, second)

		var mu sync.Mutex
		var delivered []uuid.UUID
		f.senders.On("Resolve", "pipeline.status_changed").Return(f.sender, nil).Times(3)
		f.sender.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			delivered = append(delivered, args.Get(1).(outboxDomain.Message).EventID)
		}).Return(nil).Times(3)
		f.repo.On("MarkCompleted", mock.Anything, mock.Anything, mock.Anything, f.now).Return(nil).Times(3)

		count, err := f.dispatcher.ProcessBatch(ctx)

		require.NoError(t, err)
		assert.Equal(t, 3, count)
		require.Len(t, delivered, 3)

		firstIdx, secondIdx := -1, -1
		for i, id := range delivered {
			switch id {
			case first.ID:
				firstIdx = i
			case second.ID:
				secondIdx = i
			}
		}
		assert.Less(t, firstIdx, secondIdx)
	})

	t.Run("StopsSendingWhenLeaseRunsShort", func(t *testing.T) {
		f := newDispatcherFixture(t)
		first := newDueEvent("entry-1", 0)
		second := newDueEvent("entry-1", 0)
		third := newDueEvent("entry-1", 0)
		second.TenantID = first.TenantID
		third.TenantID = first.TenantID
		f.expectClaim(first, second, third)

		var mu sync.Mutex
		clock := f.now
		f.dispatcher.now = func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return clock
		}

		// Each send eats 40s of the one minute lease.
		var sent []uuid.UUID
		f.senders.On("Resolve", "pipeline.status_changed").Return(f.sender, nil).Twice()
		f.sender.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(40 * time.Second)
			sent = append(sent, args.Get(1).(outboxDomain.Message).EventID)
		}).Return(nil).Twice()
		f.repo.On("MarkCompleted", mock.Anything, first.ID, mock.Anything, mock.Anything).Return(nil).Once()
		f.repo.On("MarkCompleted", mock.Anything, second.ID, mock.Anything, mock.Anything).Return(nil).Once()

		count, err := f.dispatcher.ProcessBatch(ctx)

		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Equal(t, []uuid.UUID{first.ID, second.ID}, sent)
		assert.Equal(t, []string{
			metrics.DeliveryCompleted,
			metrics.DeliveryCompleted,
			metrics.DeliveryDeferred,
		}, f.metrics.outcomes)
		f.repo.AssertNotCalled(t, "MarkCompleted", mock.Anything, third.ID, mock.Anything, mock.Anything)
		f.repo.AssertNotCalled(t, "MarkRetry", mock.Anything, third.ID,
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.repo.AssertNotCalled(t, "MarkFailed", mock.Anything, third.ID,
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("SendIgnoresCallerCancellation", func(t *testing.T) {
		f := newDispatcherFixture(t)
		event := newDueEvent("entry-1", 0)
		f.expectClaim(event)

		cancelCtx, cancel := context.WithCancel(ctx)
		f.senders.On("Resolve", "pipeline.status_changed").Return(f.sender, nil).Once()
		f.sender.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			cancel()
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).Return(nil).Once()
		f.repo.On("MarkCompleted", mock.Anything, event.ID, mock.Anything, f.now).Return(nil).Once()

		_, err := f.dispatcher.ProcessBatch(cancelCtx)

		require.NoError(t, err)
	})
}

func TestDispatcher_StartStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newDispatcherFixture(t)
	f.txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("Claim", mock.Anything, mock.Anything).Return([]*outboxDomain.Event{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.dispatcher.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestNewDispatcher_LeaseValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  DispatcherConfig
		wantErr bool
	}{
		{
			name:   "LeaseCoversEveryRound",
			config: DispatcherConfig{BatchSize: 50, Workers: 8, SendTimeout: 15 * time.Second, LeaseDuration: 105 * time.Second},
		},
		{
			name:    "LeaseShorterThanRounds",
			config:  DispatcherConfig{BatchSize: 50, Workers: 8, SendTimeout: 15 * time.Second, LeaseDuration: time.Minute},
			wantErr: true,
		},
		{
			name:    "SingleWorkerDefault",
			config:  DispatcherConfig{BatchSize: 4, SendTimeout: time.Second, LeaseDuration: 3 * time.Second},
			wantErr: true,
		},
		{
			name:   "NoSendTimeout",
			config: DispatcherConfig{BatchSize: 50, Workers: 1, LeaseDuration: time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher, err := NewDispatcher(tt.config, nil, nil, nil, nil, discardLogger())

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, dispatcher)
				assert.Contains(t, err.Error(), "outbox lease")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, dispatcher)
		})
	}
}

func TestGroupByAggregate(t *testing.T) {
	tenantID := uuid.Must(uuid.NewV7())
	a1 := &outboxDomain.Event{TenantID: tenantID, AggregateType: "pipeline_entry", AggregateID: "a"}
	b1 := &outboxDomain.Event{TenantID: tenantID, AggregateType: "pipeline_entry", AggregateID: "b"}
	a2 := &outboxDomain.Event{TenantID: tenantID, AggregateType: "pipeline_entry", AggregateID: "a"}
	otherTenant := &outboxDomain.Event{TenantID: uuid.Must(uuid.NewV7()), AggregateType: "pipeline_entry", AggregateID: "a"}

	groups := groupByAggregate([]*outboxDomain.Event{a1, b1, a2, otherTenant})

	require.Len(t, groups, 3)
	assert.Equal(t, []*outboxDomain.Event{a1, a2}, groups[0])
	assert.Equal(t, []*outboxDomain.Event{b1}, groups[1])
	assert.Equal(t, []*outboxDomain.Event{otherTenant}, groups[2])
}
