package commands

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type blockingRunner struct {
	started atomic.Bool
}

func (r *blockingRunner) Start(ctx context.Context) error {
	r.started.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

type failingRunner struct {
	err error
}

func (r failingRunner) Start(context.Context) error {
	return r.err
}

type fakeServer struct {
	startErr  error
	stopped   chan struct{}
	shutdowns atomic.Int32
}

func newFakeServer(startErr error) *fakeServer {
	return &fakeServer{startErr: startErr, stopped: make(chan struct{})}
}

func (s *fakeServer) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-s.stopped
	return nil
}

func (s *fakeServer) Shutdown(context.Context) error {
	if s.shutdowns.Add(1) == 1 {
		close(s.stopped)
	}
	return nil
}

func TestRunAll(t *testing.T) {
	defer goleak.VerifyNone(t)
	logger := slog.Default()

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		a, b := &blockingRunner{}, &blockingRunner{}

		done := make(chan error, 1)
		go func() { done <- runAll(ctx, logger, map[string]Runner{"a": a, "b": b}) }()

		require.Eventually(t, func() bool { return a.started.Load() && b.started.Load() }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("runAll did not return after cancel")
		}
	})

	t.Run("failure stops the others", func(t *testing.T) {
		blocking := &blockingRunner{}
		err := runAll(context.Background(), logger, map[string]Runner{
			"blocking": blocking,
			"broken":   failingRunner{err: errors.New("boom")},
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken: boom")
	})
}

func TestServe(t *testing.T) {
	defer goleak.VerifyNone(t)
	logger := slog.Default()

	t.Run("shuts down on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		api, metrics := newFakeServer(nil), newFakeServer(nil)

		done := make(chan error, 1)
		go func() { done <- serve(ctx, logger, map[string]lifecycle{"api": api, "metrics": metrics}) }()
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("serve did not return after cancel")
		}
		assert.Equal(t, int32(1), api.shutdowns.Load())
		assert.Equal(t, int32(1), metrics.shutdowns.Load())
	})

	t.Run("server failure shuts down the rest", func(t *testing.T) {
		api, metrics := newFakeServer(errors.New("address in use")), newFakeServer(nil)

		err := serve(context.Background(), logger, map[string]lifecycle{"api": api, "metrics": metrics})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "api server error: address in use")
		assert.Equal(t, int32(1), metrics.shutdowns.Load())
	})
}
