package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalinin/classhub/internal/logger"
	"github.com/mkalinin/classhub/internal/models"
)

type sinkFunc func(ctx context.Context, msg Message) error

func (f sinkFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

type memOutbox struct {
	mu       sync.Mutex
	failures []models.OutboxFailure
}

func (o *memOutbox) SaveFailure(ctx context.Context, failure models.OutboxFailure) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, failure)
	return nil
}

func (o *memOutbox) ListFailures(ctx context.Context) ([]models.OutboxFailure, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.OutboxFailure(nil), o.failures...), nil
}

func waitStopped(t *testing.T, stopped <-chan struct{}) {
	t.Helper()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop in time")
	}
}

func Test_Dispatcher(t *testing.T) {
	t.Parallel()

	msg := Message{To: "user@example.com", Subject: "Hello", Body: "Hi there"}

	t.Run("delivers enqueued message", func(t *testing.T) {
		var mu sync.Mutex
		var sent []Message

		sink := sinkFunc(func(ctx context.Context, m Message) error {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, m)
			return nil
		})

		outbox := &memOutbox{}
		d := NewDispatcher(sink, outbox, logger.NewNoOp())

		ctx, cancel := context.WithCancel(t.Context())
		stopped := d.Run(ctx)

		d.Enqueue(msg)

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(sent) == 1
		}, 5*time.Second, 10*time.Millisecond)

		cancel()
		waitStopped(t, stopped)

		assert.Equal(t, msg, sent[0])
		assert.Empty(t, outbox.failures)
	})

	t.Run("drains the queue on shutdown", func(t *testing.T) {
		var mu sync.Mutex
		var sent []Message

		sink := sinkFunc(func(ctx context.Context, m Message) error {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, m)
			return nil
		})

		d := NewDispatcher(sink, &memOutbox{}, logger.NewNoOp())

		// Everything queued before the worker even starts
		d.Enqueue(msg)
		d.Enqueue(msg)
		d.Enqueue(msg)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		waitStopped(t, d.Run(ctx))

		assert.Len(t, sent, 3, "queued messages have to go out before the worker stops")
	})

	t.Run("exhausted retries end up in the outbox", func(t *testing.T) {
		sink := sinkFunc(func(ctx context.Context, m Message) error {
			return errors.New("smtp is down")
		})

		outbox := &memOutbox{}
		d := NewDispatcher(sink, outbox, logger.NewNoOp())
		d.maxAttempts = 1 // no backoff waits in tests

		ctx, cancel := context.WithCancel(t.Context())
		stopped := d.Run(ctx)

		d.Enqueue(msg)

		require.Eventually(t, func() bool {
			failures, err := outbox.ListFailures(t.Context())
			require.NoError(t, err)
			return len(failures) == 1
		}, 5*time.Second, 10*time.Millisecond)

		cancel()
		waitStopped(t, stopped)

		failure := outbox.failures[0]
		assert.Equal(t, msg.To, failure.Recipient)
		assert.Equal(t, msg.Subject, failure.Subject)
		assert.Equal(t, msg.Body, failure.Body)
		assert.Equal(t, "smtp is down", failure.Reason)
		assert.Equal(t, 1, failure.Attempts)
	})

	t.Run("full queue counts as terminal failure", func(t *testing.T) {
		outbox := &memOutbox{}
		d := NewDispatcher(sinkFunc(func(ctx context.Context, m Message) error { return nil }), outbox, logger.NewNoOp())
		d.queue = make(chan Message) // nobody reads, unbuffered

		d.Enqueue(msg)

		require.Len(t, outbox.failures, 1)
		assert.Equal(t, "queue full", outbox.failures[0].Reason)
	})
}
