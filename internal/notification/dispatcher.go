package notification

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mkalinin/classhub/internal/logger"
	"github.com/mkalinin/classhub/internal/models"
	"github.com/mkalinin/classhub/internal/repository"
)

const (
	defaultQueueSize   = 128
	defaultMaxAttempts = 5
)

// Dispatcher sends messages asynchronously with bounded retries.
// Enqueue never blocks and never fails the triggering operation: a mail
// outage must not break an authentication or token flow. Messages that
// exhaust every attempt end up as durable outbox failure rows for ops.
type Dispatcher struct {
	sink        Sink
	outbox      repository.OutboxRepo
	logger      logger.Logger
	maxAttempts int

	queue chan Message
}

func NewDispatcher(sink Sink, outbox repository.OutboxRepo, l logger.Logger) *Dispatcher {
	return &Dispatcher{
		sink:        sink,
		outbox:      outbox,
		logger:      l,
		maxAttempts: defaultMaxAttempts,
		queue:       make(chan Message, defaultQueueSize),
	}
}

// Enqueue hands the message to the dispatch worker without blocking
// A full queue counts as a terminal delivery failure straight away
func (d *Dispatcher) Enqueue(msg Message) {
	select {
	case d.queue <- msg:
	default:
		d.logger.Error("Notification queue is full, recording failure", "recipient", msg.To)
		d.recordFailure(context.Background(), msg, "queue full", 0)
	}
}

// Run starts the dispatch worker and returns a channel closed when the
// worker drained the queue after context cancellation
func (d *Dispatcher) Run(ctx context.Context) <-chan struct{} {
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		for {
			select {
			case <-ctx.Done():
				// Drain whatever is queued before giving up
				for {
					select {
					case msg := <-d.queue:
						d.deliver(context.Background(), msg)
					default:
						d.logger.Debug("Notification dispatcher stopped")
						return
					}
				}

			case msg := <-d.queue:
				d.deliver(ctx, msg)
			}
		}
	}()

	return stopped
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	attempts := 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(d.maxAttempts-1)),
		ctx,
	)

	err := backoff.Retry(func() error {
		attempts++

		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := d.sink.Send(sendCtx, msg); err != nil {
			d.logger.Warn("Notification delivery failed, will retry", "recipient", msg.To, "attempt", attempts, "error", err)
			return err
		}
		return nil
	}, policy)

	if err != nil {
		d.logger.Error("Notification delivery exhausted retries", "recipient", msg.To, "attempts", attempts, "error", err)
		d.recordFailure(context.Background(), msg, err.Error(), attempts)
		return
	}

	d.logger.Debug("Notification delivered", "recipient", msg.To, "attempts", attempts)
}

func (d *Dispatcher) recordFailure(ctx context.Context, msg Message, reason string, attempts int) {
	err := d.outbox.SaveFailure(ctx, models.OutboxFailure{
		Recipient: msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Reason:    reason,
		Attempts:  attempts,
	})
	if err != nil {
		// Last resort: at least keep the failure in the logs
		d.logger.Error("Failed to record notification failure", "recipient", msg.To, "error", err)
	}
}
