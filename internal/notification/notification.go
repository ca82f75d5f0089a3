package notification

import "context"

// Message is one templated notification addressed to a single recipient
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sink delivers one message synchronously
// Implementations must be safe for concurrent use
type Sink interface {
	Send(ctx context.Context, msg Message) error
}
