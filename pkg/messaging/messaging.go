// Package messaging abstracts the pub/sub transport hooktail ingests from.
// It keeps the connector and seeder decoupled from a specific broker client.
package messaging

import (
	"context"
	"time"
)

// Message is a single pub/sub message.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Timestamp is when the message was received.
	Timestamp time.Time
}

// Handler processes a received message. Returning an error indicates
// processing failure; delivery of later messages continues.
type Handler func(ctx context.Context, msg *Message) error

// Subscription is an active subscription to a subject.
type Subscription interface {
	// Unsubscribe stops receiving messages on this subscription.
	Unsubscribe() error

	// Subject returns the subject this subscription is listening to.
	Subject() string

	// IsValid returns true while the subscription is active.
	IsValid() bool
}

// Client is a connected pub/sub client.
type Client interface {
	// Publish sends a message to the specified subject, fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishJSON marshals data as JSON and publishes it to the subject.
	PublishJSON(ctx context.Context, subject string, data any) error

	// Subscribe creates a fan-out subscription to the specified subject.
	Subscribe(subject string, handler Handler) (Subscription, error)

	// IsConnected reports whether the client holds a live connection.
	IsConnected() bool

	// Drain gracefully closes, letting in-flight messages complete.
	Drain() error

	// Close releases the connection and all subscriptions.
	Close() error
}
