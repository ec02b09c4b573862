package messaging

import (
	"context"
	"errors"
)

// ErrUnavailable marks publish failures caused by the broker itself rather
// than by the message. Callers should retry the message later unchanged.
var ErrUnavailable = errors.New("broker unavailable")

// Broker moves raw event payloads between processes. Channels are named
// after event types.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan Message, error)
	Close() error
}

type Message struct {
	Channel string
	Payload []byte
}

// Handler consumes one message. A returned error is logged and the message
// is dropped.
type Handler func(ctx context.Context, msg Message) error

type MessageBroker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, handler Handler, channels ...string) error
	Close() error
}
