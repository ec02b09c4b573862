package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// BrokerAdapter runs a handler over a Broker's subscription channel.
type BrokerAdapter struct {
	broker Broker
	logger *zerolog.Logger
}

func NewBrokerAdapter(broker Broker, logger *zerolog.Logger) MessageBroker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BrokerAdapter{broker: broker, logger: logger}
}

func (a *BrokerAdapter) Publish(ctx context.Context, channel string, payload []byte) error {
	return a.broker.Publish(ctx, channel, payload)
}

func (a *BrokerAdapter) Close() error {
	return a.broker.Close()
}

// Subscribe returns once the subscription is open. Messages are handled one
// at a time on a goroutine that ends with ctx.
func (a *BrokerAdapter) Subscribe(ctx context.Context, handler Handler, channels ...string) error {
	msgs, err := a.broker.Subscribe(ctx, channels...)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			if err := handler(ctx, msg); err != nil {
				a.logger.Error().Err(err).Str("channel", msg.Channel).Msg("Failed to handle message")
			}
		}
	}()

	return nil
}
