package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishOpensCircuitAfterFailures(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	b := newBroker(client, Config{TripAfter: 2, OpenTimeout: time.Minute}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := b.Publish(ctx, "appointment.booked", []byte(`{}`))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBrokerUnavailable)
	}

	err := b.Publish(ctx, "appointment.booked", []byte(`{}`))
	assert.ErrorIs(t, err, ErrBrokerUnavailable)
}
