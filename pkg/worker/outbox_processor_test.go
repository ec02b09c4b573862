package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

type fakeBroker struct {
	mu          sync.Mutex
	fail        bool
	unavailable bool
	calls       int
	published   []messaging.Message
}

func (b *fakeBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.unavailable {
		return fmt.Errorf("circuit open: %w", messaging.ErrUnavailable)
	}
	if b.fail {
		return errors.New("message rejected")
	}
	b.published = append(b.published, messaging.Message{Channel: channel, Payload: payload})
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, ...string) (<-chan messaging.Message, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBroker) Close() error { return nil }

func newProcessor(t *testing.T, broker messaging.Broker) (*OutboxProcessor, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	p := NewOutboxProcessor(memory.NewOutboxRepository(store), broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		MaxFailures:   2,
	}, logger.Nop(), metrics.New("test"))
	return p, store
}

func record(t *testing.T, store *memory.Store, eventType string) {
	t.Helper()
	require.NoError(t, memory.NewOutboxRepository(store).Create(context.Background(), &model.OutboxEvent{
		EventType: eventType,
		Payload:   []byte(`{"type":"` + eventType + `"}`),
	}))
}

func TestProcessOncePublishesPending(t *testing.T) {
	broker := &fakeBroker{}
	p, store := newProcessor(t, broker)
	record(t, store, "appointment.booked")
	record(t, store, "prescription.created")

	n, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, broker.published, 2)

	n, err = p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessOnceParksFailingEvents(t *testing.T) {
	broker := &fakeBroker{fail: true}
	p, store := newProcessor(t, broker)
	record(t, store, "appointment.booked")
	repo := memory.NewOutboxRepository(store)

	_, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	pending, err := repo.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)

	_, err = p.ProcessOnce(context.Background())
	require.NoError(t, err)
	pending, err = repo.ListPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessOnceDefersBatchWhileBrokerUnavailable(t *testing.T) {
	broker := &fakeBroker{unavailable: true}
	p, store := newProcessor(t, broker)
	record(t, store, "appointment.booked")
	record(t, store, "appointment.cancelled")
	repo := memory.NewOutboxRepository(store)

	for i := 0; i < 3; i++ {
		n, err := p.ProcessOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	assert.Equal(t, 3, broker.calls, "one attempt per poll, no retries, rest of batch skipped")

	pending, err := repo.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, e := range pending {
		assert.Zero(t, e.RetryCount)
	}

	broker.unavailable = false
	n, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "appointment.booked", broker.published[0].Channel)
}

func TestConfigDefaults(t *testing.T) {
	p := NewOutboxProcessor(nil, &fakeBroker{}, OutboxProcessorConfig{BatchSize: 7}, logger.Nop(), metrics.New("test"))
	want := DefaultOutboxProcessorConfig()
	want.BatchSize = 7
	assert.Equal(t, want, p.config)
}

func TestOutboxCleanerPurgesProcessed(t *testing.T) {
	broker := &fakeBroker{}
	p, store := newProcessor(t, broker)
	record(t, store, "appointment.booked")
	_, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)

	cleaner := NewOutboxCleaner(memory.NewOutboxRepository(store), time.Hour, logger.Nop(), metrics.New("test"))
	cleaner.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	n, err := cleaner.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry(ctx, 5, time.Hour, func() error {
		calls++
		return errors.New("nope")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
