// Package memory keeps every repository in process, backed by go-cache.
// It serves local runs with database.driver=memory and the test suites.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/hospital-api/internal/repository"
)

type txKey struct{}

// Store holds one cache per entity. mu guards read-modify-write sequences;
// txMu serialises transactions so a rollback only undoes its own writes.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	appointments  *cache.Cache
	prescriptions *cache.Cache
	users         *cache.Cache
	departments   *cache.Cache
	outbox        *cache.Cache
}

func NewStore() *Store {
	return &Store{
		appointments:  cache.New(cache.NoExpiration, 0),
		prescriptions: cache.New(cache.NoExpiration, 0),
		users:         cache.New(cache.NoExpiration, 0),
		departments:   cache.New(cache.NoExpiration, 0),
		outbox:        cache.New(cache.NoExpiration, 0),
	}
}

func (s *Store) caches() []*cache.Cache {
	return []*cache.Cache{s.appointments, s.prescriptions, s.users, s.departments, s.outbox}
}

// WithinTx snapshots the store and restores it if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := make([]map[string]cache.Item, 0, 5)
	for _, c := range s.caches() {
		snapshot = append(snapshot, c.Items())
	}
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		for i, c := range s.caches() {
			c.Flush()
			for k, item := range snapshot[i] {
				c.Set(k, item.Object, cache.NoExpiration)
			}
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// TxManager exposes the store's transactions to services.
func (s *Store) TxManager() repository.TxManager {
	return s
}

// values returns the stored items of type T, sorted by less.
func values[T any](c *cache.Cache, keep func(*T) bool, less func(a, b *T) bool) []*T {
	items := c.Items()
	out := make([]*T, 0, len(items))
	for _, item := range items {
		v, ok := item.Object.(T)
		if !ok {
			continue
		}
		cp := v
		if keep == nil || keep(&cp) {
			out = append(out, &cp)
		}
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

func get[T any](c *cache.Cache, key string) (*T, bool) {
	obj, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	v, ok := obj.(T)
	if !ok {
		return nil, false
	}
	return &v, true
}
