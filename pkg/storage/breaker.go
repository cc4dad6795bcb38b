package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerStore wraps a Store with a circuit breaker so a dead backend fails
// fast instead of stalling every exchange that only needs its response
// delivered. While open, store calls surface the breaker error immediately.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerStore creates the circuit-breaking decorator
func NewBreakerStore(inner Store) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "exchange-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// A missing record is an answer, not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})
	return &BreakerStore{inner: inner, cb: cb}
}

func (b *BreakerStore) Create(ctx context.Context, ex *Exchange) (string, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Create(ctx, ex)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (b *BreakerStore) ListRecent(ctx context.Context, limit int) ([]*Exchange, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.ListRecent(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*Exchange), nil
}

func (b *BreakerStore) GetByID(ctx context.Context, id string) (*Exchange, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Exchange), nil
}

func (b *BreakerStore) DeleteByID(ctx context.Context, id string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.DeleteByID(ctx, id)
	})
	return err
}

func (b *BreakerStore) DeleteAll(ctx context.Context) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.DeleteAll(ctx)
	})
	return err
}

func (b *BreakerStore) Ping(ctx context.Context) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Ping(ctx)
	})
	return err
}
