package storage

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
)

// ErrNotFound reports a lookup for an id the store holds no record of.
var ErrNotFound = errors.New("storage: exchange not found")

// DefaultHistoryLimit is how many records a listing returns when the caller
// gives no usable limit.
const DefaultHistoryLimit = 50

// Store defines the interface for persisting exchange records
type Store interface {
	// Create persists a new exchange and returns its assigned id.
	Create(ctx context.Context, ex *Exchange) (string, error)
	// ListRecent returns up to limit exchanges, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Exchange, error)
	// GetByID returns one exchange, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Exchange, error)
	// DeleteByID removes one exchange. Deleting an absent id is not an error.
	DeleteByID(ctx context.Context, id string) error
	// DeleteAll removes every stored exchange.
	DeleteAll(ctx context.Context) error

	// Health check
	Ping(ctx context.Context) error
}

// newID returns a time-sortable unique identifier for a new record.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
