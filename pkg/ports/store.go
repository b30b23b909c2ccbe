package ports

import (
	"context"

	"github.com/aretw0/rootcause/pkg/domain"
)

// ResultStore defines the interface for persisting final diagnosis results.
type ResultStore interface {
	// Save persists the record under record.ID.
	Save(ctx context.Context, record *domain.Record) error

	// Load retrieves a record.
	// Returns domain.ErrResultNotFound if the record does not exist.
	Load(ctx context.Context, id string) (*domain.Record, error)

	// Delete removes a record.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of stored records.
	List(ctx context.Context) ([]string, error)
}
