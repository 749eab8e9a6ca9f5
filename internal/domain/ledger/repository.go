package ledger

import (
	"context"

	"khata/internal/core/id"
)

// Repository defines storage operations for the chart of accounts.
type Repository interface {
	// Create inserts a new ledger.
	Create(ctx context.Context, l *Ledger) error

	// GetByID retrieves a ledger within the business boundary.
	GetByID(ctx context.Context, businessID, ledgerID id.ID) (*Ledger, error)

	// GetBySystemKind retrieves a well-known ledger by role.
	GetBySystemKind(ctx context.Context, businessID id.ID, kind SystemKind) (*Ledger, error)

	// List returns all ledgers of a business ordered by group, name.
	List(ctx context.Context, businessID id.ID) ([]Ledger, error)
}
