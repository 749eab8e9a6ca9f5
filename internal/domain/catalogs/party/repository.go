package party

import (
	"context"

	"khata/internal/core/id"
	"khata/internal/core/types"
)

// Repository defines the party catalog operations this core consumes.
type Repository interface {
	// GetByID retrieves a party within the business boundary.
	GetByID(ctx context.Context, businessID, partyID id.ID) (*Party, error)

	// GetForUpdate retrieves a party with a row lock. Taken inside the
	// posting transaction so concurrent postings against the same party
	// serialize on this row.
	GetForUpdate(ctx context.Context, businessID, partyID id.ID) (*Party, error)

	// AdjustRunningBalance applies a signed delta to the cached balance.
	// Must run inside the posting transaction, after GetForUpdate.
	AdjustRunningBalance(ctx context.Context, businessID, partyID id.ID, delta types.MinorUnits) error
}
