package item

import (
	"context"

	"khata/internal/core/id"
	"khata/internal/core/types"
)

// Repository defines the item catalog operations this core consumes.
type Repository interface {
	// GetByID retrieves an item within the business boundary.
	GetByID(ctx context.Context, businessID, itemID id.ID) (*Item, error)

	// SetStockCache updates the denormalized on-hand quantity.
	// Must run inside the posting transaction.
	SetStockCache(ctx context.Context, businessID, itemID id.ID, qty types.Quantity) error
}
