package stock

import (
	"context"
	"time"

	"khata/internal/core/id"
	"khata/internal/core/types"
)

// Repository defines storage operations for the stock register.
// All mutating methods must be called inside the posting transaction.
type Repository interface {
	// GetBalanceForUpdate returns the per-item valuation state with a row
	// lock. This is the serialization point for concurrent postings touching
	// the same (business, item): two sales consuming the same FIFO lot queue
	// on this lock. Returns a zero-value balance when none exists yet.
	GetBalanceForUpdate(ctx context.Context, businessID, itemID id.ID) (Balance, error)

	// UpsertBalance writes the valuation state back.
	UpsertBalance(ctx context.Context, b Balance) error

	// GetLotsForUpdate returns open lots oldest-first with row locks.
	GetLotsForUpdate(ctx context.Context, businessID, itemID id.ID) ([]Lot, error)

	// InsertLot appends a new cost layer.
	InsertLot(ctx context.Context, lot Lot) error

	// SetLotQty updates a lot's remaining quantity, deleting it at zero.
	SetLotQty(ctx context.Context, lotID id.ID, qty types.Quantity) error

	// InsertEntries batch-appends immutable stock ledger rows.
	InsertEntries(ctx context.Context, entries []Entry) error

	// GetEntriesByTransaction returns the stock rows of one transaction,
	// in insertion order (used to mirror movements on reversal).
	GetEntriesByTransaction(ctx context.Context, businessID, txnID id.ID) ([]Entry, error)

	// GetBalance returns the valuation state without locking (read API).
	GetBalance(ctx context.Context, businessID, itemID id.ID) (Balance, error)

	// QtyAsOf derives on-hand quantity from the stock ledger at a date.
	QtyAsOf(ctx context.Context, businessID, itemID id.ID, asOf time.Time) (types.Quantity, error)
}
