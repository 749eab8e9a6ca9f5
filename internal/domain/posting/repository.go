package posting

import (
	"context"
	"time"

	"khata/internal/core/id"
	"khata/internal/core/types"
)

// Repository persists posted documents. All methods run inside the posting
// transaction; rows are insert-only except the settlement cache columns on
// the transaction header.
type Repository interface {
	// InsertTransaction writes the document header.
	InsertTransaction(ctx context.Context, t *Transaction) error

	// InsertItems writes the document lines.
	InsertItems(ctx context.Context, items []TransactionItem) error

	// InsertEntries writes the journal rows (bulk, COPY protocol).
	InsertEntries(ctx context.Context, entries []LedgerEntry) error

	// InsertPayment writes a settlement record.
	InsertPayment(ctx context.Context, p *Payment) error

	// GetTransaction retrieves a header within the business boundary.
	GetTransaction(ctx context.Context, businessID, txnID id.ID) (*Transaction, error)

	// GetTransactionForUpdate retrieves a header with a row lock. Taken
	// when applying payments or reversing, so concurrent settlements of
	// the same document serialize.
	GetTransactionForUpdate(ctx context.Context, businessID, txnID id.ID) (*Transaction, error)

	// GetItems retrieves the lines of a transaction.
	GetItems(ctx context.Context, businessID, txnID id.ID) ([]TransactionItem, error)

	// GetEntries retrieves the journal rows of a transaction.
	GetEntries(ctx context.Context, businessID, txnID id.ID) ([]LedgerEntry, error)

	// GetPaymentsBySource retrieves the payments a posting document
	// produced. Reversals walk them to undo settlements.
	GetPaymentsBySource(ctx context.Context, businessID, sourceTxnID id.ID) ([]Payment, error)

	// HasReversal reports whether a reversal already references txnID.
	HasReversal(ctx context.Context, businessID, txnID id.ID) (bool, error)

	// UpdateSettlement updates the balance/status cache on a header.
	// The only permitted mutation of a posted transaction.
	UpdateSettlement(ctx context.Context, businessID, txnID id.ID, balance types.MinorUnits, status PaymentStatus) error

	// ListByDate returns transactions posted for one business day.
	ListByDate(ctx context.Context, businessID id.ID, day time.Time) ([]Transaction, error)

	// ListPaymentsByDate returns payments recorded for one business day.
	ListPaymentsByDate(ctx context.Context, businessID id.ID, day time.Time) ([]Payment, error)
}
