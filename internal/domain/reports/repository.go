package reports

import (
	"context"
	"time"

	"khata/internal/core/id"
	"khata/internal/domain/posting"
)

// Repository aggregates report data from source-of-truth tables. All reads
// run in read-only transactions against committed state.
type Repository interface {
	// BalancesAsOf sums journal activity per ledger from the beginning of
	// time through asOf.
	BalancesAsOf(ctx context.Context, businessID id.ID, asOf time.Time) ([]LedgerBalance, error)

	// BalancesInRange sums journal activity per ledger within [from, to].
	BalancesInRange(ctx context.Context, businessID id.ID, from, to time.Time) ([]LedgerBalance, error)

	// CashFlows sums debits and credits over the cash/bank ledgers within
	// [from, to].
	CashFlows(ctx context.Context, businessID id.ID, from, to time.Time) (CashTotals, error)

	// Transaction retrieves a posted document header.
	Transaction(ctx context.Context, businessID, txnID id.ID) (*posting.Transaction, error)

	// TransactionItems retrieves the lines of a posted document.
	TransactionItems(ctx context.Context, businessID, txnID id.ID) ([]posting.TransactionItem, error)

	// TransactionsByDate returns all transactions of one business day.
	TransactionsByDate(ctx context.Context, businessID id.ID, day time.Time) ([]posting.Transaction, error)

	// PaymentsByDate returns all payments of one business day.
	PaymentsByDate(ctx context.Context, businessID id.ID, day time.Time) ([]posting.Payment, error)

	// StockOnHand sums the stock register per item through asOf, valued at
	// movement cost.
	StockOnHand(ctx context.Context, businessID id.ID, asOf time.Time) ([]StockRow, error)
}
