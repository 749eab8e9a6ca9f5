// Package report_repo aggregates report data with set-based SQL over the
// journal, stock register and posted documents. Queries read committed
// state only; the service layer wraps them in read-only transactions.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/domain/posting"
	"khata/internal/domain/reports"
	"khata/internal/infrastructure/storage/postgres"
	"khata/internal/infrastructure/storage/postgres/posting_repo"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	postings *posting_repo.PostingRepo
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(postings *posting_repo.PostingRepo) *ReportRepo {
	return &ReportRepo{postings: postings}
}

func (r *ReportRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// BalancesAsOf sums journal activity per ledger through asOf.
func (r *ReportRepo) BalancesAsOf(ctx context.Context, businessID id.ID, asOf time.Time) ([]reports.LedgerBalance, error) {
	sql := `
		SELECT l.id AS ledger_id,
		       l.name,
		       l."group",
		       l.system_kind,
		       COALESCE(SUM(e.debit), 0)  AS debit,
		       COALESCE(SUM(e.credit), 0) AS credit
		FROM ledgers l
		LEFT JOIN ledger_entries e
		       ON e.ledger_id = l.id
		      AND e.business_id = l.business_id
		      AND e.period <= $2
		WHERE l.business_id = $1
		GROUP BY l.id, l.name, l."group", l.system_kind
		ORDER BY l."group", l.name`

	var balances []reports.LedgerBalance
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, sql, businessID, asOf); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return balances, nil
}

// BalancesInRange sums journal activity per ledger within [from, to].
func (r *ReportRepo) BalancesInRange(ctx context.Context, businessID id.ID, from, to time.Time) ([]reports.LedgerBalance, error) {
	sql := `
		SELECT l.id AS ledger_id,
		       l.name,
		       l."group",
		       l.system_kind,
		       COALESCE(SUM(e.debit), 0)  AS debit,
		       COALESCE(SUM(e.credit), 0) AS credit
		FROM ledgers l
		JOIN ledger_entries e
		       ON e.ledger_id = l.id
		      AND e.business_id = l.business_id
		WHERE l.business_id = $1
		  AND e.period >= $2
		  AND e.period <= $3
		GROUP BY l.id, l.name, l."group", l.system_kind
		ORDER BY l."group", l.name`

	var balances []reports.LedgerBalance
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, sql, businessID, from, to); err != nil {
		return nil, fmt.Errorf("select range balances: %w", err)
	}
	return balances, nil
}

// CashFlows sums debits and credits over the cash and bank ledgers.
// Debits to a cash ledger are inflows, credits are outflows.
func (r *ReportRepo) CashFlows(ctx context.Context, businessID id.ID, from, to time.Time) (reports.CashTotals, error) {
	sql := `
		SELECT COALESCE(SUM(e.debit), 0)  AS inflow,
		       COALESCE(SUM(e.credit), 0) AS outflow
		FROM ledger_entries e
		JOIN ledgers l
		  ON l.id = e.ledger_id
		 AND l.business_id = e.business_id
		WHERE e.business_id = $1
		  AND l.system_kind IN ('CASH', 'BANK')
		  AND e.period >= $2
		  AND e.period <= $3`

	var totals reports.CashTotals
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &totals, sql, businessID, from, to); err != nil {
		if pgxscan.NotFound(err) {
			return reports.CashTotals{}, nil
		}
		return reports.CashTotals{}, fmt.Errorf("select cash flows: %w", err)
	}
	return totals, nil
}

// Transaction retrieves a posted document header.
func (r *ReportRepo) Transaction(ctx context.Context, businessID, txnID id.ID) (*posting.Transaction, error) {
	t, err := r.postings.GetTransaction(ctx, businessID, txnID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// TransactionItems retrieves the lines of a posted document.
func (r *ReportRepo) TransactionItems(ctx context.Context, businessID, txnID id.ID) ([]posting.TransactionItem, error) {
	return r.postings.GetItems(ctx, businessID, txnID)
}

// TransactionsByDate returns all transactions of one business day.
func (r *ReportRepo) TransactionsByDate(ctx context.Context, businessID id.ID, day time.Time) ([]posting.Transaction, error) {
	return r.postings.ListByDate(ctx, businessID, day)
}

// PaymentsByDate returns all payments of one business day.
func (r *ReportRepo) PaymentsByDate(ctx context.Context, businessID id.ID, day time.Time) ([]posting.Payment, error) {
	return r.postings.ListPaymentsByDate(ctx, businessID, day)
}

// StockOnHand sums the stock register per item through asOf, valued at
// movement cost.
func (r *ReportRepo) StockOnHand(ctx context.Context, businessID id.ID, asOf time.Time) ([]reports.StockRow, error) {
	sql := `
		SELECT i.id AS item_id,
		       i.name AS item_name,
		       COALESCE(SUM(m.qty_in - m.qty_out), 0) AS qty,
		       COALESCE(SUM(CASE WHEN m.qty_in > 0 THEN m.cost_value
		                         ELSE -m.cost_value END), 0) AS value
		FROM items i
		LEFT JOIN stock_entries m
		       ON m.item_id = i.id
		      AND m.business_id = i.business_id
		      AND m.period <= $2
		WHERE i.business_id = $1
		GROUP BY i.id, i.name
		ORDER BY i.name`

	var rows []reports.StockRow
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, businessID, asOf); err != nil {
		return nil, fmt.Errorf("select stock on hand: %w", err)
	}
	return rows, nil
}
