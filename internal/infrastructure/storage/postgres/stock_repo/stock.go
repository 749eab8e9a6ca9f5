// Package stock_repo provides the PostgreSQL implementation of the stock
// register. TxManager is obtained from context.
package stock_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"khata/internal/core/id"
	"khata/internal/core/types"
	"khata/internal/domain/stock"
	"khata/internal/infrastructure/storage/postgres"
)

const (
	entriesTable  = "stock_entries"
	lotsTable     = "stock_lots"
	balancesTable = "stock_balances"
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	builder squirrel.StatementBuilderType
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock register repository.
func NewStockRepo() *StockRepo {
	return &StockRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *StockRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// GetBalanceForUpdate returns the item balance with a pessimistic lock.
// Concurrent postings touching the same (business, item) serialize here.
func (r *StockRepo) GetBalanceForUpdate(ctx context.Context, businessID, itemID id.ID) (stock.Balance, error) {
	var balance stock.Balance

	sql := `
		SELECT business_id, item_id, qty, avg_cost, last_rate, negative, updated_at
		FROM stock_balances
		WHERE business_id = $1 AND item_id = $2
		FOR UPDATE
	`

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	err := pgxscan.Get(ctx, querier, &balance, sql, businessID, itemID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return stock.Balance{BusinessID: businessID, ItemID: itemID}, nil
		}
		return balance, fmt.Errorf("get balance for update: %w", err)
	}

	return balance, nil
}

// GetBalance returns the current item balance without locking.
func (r *StockRepo) GetBalance(ctx context.Context, businessID, itemID id.ID) (stock.Balance, error) {
	var balance stock.Balance

	q := r.builder.Select(
		"business_id", "item_id", "qty", "avg_cost", "last_rate", "negative", "updated_at",
	).From(balancesTable).
		Where(squirrel.Eq{"business_id": businessID, "item_id": itemID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return balance, fmt.Errorf("build query: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &balance, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return stock.Balance{BusinessID: businessID, ItemID: itemID}, nil
		}
		return balance, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

// UpsertBalance writes the running balance row.
func (r *StockRepo) UpsertBalance(ctx context.Context, b stock.Balance) error {
	sql := `
		INSERT INTO stock_balances (business_id, item_id, qty, avg_cost, last_rate, negative, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (business_id, item_id)
		DO UPDATE SET qty = $3, avg_cost = $4, last_rate = $5, negative = $6, updated_at = $7
	`

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		b.BusinessID, b.ItemID, b.Qty, b.AvgCost, b.LastRate, b.Negative, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

// GetLotsForUpdate returns open lots oldest-first with row locks.
func (r *StockRepo) GetLotsForUpdate(ctx context.Context, businessID, itemID id.ID) ([]stock.Lot, error) {
	sql := `
		SELECT id, business_id, item_id, qty_remaining, unit_cost, received_at
		FROM stock_lots
		WHERE business_id = $1 AND item_id = $2 AND qty_remaining > 0
		ORDER BY received_at, id
		FOR UPDATE
	`

	var lots []stock.Lot
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lots, sql, businessID, itemID); err != nil {
		return nil, fmt.Errorf("select lots for update: %w", err)
	}
	return lots, nil
}

// InsertLot appends a cost layer.
func (r *StockRepo) InsertLot(ctx context.Context, lot stock.Lot) error {
	q := r.builder.Insert(lotsTable).
		Columns("id", "business_id", "item_id", "qty_remaining", "unit_cost", "received_at").
		Values(lot.ID, lot.BusinessID, lot.ItemID, lot.QtyRemaining, lot.UnitCost, lot.ReceivedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

// SetLotQty updates a lot's remaining quantity, deleting exhausted lots.
func (r *StockRepo) SetLotQty(ctx context.Context, lotID id.ID, qty types.Quantity) error {
	querier := r.getTxManager(ctx).GetQuerier(ctx)

	if qty.IsZero() {
		q := r.builder.Delete(lotsTable).Where(squirrel.Eq{"id": lotID})
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("delete lot: %w", err)
		}
		return nil
	}

	q := r.builder.Update(lotsTable).
		Set("qty_remaining", qty).
		Where(squirrel.Eq{"id": lotID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	return nil
}

// InsertEntries batch inserts stock register rows.
func (r *StockRepo) InsertEntries(ctx context.Context, entries []stock.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	columns := []string{
		"line_id", "business_id", "transaction_id", "item_id",
		"qty_in", "qty_out", "rate", "cost_value", "period", "created_at",
	}

	// Fast path: COPY when inside a transaction.
	txm := r.getTxManager(ctx)
	if tx := txm.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(txm)
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []any{
				e.LineID, e.BusinessID, e.TransactionID, e.ItemID,
				e.QtyIn, e.QtyOut, e.Rate, e.CostValue, e.Period, e.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, entriesTable, columns, rows); err != nil {
			return fmt.Errorf("copy stock entries: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(entriesTable).Columns(columns...)
	for _, e := range entries {
		q = q.Values(
			e.LineID, e.BusinessID, e.TransactionID, e.ItemID,
			e.QtyIn, e.QtyOut, e.Rate, e.CostValue, e.Period, e.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert stock entries: %w", err)
	}
	return nil
}

// GetEntriesByTransaction retrieves the movements one transaction produced.
func (r *StockRepo) GetEntriesByTransaction(ctx context.Context, businessID, txnID id.ID) ([]stock.Entry, error) {
	q := r.builder.Select(
		"line_id", "business_id", "transaction_id", "item_id",
		"qty_in", "qty_out", "rate", "cost_value", "period", "created_at",
	).From(entriesTable).
		Where(squirrel.Eq{"business_id": businessID, "transaction_id": txnID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []stock.Entry
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	return entries, nil
}

// QtyAsOf sums the stock register for one item through asOf.
func (r *StockRepo) QtyAsOf(ctx context.Context, businessID, itemID id.ID, asOf time.Time) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(qty_in - qty_out), 0)
		FROM stock_entries
		WHERE business_id = $1 AND item_id = $2 AND period <= $3
	`

	var qty int64
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, businessID, itemID, asOf).Scan(&qty); err != nil {
		return 0, fmt.Errorf("sum entries: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(qty), nil
}
