package main

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/internal/core/types"
	"khata/internal/domain/posting"
)

// partyDrift is one party whose cached balance disagrees with the journal.
type partyDrift struct {
	PartyID id.ID            `db:"party_id"`
	Cached  types.MinorUnits `db:"cached"`
	Actual  types.MinorUnits `db:"actual"`
}

// itemDrift is one item whose cached quantity disagrees with the register.
type itemDrift struct {
	ItemID id.ID          `db:"item_id"`
	Cached types.Quantity `db:"cached"`
	Actual types.Quantity `db:"actual"`
}

// reconcilePartyBalances recomputes every running balance from the journal,
// signed by party role, and repairs rows that drifted. Drift means a bug
// somewhere in the posting path, so each fix is logged at error level.
func (w *Worker) reconcilePartyBalances(ctx context.Context) error {
	businessID := tenant.GetBusinessID(ctx)
	querier := w.txManager.GetQuerier(ctx)

	sql := `
		SELECT p.id AS party_id,
		       p.running_balance AS cached,
		       COALESCE(SUM(CASE WHEN p.type = 'CUSTOMER'
		                         THEN e.debit - e.credit
		                         ELSE e.credit - e.debit END), 0) AS actual
		FROM parties p
		LEFT JOIN ledger_entries e
		       ON e.ledger_id = p.ledger_id
		      AND e.business_id = p.business_id
		WHERE p.business_id = $1
		GROUP BY p.id, p.running_balance
		HAVING p.running_balance <> COALESCE(SUM(CASE WHEN p.type = 'CUSTOMER'
		                                              THEN e.debit - e.credit
		                                              ELSE e.credit - e.debit END), 0)`

	var drifted []partyDrift
	if err := pgxscan.Select(ctx, querier, &drifted, sql, businessID); err != nil {
		return fmt.Errorf("detect party drift: %w", err)
	}

	for _, d := range drifted {
		w.log.Errorw("party balance drift repaired",
			"business_id", businessID,
			"party_id", d.PartyID,
			"cached", d.Cached,
			"actual", d.Actual,
		)

		if _, err := querier.Exec(ctx, `
			UPDATE parties
			SET running_balance = $3,
			    version = version + 1,
			    updated_at = $4
			WHERE business_id = $1 AND id = $2`,
			businessID, d.PartyID, d.Actual, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("repair party balance: %w", err)
		}
	}
	return nil
}

// settlementDrift is one credit document whose cached balance disagrees
// with its applied payments.
type settlementDrift struct {
	TxnID  id.ID            `db:"txn_id"`
	Total  types.MinorUnits `db:"total"`
	Cached types.MinorUnits `db:"cached"`
	Actual types.MinorUnits `db:"actual"`
}

// reconcileSettlements recomputes balance_amount per open-capable document
// from the payments applied against it and repairs drifted caches, keeping
// payment_status in step. Reversed documents are skipped; the reversal
// already closed them.
func (w *Worker) reconcileSettlements(ctx context.Context) error {
	businessID := tenant.GetBusinessID(ctx)
	querier := w.txManager.GetQuerier(ctx)

	// Paid amount is the signed sum of applied payments: money in reduces a
	// receivable, money out reduces a payable, and mirrored reversal rows
	// net the pair back to zero.
	sql := `
		SELECT t.id AS txn_id,
		       t.total_amount AS total,
		       t.balance_amount AS cached,
		       t.total_amount - COALESCE(SUM(CASE WHEN t.type = 'SALE'
		                                          THEN CASE WHEN p.direction = 'IN' THEN p.amount ELSE -p.amount END
		                                          ELSE CASE WHEN p.direction = 'OUT' THEN p.amount ELSE -p.amount END
		                                     END), 0) AS actual
		FROM transactions t
		LEFT JOIN payments p
		       ON p.transaction_id = t.id
		      AND p.business_id = t.business_id
		WHERE t.business_id = $1
		  AND t.type IN ('SALE', 'PURCHASE', 'EXPENSE')
		  AND NOT EXISTS (SELECT 1 FROM transactions r
		                  WHERE r.business_id = t.business_id AND r.reversal_of = t.id)
		GROUP BY t.id, t.total_amount, t.balance_amount
		HAVING t.balance_amount <> t.total_amount - COALESCE(SUM(CASE WHEN t.type = 'SALE'
		                                          THEN CASE WHEN p.direction = 'IN' THEN p.amount ELSE -p.amount END
		                                          ELSE CASE WHEN p.direction = 'OUT' THEN p.amount ELSE -p.amount END
		                                     END), 0)`

	var drifted []settlementDrift
	if err := pgxscan.Select(ctx, querier, &drifted, sql, businessID); err != nil {
		return fmt.Errorf("detect settlement drift: %w", err)
	}

	for _, d := range drifted {
		status := posting.DerivePaymentStatus(d.Actual, d.Total)
		w.log.Errorw("settlement drift repaired",
			"business_id", businessID,
			"transaction_id", d.TxnID,
			"cached", d.Cached,
			"actual", d.Actual,
			"status", status,
		)

		if _, err := querier.Exec(ctx, `
			UPDATE transactions
			SET balance_amount = $3,
			    payment_status = $4
			WHERE business_id = $1 AND id = $2`,
			businessID, d.TxnID, d.Actual, status,
		); err != nil {
			return fmt.Errorf("repair settlement: %w", err)
		}
	}
	return nil
}

// reconcileStockQuantities recomputes on-hand quantity per item from the
// stock register and repairs drifted caches.
func (w *Worker) reconcileStockQuantities(ctx context.Context) error {
	businessID := tenant.GetBusinessID(ctx)
	querier := w.txManager.GetQuerier(ctx)

	sql := `
		SELECT i.id AS item_id,
		       i.stock_qty AS cached,
		       COALESCE(SUM(m.qty_in - m.qty_out), 0) AS actual
		FROM items i
		LEFT JOIN stock_entries m
		       ON m.item_id = i.id
		      AND m.business_id = i.business_id
		WHERE i.business_id = $1
		GROUP BY i.id, i.stock_qty
		HAVING i.stock_qty <> COALESCE(SUM(m.qty_in - m.qty_out), 0)`

	var drifted []itemDrift
	if err := pgxscan.Select(ctx, querier, &drifted, sql, businessID); err != nil {
		return fmt.Errorf("detect stock drift: %w", err)
	}

	for _, d := range drifted {
		w.log.Errorw("stock quantity drift repaired",
			"business_id", businessID,
			"item_id", d.ItemID,
			"cached", d.Cached.String(),
			"actual", d.Actual.String(),
		)

		if _, err := querier.Exec(ctx, `
			UPDATE items
			SET stock_qty = $3,
			    updated_at = $4
			WHERE business_id = $1 AND id = $2`,
			businessID, d.ItemID, d.Actual, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("repair stock quantity: %w", err)
		}
	}
	return nil
}
