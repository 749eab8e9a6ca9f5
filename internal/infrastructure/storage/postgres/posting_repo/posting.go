// Package posting_repo provides the PostgreSQL persistence for posted
// documents: transaction headers, lines, journal entries and payments.
// Rows are insert-only except the settlement cache on the header.
package posting_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/core/types"
	"khata/internal/domain/posting"
	"khata/internal/infrastructure/storage/postgres"
)

const (
	transactionsTable     = "transactions"
	transactionItemsTable = "transaction_items"
	ledgerEntriesTable    = "ledger_entries"
	paymentsTable         = "payments"
)

var (
	transactionColumns = []string{
		"id", "version", "created_at", "created_by", "business_id", "number",
		"type", "date", "party_id", "sub_total", "tax_amount", "total_amount",
		"balance_amount", "payment_status", "reversal_of", "notes",
	}
	transactionItemColumns = []string{
		"line_id", "transaction_id", "business_id", "line_no", "item_id",
		"qty", "rate", "gst_amount", "amount", "cost_price",
	}
	ledgerEntryColumns = []string{
		"line_id", "business_id", "transaction_id", "ledger_id",
		"debit", "credit", "period", "created_at",
	}
	paymentColumns = []string{
		"id", "business_id", "source_txn_id", "transaction_id", "date",
		"mode", "amount", "direction", "party_id", "ledger_id", "created_at",
	}
)

// PostingRepo implements posting.Repository.
type PostingRepo struct {
	builder squirrel.StatementBuilderType
}

var _ posting.Repository = (*PostingRepo)(nil)

// NewPostingRepo creates a new posting repository.
func NewPostingRepo() *PostingRepo {
	return &PostingRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PostingRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// InsertTransaction writes the document header.
func (r *PostingRepo) InsertTransaction(ctx context.Context, t *posting.Transaction) error {
	q := r.builder.Insert(transactionsTable).
		Columns(transactionColumns...).
		Values(t.ID, t.Version, t.CreatedAt, t.CreatedBy, t.BusinessID,
			t.Number, t.Type, t.Date, t.PartyID, t.SubTotal, t.TaxAmount,
			t.TotalAmount, t.BalanceAmount, t.PaymentStatus, t.ReversalOf,
			t.Notes)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// InsertItems writes the document lines.
func (r *PostingRepo) InsertItems(ctx context.Context, items []posting.TransactionItem) error {
	if len(items) == 0 {
		return nil
	}

	q := r.builder.Insert(transactionItemsTable).Columns(transactionItemColumns...)
	for _, it := range items {
		q = q.Values(it.LineID, it.TransactionID, it.BusinessID, it.LineNo,
			it.ItemID, it.Qty, it.Rate, it.GSTAmount, it.Amount, it.CostPrice)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert transaction items: %w", err)
	}
	return nil
}

// InsertEntries writes the journal rows. Uses the COPY protocol when
// running inside a transaction, which every posting does.
func (r *PostingRepo) InsertEntries(ctx context.Context, entries []posting.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	txm := r.getTxManager(ctx)
	if txm.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []any{
				e.LineID, e.BusinessID, e.TransactionID, e.LedgerID,
				e.Debit, e.Credit, e.Period, e.CreatedAt,
			})
		}
		inserter := postgres.NewBatchInserter(txm)
		if _, err := inserter.CopyFromSlice(ctx, ledgerEntriesTable, ledgerEntryColumns, rows); err != nil {
			return fmt.Errorf("copy ledger entries: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(ledgerEntriesTable).Columns(ledgerEntryColumns...)
	for _, e := range entries {
		q = q.Values(e.LineID, e.BusinessID, e.TransactionID, e.LedgerID,
			e.Debit, e.Credit, e.Period, e.CreatedAt)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}

// InsertPayment writes a settlement record.
func (r *PostingRepo) InsertPayment(ctx context.Context, p *posting.Payment) error {
	q := r.builder.Insert(paymentsTable).
		Columns(paymentColumns...).
		Values(p.ID, p.BusinessID, p.SourceTxnID, p.TransactionID, p.Date,
			p.Mode, p.Amount, p.Direction, p.PartyID, p.LedgerID, p.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetTransaction retrieves a header within the business boundary.
func (r *PostingRepo) GetTransaction(ctx context.Context, businessID, txnID id.ID) (*posting.Transaction, error) {
	q := r.builder.Select(transactionColumns...).
		From(transactionsTable).
		Where(squirrel.Eq{"business_id": businessID, "id": txnID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t posting.Transaction
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transaction", txnID)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

// GetTransactionForUpdate retrieves a header with a row lock so concurrent
// settlements and reversals of the same document serialize.
func (r *PostingRepo) GetTransactionForUpdate(ctx context.Context, businessID, txnID id.ID) (*posting.Transaction, error) {
	sql := `
		SELECT id, version, created_at, created_by, business_id, number,
		       type, date, party_id, sub_total, tax_amount, total_amount,
		       balance_amount, payment_status, reversal_of, notes
		FROM transactions
		WHERE business_id = $1 AND id = $2
		FOR UPDATE`

	var t posting.Transaction
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &t, sql, businessID, txnID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transaction", txnID)
		}
		return nil, fmt.Errorf("lock transaction: %w", err)
	}
	return &t, nil
}

// GetItems retrieves the lines of a transaction ordered as entered.
func (r *PostingRepo) GetItems(ctx context.Context, businessID, txnID id.ID) ([]posting.TransactionItem, error) {
	q := r.builder.Select(transactionItemColumns...).
		From(transactionItemsTable).
		Where(squirrel.Eq{"business_id": businessID, "transaction_id": txnID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []posting.TransactionItem
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select transaction items: %w", err)
	}
	return items, nil
}

// GetEntries retrieves the journal rows of a transaction.
func (r *PostingRepo) GetEntries(ctx context.Context, businessID, txnID id.ID) ([]posting.LedgerEntry, error) {
	q := r.builder.Select(ledgerEntryColumns...).
		From(ledgerEntriesTable).
		Where(squirrel.Eq{"business_id": businessID, "transaction_id": txnID}).
		OrderBy("created_at", "line_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []posting.LedgerEntry
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	return entries, nil
}

// GetPaymentsBySource retrieves the payments a posting document produced.
func (r *PostingRepo) GetPaymentsBySource(ctx context.Context, businessID, sourceTxnID id.ID) ([]posting.Payment, error) {
	q := r.builder.Select(paymentColumns...).
		From(paymentsTable).
		Where(squirrel.Eq{"business_id": businessID, "source_txn_id": sourceTxnID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var payments []posting.Payment
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &payments, sql, args...); err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	return payments, nil
}

// HasReversal reports whether a reversal already references txnID.
func (r *PostingRepo) HasReversal(ctx context.Context, businessID, txnID id.ID) (bool, error) {
	sql := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE business_id = $1 AND reversal_of = $2
		)`

	var exists bool
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, businessID, txnID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check reversal: %w", err)
	}
	return exists, nil
}

// UpdateSettlement updates the balance/status cache on a header.
func (r *PostingRepo) UpdateSettlement(ctx context.Context, businessID, txnID id.ID, balance types.MinorUnits, status posting.PaymentStatus) error {
	sql := `
		UPDATE transactions
		SET balance_amount = $3,
		    payment_status = $4,
		    version = version + 1
		WHERE business_id = $1 AND id = $2`

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, businessID, txnID, balance, status)
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("transaction", txnID)
	}
	return nil
}

// ListByDate returns transactions posted for one business day.
func (r *PostingRepo) ListByDate(ctx context.Context, businessID id.ID, day time.Time) ([]posting.Transaction, error) {
	from := day.Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	q := r.builder.Select(transactionColumns...).
		From(transactionsTable).
		Where(squirrel.Eq{"business_id": businessID}).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.Lt{"date": to}).
		OrderBy("date", "number")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var txns []posting.Transaction
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &txns, sql, args...); err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	return txns, nil
}

// ListPaymentsByDate returns payments recorded for one business day.
func (r *PostingRepo) ListPaymentsByDate(ctx context.Context, businessID id.ID, day time.Time) ([]posting.Payment, error) {
	from := day.Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	q := r.builder.Select(paymentColumns...).
		From(paymentsTable).
		Where(squirrel.Eq{"business_id": businessID}).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.Lt{"date": to}).
		OrderBy("date")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var payments []posting.Payment
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &payments, sql, args...); err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	return payments, nil
}
