// Package ledger_repo provides the PostgreSQL implementation of the chart
// of accounts. TxManager is obtained from context.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/domain/ledger"
	"khata/internal/infrastructure/storage/postgres"
)

const ledgersTable = "ledgers"

var ledgerColumns = []string{
	"id", "version", "business_id", "name", `"group"`, "sub_group",
	"system_kind", "created_at",
}

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	builder squirrel.StatementBuilderType
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new chart-of-accounts repository.
func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LedgerRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts a new ledger.
func (r *LedgerRepo) Create(ctx context.Context, l *ledger.Ledger) error {
	q := r.builder.Insert(ledgersTable).
		Columns(ledgerColumns...).
		Values(l.ID, l.Version, l.BusinessID, l.Name, l.Group, l.SubGroup,
			l.SystemKind, l.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert ledger: %w", err)
	}
	return nil
}

// GetByID retrieves a ledger within the business boundary.
func (r *LedgerRepo) GetByID(ctx context.Context, businessID, ledgerID id.ID) (*ledger.Ledger, error) {
	q := r.builder.Select(ledgerColumns...).
		From(ledgersTable).
		Where(squirrel.Eq{"business_id": businessID, "id": ledgerID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l ledger.Ledger
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &l, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ledger", ledgerID)
		}
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	return &l, nil
}

// GetBySystemKind retrieves a well-known ledger by role.
func (r *LedgerRepo) GetBySystemKind(ctx context.Context, businessID id.ID, kind ledger.SystemKind) (*ledger.Ledger, error) {
	q := r.builder.Select(ledgerColumns...).
		From(ledgersTable).
		Where(squirrel.Eq{"business_id": businessID, "system_kind": kind}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l ledger.Ledger
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &l, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ledger", string(kind))
		}
		return nil, fmt.Errorf("get system ledger: %w", err)
	}
	return &l, nil
}

// List returns the chart of accounts ordered by group, name.
func (r *LedgerRepo) List(ctx context.Context, businessID id.ID) ([]ledger.Ledger, error) {
	q := r.builder.Select(ledgerColumns...).
		From(ledgersTable).
		Where(squirrel.Eq{"business_id": businessID}).
		OrderBy(`"group"`, "name")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ledgers []ledger.Ledger
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &ledgers, sql, args...); err != nil {
		return nil, fmt.Errorf("select ledgers: %w", err)
	}
	return ledgers, nil
}
