// Package catalog_repo provides PostgreSQL read models for catalog rows the
// financial core consumes (parties, items) plus their posting-time caches.
package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/core/types"
	"khata/internal/domain/catalogs/party"
	"khata/internal/infrastructure/storage/postgres"
)

const partiesTable = "parties"

var partyColumns = []string{
	"id", "version", "business_id", "name", "type", "ledger_id",
	"running_balance", "updated_at",
}

// PartyRepo implements party.Repository.
type PartyRepo struct {
	builder squirrel.StatementBuilderType
}

var _ party.Repository = (*PartyRepo)(nil)

// NewPartyRepo creates a new party repository.
func NewPartyRepo() *PartyRepo {
	return &PartyRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PartyRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// GetByID retrieves a party within the business boundary.
func (r *PartyRepo) GetByID(ctx context.Context, businessID, partyID id.ID) (*party.Party, error) {
	q := r.builder.Select(partyColumns...).
		From(partiesTable).
		Where(squirrel.Eq{"business_id": businessID, "id": partyID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p party.Party
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("party", partyID)
		}
		return nil, fmt.Errorf("get party: %w", err)
	}
	return &p, nil
}

// GetForUpdate retrieves a party with a row lock. Concurrent postings
// against the same party serialize on this row.
func (r *PartyRepo) GetForUpdate(ctx context.Context, businessID, partyID id.ID) (*party.Party, error) {
	sql := `
		SELECT id, version, business_id, name, type, ledger_id,
		       running_balance, updated_at
		FROM parties
		WHERE business_id = $1 AND id = $2
		FOR UPDATE`

	var p party.Party
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, businessID, partyID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("party", partyID)
		}
		return nil, fmt.Errorf("lock party: %w", err)
	}
	return &p, nil
}

// AdjustRunningBalance applies a signed delta to the cached balance.
// Caller must hold the row lock via GetForUpdate.
func (r *PartyRepo) AdjustRunningBalance(ctx context.Context, businessID, partyID id.ID, delta types.MinorUnits) error {
	sql := `
		UPDATE parties
		SET running_balance = running_balance + $3,
		    version = version + 1,
		    updated_at = $4
		WHERE business_id = $1 AND id = $2`

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, businessID, partyID, delta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adjust running balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("party", partyID)
	}
	return nil
}
