// Package tenant_repo provides PostgreSQL persistence for businesses.
package tenant_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/internal/infrastructure/storage/postgres"
)

const businessesTable = "businesses"

var businessColumns = []string{
	"id", "name", "currency", "valuation_policy", "allow_negative_stock",
	"created_at",
}

// BusinessRepo loads and stores business configuration.
type BusinessRepo struct {
	builder squirrel.StatementBuilderType
}

// NewBusinessRepo creates a new business repository.
func NewBusinessRepo() *BusinessRepo {
	return &BusinessRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *BusinessRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// Create inserts a new business.
func (r *BusinessRepo) Create(ctx context.Context, b *tenant.Business) error {
	q := r.builder.Insert(businessesTable).
		Columns(businessColumns...).
		Values(b.ID, b.Name, b.Currency, b.ValuationPolicy,
			b.AllowNegativeStock, b.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert business: %w", err)
	}
	return nil
}

// GetByID retrieves a business by id.
func (r *BusinessRepo) GetByID(ctx context.Context, businessID id.ID) (*tenant.Business, error) {
	q := r.builder.Select(businessColumns...).
		From(businessesTable).
		Where(squirrel.Eq{"id": businessID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b tenant.Business
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("business", businessID)
		}
		return nil, fmt.Errorf("get business: %w", err)
	}
	return &b, nil
}

// List returns all businesses, oldest first. Used by the reconciliation
// worker to walk every tenant.
func (r *BusinessRepo) List(ctx context.Context) ([]tenant.Business, error) {
	q := r.builder.Select(businessColumns...).
		From(businessesTable).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var businesses []tenant.Business
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &businesses, sql, args...); err != nil {
		return nil, fmt.Errorf("select businesses: %w", err)
	}
	return businesses, nil
}
