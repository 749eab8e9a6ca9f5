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
	"khata/internal/domain/catalogs/item"
	"khata/internal/infrastructure/storage/postgres"
)

const itemsTable = "items"

var itemColumns = []string{
	"id", "version", "business_id", "name", "unit", "valuation_policy",
	"stock_qty", "updated_at",
}

// ItemRepo implements item.Repository.
type ItemRepo struct {
	builder squirrel.StatementBuilderType
}

var _ item.Repository = (*ItemRepo)(nil)

// NewItemRepo creates a new item repository.
func NewItemRepo() *ItemRepo {
	return &ItemRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ItemRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// GetByID retrieves an item within the business boundary.
func (r *ItemRepo) GetByID(ctx context.Context, businessID, itemID id.ID) (*item.Item, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"business_id": businessID, "id": itemID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var it item.Item
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &it, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("item", itemID)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

// SetStockCache updates the denormalized on-hand quantity.
func (r *ItemRepo) SetStockCache(ctx context.Context, businessID, itemID id.ID, qty types.Quantity) error {
	sql := `
		UPDATE items
		SET stock_qty = $3,
		    updated_at = $4
		WHERE business_id = $1 AND id = $2`

	querier := r.getTxManager(ctx).GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, businessID, itemID, qty, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set stock cache: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("item", itemID)
	}
	return nil
}
