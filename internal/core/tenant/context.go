package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"khata/internal/core/id"
	"khata/internal/core/tx"
)

// Context keys for business-related values.
type ctxKey int

const (
	poolKey ctxKey = iota
	txManagerKey
	businessKey
)

// Errors for context operations.
var (
	ErrNoBusinessInContext = errors.New("business not found in context")
	ErrNoPoolInContext     = errors.New("database pool not found in context")
	ErrNoTxManager         = errors.New("transaction manager not found in context")
)

// --- Pool ---

// WithPool stores database pool in context.
func WithPool(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, poolKey, pool)
}

// GetPool retrieves database pool from context.
func GetPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, ok := ctx.Value(poolKey).(*pgxpool.Pool)
	if !ok || pool == nil {
		return nil, ErrNoPoolInContext
	}
	return pool, nil
}

// MustGetPool retrieves database pool or panics.
// Use in places where missing pool is a programming error.
func MustGetPool(ctx context.Context) *pgxpool.Pool {
	pool, err := GetPool(ctx)
	if err != nil {
		panic("database pool not in context: " + err.Error())
	}
	return pool
}

// --- TxManager ---

// WithTxManager stores TxManager in context.
func WithTxManager(ctx context.Context, txm tx.Manager) context.Context {
	return context.WithValue(ctx, txManagerKey, txm)
}

// GetTxManager retrieves TxManager from context.
func GetTxManager(ctx context.Context) (tx.Manager, error) {
	txm, ok := ctx.Value(txManagerKey).(tx.Manager)
	if !ok || txm == nil {
		return nil, ErrNoTxManager
	}
	return txm, nil
}

// MustGetTxManager retrieves TxManager or panics.
// Use in places where missing TxManager is a programming error.
func MustGetTxManager(ctx context.Context) tx.Manager {
	txm, err := GetTxManager(ctx)
	if err != nil {
		panic("TxManager not in context: " + err.Error())
	}
	return txm
}

// --- Business ---

// WithBusiness stores the resolved business in context.
func WithBusiness(ctx context.Context, b *Business) context.Context {
	return context.WithValue(ctx, businessKey, b)
}

// GetBusiness retrieves the business from context.
func GetBusiness(ctx context.Context) *Business {
	b, _ := ctx.Value(businessKey).(*Business)
	return b
}

// MustGetBusiness retrieves the business or fails.
// Posting and reporting refuse to run without a business boundary.
func MustGetBusiness(ctx context.Context) (*Business, error) {
	b := GetBusiness(ctx)
	if b == nil {
		return nil, ErrNoBusinessInContext
	}
	return b, nil
}

// GetBusinessID returns business ID or the nil UUID.
func GetBusinessID(ctx context.Context) id.ID {
	if b := GetBusiness(ctx); b != nil {
		return b.ID
	}
	return id.Nil()
}
