package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/internal/infrastructure/storage/postgres"
)

// BusinessHeader is the HTTP header carrying the business id.
const BusinessHeader = "X-Business-ID"

// BusinessLoader resolves a business by id.
type BusinessLoader interface {
	GetByID(ctx context.Context, businessID id.ID) (*tenant.Business, error)
}

// BusinessContext middleware resolves the business from the header and
// injects the database pool, TxManager and business into the request
// context. Every financial endpoint requires it; requests without a valid
// business never reach a repository.
func BusinessContext(pool *postgres.Pool, txm *postgres.TxManager, businesses BusinessLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		raw := c.GetHeader(BusinessHeader)
		if raw == "" {
			_ = c.Error(
				apperror.NewValidation("business is required").
					WithDetail("header", BusinessHeader),
			)
			c.Abort()
			return
		}

		businessID, err := id.Parse(raw)
		if err != nil {
			_ = c.Error(
				apperror.NewValidation("invalid business id").
					WithDetail("header", BusinessHeader).
					WithDetail("value", raw),
			)
			c.Abort()
			return
		}

		// Pool and TxManager go in first so the loader can query.
		ctx = tenant.WithPool(ctx, pool.Unwrap())
		ctx = tenant.WithTxManager(ctx, txm)

		biz, err := businesses.GetByID(ctx, businessID)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		biz.ApplyDefaults()

		ctx = tenant.WithBusiness(ctx, biz)
		c.Request = c.Request.WithContext(ctx)

		c.Set("business_id", businessID.String())

		c.Next()
	}
}
