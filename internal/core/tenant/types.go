// Package tenant provides the business (tenant) boundary.
// Every operation of the financial core runs on behalf of exactly one
// business; resolution happens in the surrounding platform and the resolved
// business is injected into the request context.
package tenant

import (
	"time"

	"khata/internal/core/id"
)

// ValuationPolicy selects the inventory cost-flow assumption for a business.
type ValuationPolicy string

const (
	ValuationFIFO            ValuationPolicy = "FIFO"
	ValuationWeightedAverage ValuationPolicy = "WEIGHTED_AVERAGE"
)

// Valid reports whether p is a known policy.
func (p ValuationPolicy) Valid() bool {
	return p == ValuationFIFO || p == ValuationWeightedAverage
}

// Business holds per-business configuration the financial core depends on.
type Business struct {
	ID   id.ID  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`

	// Currency is the single booking currency of the business.
	Currency string `db:"currency" json:"currency"`

	// ValuationPolicy is the default cost-flow assumption.
	// Items may carry a per-item override.
	ValuationPolicy ValuationPolicy `db:"valuation_policy" json:"valuationPolicy"`

	// AllowNegativeStock permits overselling: qty-out beyond availability is
	// priced at the last known rate and the negative balance is flagged.
	// Default is false (oversell is rejected).
	AllowNegativeStock bool `db:"allow_negative_stock" json:"allowNegativeStock"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Defaults applied to a business missing explicit configuration.
func (b *Business) ApplyDefaults() {
	if b.ValuationPolicy == "" {
		b.ValuationPolicy = ValuationWeightedAverage
	}
	if b.Currency == "" {
		b.Currency = "INR"
	}
}
