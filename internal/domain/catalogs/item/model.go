// Package item provides the item read model.
// Items are managed by the external catalog; the financial core consumes the
// valuation policy and unit, and maintains the stock-quantity cache.
package item

import (
	"time"

	"khata/internal/core/entity"
	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/internal/core/types"
)

// Item is a stockable product or service.
type Item struct {
	entity.Base

	BusinessID id.ID  `db:"business_id" json:"businessId"`
	Name       string `db:"name" json:"name"`
	Unit       string `db:"unit" json:"unit"`

	// ValuationPolicy overrides the business default when set.
	ValuationPolicy *tenant.ValuationPolicy `db:"valuation_policy" json:"valuationPolicy,omitempty"`

	// StockQty is a derived cache of on-hand quantity for UI responsiveness.
	// The stock register is the source of truth; the worker reconciles drift.
	StockQty types.Quantity `db:"stock_qty" json:"stockQty"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// EffectivePolicy resolves the cost-flow assumption for this item.
func (i *Item) EffectivePolicy(biz *tenant.Business) tenant.ValuationPolicy {
	if i.ValuationPolicy != nil && i.ValuationPolicy.Valid() {
		return *i.ValuationPolicy
	}
	if biz != nil && biz.ValuationPolicy.Valid() {
		return biz.ValuationPolicy
	}
	return tenant.ValuationWeightedAverage
}
