// Package stock provides the stock valuation engine.
// It records every incoming stock movement and prices every outgoing one,
// running strictly inside the transaction poster's atomic unit so the cost
// stamped on each line is consistent with the stock ledger at the same instant.
package stock

import (
	"time"

	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/internal/core/types"
)

// Entry is one immutable row of the stock ledger.
// Exactly one of QtyIn/QtyOut is nonzero.
type Entry struct {
	LineID        id.ID `db:"line_id" json:"lineId"`
	BusinessID    id.ID `db:"business_id" json:"businessId"`
	TransactionID id.ID `db:"transaction_id" json:"transactionId"`
	ItemID        id.ID `db:"item_id" json:"itemId"`

	QtyIn  types.Quantity `db:"qty_in" json:"qtyIn"`
	QtyOut types.Quantity `db:"qty_out" json:"qtyOut"`

	// Rate is the per-unit cost of the movement in minor units.
	Rate types.MinorUnits `db:"rate" json:"rate"`

	// CostValue is the total valued cost of the movement. For qty-out it is
	// the amount recognized as COGS; CostValue may differ from Rate×Qty by a
	// rounding minor unit when partial lots are consumed.
	CostValue types.MinorUnits `db:"cost_value" json:"costValue"`

	// Period is the business date of the owning transaction.
	Period    time.Time `db:"period" json:"period"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SignedQty returns the movement quantity, negative for qty-out.
func (e *Entry) SignedQty() types.Quantity {
	if e.QtyOut > 0 {
		return e.QtyOut.Neg()
	}
	return e.QtyIn
}

// Lot is an open FIFO cost layer. Lots exist only for FIFO-valued items;
// consumed lots are deleted as their quantity reaches zero.
type Lot struct {
	ID           id.ID            `db:"id" json:"id"`
	BusinessID   id.ID            `db:"business_id" json:"businessId"`
	ItemID       id.ID            `db:"item_id" json:"itemId"`
	QtyRemaining types.Quantity   `db:"qty_remaining" json:"qtyRemaining"`
	UnitCost     types.MinorUnits `db:"unit_cost" json:"unitCost"`
	ReceivedAt   time.Time        `db:"received_at" json:"receivedAt"`
}

// Balance is the per-item valuation state: on-hand quantity, the running
// weighted average, and the last receipt rate used to price oversells.
type Balance struct {
	BusinessID id.ID `db:"business_id" json:"businessId"`
	ItemID     id.ID `db:"item_id" json:"itemId"`

	Qty     types.Quantity   `db:"qty" json:"qty"`
	AvgCost types.MinorUnits `db:"avg_cost" json:"avgCost"`

	// LastRate is the most recent receipt rate; used when overselling is
	// allowed and no stock remains to price from.
	LastRate types.MinorUnits `db:"last_rate" json:"lastRate"`

	// Negative flags a balance that went below zero under an explicit
	// allow-oversell policy.
	Negative bool `db:"negative" json:"negative"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Config is the effective valuation configuration for one movement,
// resolved by the poster from the business and item catalog.
type Config struct {
	Policy tenant.ValuationPolicy

	// AllowNegative permits qty-out beyond availability: the shortfall is
	// priced at the last known rate and the balance flagged negative.
	// When false (the default), oversell is rejected.
	AllowNegative bool
}
