package stock

import (
	"context"
	"fmt"
	"time"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/internal/core/types"
	"khata/pkg/logger"
)

// Service prices stock movements. Every method must run inside the posting
// transaction: balances and lots are fetched with row locks, so postings
// touching the same (business, item) serialize here.
type Service struct {
	repo Repository
}

// NewService creates a new stock valuation service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Receive records a qty-in movement (purchase, sale return) at the given
// unit cost and returns the created stock ledger entry.
func (s *Service) Receive(ctx context.Context, txnID, itemID id.ID, qty types.Quantity, unitCost types.MinorUnits, period time.Time, cfg Config) (Entry, error) {
	if !qty.IsPositive() {
		return Entry{}, apperror.NewValidation("receive quantity must be positive").
			WithDetail("item_id", itemID.String())
	}
	if unitCost.IsNegative() {
		return Entry{}, apperror.NewValidation("unit cost must not be negative").
			WithDetail("item_id", itemID.String())
	}

	costValue := types.MulQtyUnits(unitCost, qty)
	return s.receive(ctx, txnID, itemID, qty, unitCost, costValue, period, cfg)
}

// Issue records a qty-out movement (sale, purchase return, write-off),
// pricing it per the configured cost-flow policy. The returned entry carries
// the valued cost the poster stamps on the line and books as COGS.
func (s *Service) Issue(ctx context.Context, txnID, itemID id.ID, qty types.Quantity, period time.Time, cfg Config) (Entry, error) {
	if !qty.IsPositive() {
		return Entry{}, apperror.NewValidation("issue quantity must be positive").
			WithDetail("item_id", itemID.String())
	}
	return s.issue(ctx, txnID, itemID, qty, nil, period, cfg)
}

// Mirror re-plays the stock entries of a posted transaction with inverted
// direction, carrying the original cost values so the reversal restores both
// quantity and inventory value exactly. Used by reverseTransaction.
func (s *Service) Mirror(ctx context.Context, orig []Entry, reversalTxnID id.ID, period time.Time, cfg Config) ([]Entry, error) {
	mirrored := make([]Entry, 0, len(orig))
	for _, e := range orig {
		var m Entry
		var err error
		if e.QtyOut > 0 {
			// Restock at the original movement cost.
			m, err = s.receive(ctx, reversalTxnID, e.ItemID, e.QtyOut, e.Rate, e.CostValue, period, cfg)
		} else {
			cost := e.CostValue
			m, err = s.issue(ctx, reversalTxnID, e.ItemID, e.QtyIn, &cost, period, cfg)
		}
		if err != nil {
			return nil, err
		}
		mirrored = append(mirrored, m)
	}
	return mirrored, nil
}

// EntriesFor returns the stock entries a transaction produced.
func (s *Service) EntriesFor(ctx context.Context, txnID id.ID) ([]Entry, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetEntriesByTransaction(ctx, biz.ID, txnID)
}

// CurrentCost returns the rate a restock should use when the originating
// cost is unknown: the running average, falling back to the last rate.
func (s *Service) CurrentCost(ctx context.Context, itemID id.ID) (types.MinorUnits, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return 0, err
	}
	bal, err := s.repo.GetBalance(ctx, biz.ID, itemID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if !bal.AvgCost.IsZero() {
		return bal.AvgCost, nil
	}
	return bal.LastRate, nil
}

// Availability returns current on-hand quantity for an item.
func (s *Service) Availability(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return 0, err
	}
	bal, err := s.repo.GetBalance(ctx, biz.ID, itemID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return bal.Qty, nil
}

// receive applies a qty-in movement with an explicit total cost.
func (s *Service) receive(ctx context.Context, txnID, itemID id.ID, qty types.Quantity, unitCost, costValue types.MinorUnits, period time.Time, cfg Config) (Entry, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return Entry{}, err
	}

	bal, err := s.repo.GetBalanceForUpdate(ctx, biz.ID, itemID)
	if err != nil {
		return Entry{}, fmt.Errorf("lock balance: %w", err)
	}
	bal.BusinessID = biz.ID
	bal.ItemID = itemID

	if cfg.Policy == tenant.ValuationFIFO {
		if err := s.repo.InsertLot(ctx, Lot{
			ID:           id.New(),
			BusinessID:   biz.ID,
			ItemID:       itemID,
			QtyRemaining: qty,
			UnitCost:     unitCost,
			ReceivedAt:   time.Now().UTC(),
		}); err != nil {
			return Entry{}, fmt.Errorf("insert lot: %w", err)
		}
	}

	// Running average: newAvg = (oldQty·oldAvg + inValue) / (oldQty + inQty).
	// A receipt into zero or negative stock resets the average to the
	// incoming cost.
	oldQty := bal.Qty
	newQty := oldQty + qty
	if oldQty.IsPositive() && newQty.IsPositive() {
		oldValue := types.MulQtyUnits(bal.AvgCost, oldQty)
		bal.AvgCost = ratePerUnit(oldValue+costValue, newQty)
	} else {
		bal.AvgCost = unitCost
	}

	bal.Qty = newQty
	bal.LastRate = unitCost
	if !bal.Qty.IsNegative() {
		bal.Negative = false
	}
	bal.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpsertBalance(ctx, bal); err != nil {
		return Entry{}, fmt.Errorf("upsert balance: %w", err)
	}

	entry := Entry{
		LineID:        id.New(),
		BusinessID:    biz.ID,
		TransactionID: txnID,
		ItemID:        itemID,
		QtyIn:         qty,
		Rate:          unitCost,
		CostValue:     costValue,
		Period:        period,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.InsertEntries(ctx, []Entry{entry}); err != nil {
		return Entry{}, fmt.Errorf("insert stock entry: %w", err)
	}

	return entry, nil
}

// issue applies a qty-out movement. forcedCost overrides policy pricing
// (used by Mirror to carry original reversal values).
func (s *Service) issue(ctx context.Context, txnID, itemID id.ID, qty types.Quantity, forcedCost *types.MinorUnits, period time.Time, cfg Config) (Entry, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return Entry{}, err
	}

	bal, err := s.repo.GetBalanceForUpdate(ctx, biz.ID, itemID)
	if err != nil {
		return Entry{}, fmt.Errorf("lock balance: %w", err)
	}
	bal.BusinessID = biz.ID
	bal.ItemID = itemID

	available := bal.Qty
	if qty > available && !cfg.AllowNegative {
		return Entry{}, apperror.NewInsufficientStock(itemID.String(), qty.String(), available.String())
	}

	var cost types.MinorUnits
	switch {
	case forcedCost != nil:
		cost = *forcedCost
		if cfg.Policy == tenant.ValuationFIFO {
			if _, err := s.consumeLots(ctx, biz.ID, itemID, qty); err != nil {
				return Entry{}, err
			}
		}
	case cfg.Policy == tenant.ValuationFIFO:
		consumed, err := s.consumeLots(ctx, biz.ID, itemID, qty)
		if err != nil {
			return Entry{}, err
		}
		cost = consumed.cost
		if consumed.shortfall.IsPositive() {
			// Oversell: the uncovered remainder is priced at the last
			// known rate.
			rate := bal.LastRate
			if rate.IsZero() {
				rate = bal.AvgCost
			}
			cost += types.MulQtyUnits(rate, consumed.shortfall)
		}
	default:
		rate := bal.AvgCost
		if !available.IsPositive() || rate.IsZero() {
			rate = bal.LastRate
		}
		cost = types.MulQtyUnits(rate, qty)
	}

	bal.Qty -= qty
	if bal.Qty.IsNegative() {
		bal.Negative = true
		logger.Warn(ctx, "stock went negative under allow-oversell policy",
			"item_id", itemID,
			"qty", bal.Qty.String(),
		)
	}
	bal.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpsertBalance(ctx, bal); err != nil {
		return Entry{}, fmt.Errorf("upsert balance: %w", err)
	}

	entry := Entry{
		LineID:        id.New(),
		BusinessID:    biz.ID,
		TransactionID: txnID,
		ItemID:        itemID,
		QtyOut:        qty,
		Rate:          ratePerUnit(cost, qty),
		CostValue:     cost,
		Period:        period,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.InsertEntries(ctx, []Entry{entry}); err != nil {
		return Entry{}, fmt.Errorf("insert stock entry: %w", err)
	}

	return entry, nil
}

type lotConsumption struct {
	cost      types.MinorUnits
	shortfall types.Quantity
}

// consumeLots walks open lots oldest-first, supporting partial consumption.
// cost = Σ(consumedQty_i × lotRate_i); shortfall is what the lots could not
// cover (nonzero only under allow-oversell or forced reversal).
func (s *Service) consumeLots(ctx context.Context, businessID, itemID id.ID, qty types.Quantity) (lotConsumption, error) {
	lots, err := s.repo.GetLotsForUpdate(ctx, businessID, itemID)
	if err != nil {
		return lotConsumption{}, fmt.Errorf("lock lots: %w", err)
	}

	remaining := qty
	var cost types.MinorUnits
	for _, lot := range lots {
		if !remaining.IsPositive() {
			break
		}
		take := lot.QtyRemaining
		if take > remaining {
			take = remaining
		}
		cost += types.MulQtyUnits(lot.UnitCost, take)
		if err := s.repo.SetLotQty(ctx, lot.ID, lot.QtyRemaining-take); err != nil {
			return lotConsumption{}, fmt.Errorf("consume lot: %w", err)
		}
		remaining -= take
	}

	return lotConsumption{cost: cost, shortfall: remaining}, nil
}

// ratePerUnit derives a per-unit rate from a total cost, rounding half up.
func ratePerUnit(cost types.MinorUnits, qty types.Quantity) types.MinorUnits {
	if qty.IsZero() {
		return 0
	}
	prod := int64(cost) * types.QuantityScale
	q := int64(qty)
	half := q / 2
	if prod >= 0 {
		return types.MinorUnits((prod + half) / q)
	}
	return types.MinorUnits((prod - half) / q)
}
