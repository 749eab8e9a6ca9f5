package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/internal/core/types"
)

type memRepo struct {
	balances map[id.ID]Balance
	lots     []Lot
	entries  []Entry
}

func newMemRepo() *memRepo {
	return &memRepo{balances: make(map[id.ID]Balance)}
}

func (r *memRepo) GetBalanceForUpdate(_ context.Context, _, itemID id.ID) (Balance, error) {
	return r.balances[itemID], nil
}

func (r *memRepo) UpsertBalance(_ context.Context, b Balance) error {
	r.balances[b.ItemID] = b
	return nil
}

func (r *memRepo) GetLotsForUpdate(_ context.Context, _, itemID id.ID) ([]Lot, error) {
	var open []Lot
	for _, lot := range r.lots {
		if lot.ItemID == itemID && lot.QtyRemaining.IsPositive() {
			open = append(open, lot)
		}
	}
	return open, nil
}

func (r *memRepo) InsertLot(_ context.Context, lot Lot) error {
	r.lots = append(r.lots, lot)
	return nil
}

func (r *memRepo) SetLotQty(_ context.Context, lotID id.ID, qty types.Quantity) error {
	for i := range r.lots {
		if r.lots[i].ID == lotID {
			r.lots[i].QtyRemaining = qty
			return nil
		}
	}
	return nil
}

func (r *memRepo) InsertEntries(_ context.Context, entries []Entry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *memRepo) GetEntriesByTransaction(_ context.Context, _, txnID id.ID) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.TransactionID == txnID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) GetBalance(_ context.Context, _, itemID id.ID) (Balance, error) {
	return r.balances[itemID], nil
}

func (r *memRepo) QtyAsOf(_ context.Context, _, itemID id.ID, asOf time.Time) (types.Quantity, error) {
	var qty types.Quantity
	for _, e := range r.entries {
		if e.ItemID == itemID && !e.Period.After(asOf) {
			qty += e.SignedQty()
		}
	}
	return qty, nil
}

func testContext(policy tenant.ValuationPolicy, allowNegative bool) context.Context {
	return tenant.WithBusiness(context.Background(), &tenant.Business{
		ID:                 id.New(),
		Name:               "Test Traders",
		Currency:           "INR",
		ValuationPolicy:    policy,
		AllowNegativeStock: allowNegative,
	})
}

func TestIssueFIFOConsumesOldestLotsFirst(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := testContext(tenant.ValuationFIFO, false)
	cfg := Config{Policy: tenant.ValuationFIFO}
	itemID := id.New()
	now := time.Now().UTC()

	_, err := svc.Receive(ctx, id.New(), itemID, types.NewQuantityFromInt(10), 1000, now, cfg)
	require.NoError(t, err)
	_, err = svc.Receive(ctx, id.New(), itemID, types.NewQuantityFromInt(10), 1200, now, cfg)
	require.NoError(t, err)

	// 15 units out: 10 from the 10.00 lot, 5 from the 12.00 lot.
	entry, err := svc.Issue(ctx, id.New(), itemID, types.NewQuantityFromInt(15), now, cfg)
	require.NoError(t, err)

	assert.Equal(t, types.MinorUnits(16000), entry.CostValue)
	assert.Equal(t, types.NewQuantityFromInt(15), entry.QtyOut)

	open, err := repo.GetLotsForUpdate(ctx, id.ID{}, itemID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, types.NewQuantityFromInt(5), open[0].QtyRemaining)
	assert.Equal(t, types.MinorUnits(1200), open[0].UnitCost)

	bal, err := repo.GetBalance(ctx, id.ID{}, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(5), bal.Qty)
	assert.False(t, bal.Negative)
}

func TestIssuePartialLotConsumption(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := testContext(tenant.ValuationFIFO, false)
	cfg := Config{Policy: tenant.ValuationFIFO}
	itemID := id.New()
	now := time.Now().UTC()

	_, err := svc.Receive(ctx, id.New(), itemID, types.NewQuantityFromInt(10), 1000, now, cfg)
	require.NoError(t, err)

	entry, err := svc.Issue(ctx, id.New(), itemID, types.NewQuantityFromInt(3), now, cfg)
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(3000), entry.CostValue)

	entry, err = svc.Issue(ctx, id.New(), itemID, types.NewQuantityFromInt(7), now, cfg)
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(7000), entry.CostValue)

	open, err := repo.GetLotsForUpdate(ctx, id.ID{}, itemID)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestWeightedAverageRecompute(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := testContext(tenant.ValuationWeightedAverage, false)
	cfg := Config{Policy: tenant.ValuationWeightedAverage}
	itemID := id.New()
	now := time.Now().UTC()

	_, err := svc.Receive(ctx, id.New(), itemID, types.NewQuantityFromInt(10), 1000, now, cfg)
	require.NoError(t, err)
	_, err = svc.Receive(ctx, id.New(), itemID, types.NewQuantityFromInt(10), 1200, now, cfg)
	require.NoError(t, err)

	bal, err := repo.GetBalance(ctx, id.ID{}, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(1100), bal.AvgCost)
	assert.Equal(t, types.MinorUnits(1200), bal.LastRate)

	// Issues price at the running average and leave it unchanged.
	entry, err := svc.Issue(ctx, id.New(), itemID, types.NewQuantityFromInt(5), now, cfg)
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(5500), entry.CostValue)

	bal, err = repo.GetBalance(ctx, id.ID{}, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(1100), bal.AvgCost)
	assert.Equal(t, types.NewQuantityFromInt(15), bal.Qty)
}

func TestReceiveIntoEmptyStockResetsAverage(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := testContext(tenant.ValuationWeightedAverage, false)
	cfg := Config{Policy: tenant.ValuationWeightedAverage}
	itemID := id.New()
	now := time.Now().UTC()

	_, err := svc.Receive(ctx, id.New(), itemID, types.NewQuantityFromInt(4), 1000, now, cfg)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, id.New(), itemID, types.NewQuantityFromInt(4), now, cfg)
	require.NoError(t, err)

	_, err = svc.Receive(ctx, id.New(), itemID, types.NewQuantityFromInt(2), 2500, now, cfg)
	require.NoError(t, err)

	bal, err := repo.GetBalance(ctx, id.ID{}, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(2500), bal.AvgCost)
}

func TestIssueBlockedWhenInsufficientStock(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := testContext(tenant.ValuationWeightedAverage, false)
	cfg := Config{Policy: tenant.ValuationWeightedAverage}
	itemID := id.New()
	now := time.Now().UTC()

	_, err := svc.Receive(ctx, id.New(), itemID, types.NewQuantityFromInt(3), 1000, now, cfg)
	require.NoError(t, err)

	entriesBefore := len(repo.entries)
	_, err = svc.Issue(ctx, id.New(), itemID, types.NewQuantityFromInt(5), now, cfg)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// The rejected issue must leave no trace.
	assert.Len(t, repo.entries, entriesBefore)
	bal, err := repo.GetBalance(ctx, id.ID{}, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(3), bal.Qty)
}

func TestIssueOversellAllowedPricesAtLastRate(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := testContext(tenant.ValuationFIFO, true)
	cfg := Config{Policy: tenant.ValuationFIFO, AllowNegative: true}
	itemID := id.New()
	now := time.Now().UTC()

	_, err := svc.Receive(ctx, id.New(), itemID, types.NewQuantityFromInt(3), 1000, now, cfg)
	require.NoError(t, err)

	// 3 covered by the lot at 10.00, 2 uncovered priced at the last rate.
	entry, err := svc.Issue(ctx, id.New(), itemID, types.NewQuantityFromInt(5), now, cfg)
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(5000), entry.CostValue)

	bal, err := repo.GetBalance(ctx, id.ID{}, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(-2), bal.Qty)
	assert.True(t, bal.Negative)
}

func TestMirrorRestoresQuantityAndValue(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := testContext(tenant.ValuationFIFO, false)
	cfg := Config{Policy: tenant.ValuationFIFO}
	itemID := id.New()
	now := time.Now().UTC()
	saleID := id.New()

	_, err := svc.Receive(ctx, id.New(), itemID, types.NewQuantityFromInt(10), 1000, now, cfg)
	require.NoError(t, err)
	issued, err := svc.Issue(ctx, saleID, itemID, types.NewQuantityFromInt(6), now, cfg)
	require.NoError(t, err)

	mirrored, err := svc.Mirror(ctx, []Entry{issued}, id.New(), now, cfg)
	require.NoError(t, err)
	require.Len(t, mirrored, 1)

	assert.Equal(t, issued.QtyOut, mirrored[0].QtyIn)
	assert.Equal(t, issued.CostValue, mirrored[0].CostValue)

	bal, err := repo.GetBalance(ctx, id.ID{}, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(10), bal.Qty)
}

func TestAvailability(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := testContext(tenant.ValuationWeightedAverage, false)
	cfg := Config{Policy: tenant.ValuationWeightedAverage}
	itemID := id.New()
	now := time.Now().UTC()

	_, err := svc.Receive(ctx, id.New(), itemID, types.NewQuantityFromInt(8), 500, now, cfg)
	require.NoError(t, err)

	qty, err := svc.Availability(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(8), qty)
}
