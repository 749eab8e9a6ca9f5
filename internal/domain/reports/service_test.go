package reports

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
	"khata/internal/domain/ledger"
	"khata/internal/domain/posting"
)

type fakeROTxm struct{}

func (fakeROTxm) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (fakeROTxm) ReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	balances map[string][]LedgerBalance // keyed asOf/range, single fixture uses one set
	cash     CashTotals
	txn      *posting.Transaction
	items    []posting.TransactionItem
	txns     []posting.Transaction
	payments []posting.Payment
	stock    []StockRow
}

func (r *fakeRepo) BalancesAsOf(_ context.Context, _ id.ID, _ time.Time) ([]LedgerBalance, error) {
	return r.balances["asOf"], nil
}

func (r *fakeRepo) BalancesInRange(_ context.Context, _ id.ID, _, _ time.Time) ([]LedgerBalance, error) {
	return r.balances["range"], nil
}

func (r *fakeRepo) CashFlows(_ context.Context, _ id.ID, _, _ time.Time) (CashTotals, error) {
	return r.cash, nil
}

func (r *fakeRepo) Transaction(_ context.Context, _, txnID id.ID) (*posting.Transaction, error) {
	if r.txn == nil || r.txn.ID != txnID {
		return nil, apperror.NewNotFound("transaction", txnID)
	}
	return r.txn, nil
}

func (r *fakeRepo) TransactionItems(_ context.Context, _, _ id.ID) ([]posting.TransactionItem, error) {
	return r.items, nil
}

func (r *fakeRepo) TransactionsByDate(_ context.Context, _ id.ID, _ time.Time) ([]posting.Transaction, error) {
	return r.txns, nil
}

func (r *fakeRepo) PaymentsByDate(_ context.Context, _ id.ID, _ time.Time) ([]posting.Payment, error) {
	return r.payments, nil
}

func (r *fakeRepo) StockOnHand(_ context.Context, _ id.ID, _ time.Time) ([]StockRow, error) {
	return r.stock, nil
}

func testCtx() context.Context {
	return tenant.WithBusiness(context.Background(), &tenant.Business{
		ID:       id.New(),
		Name:     "Test Traders",
		Currency: "INR",
	})
}

func kindPtr(k ledger.SystemKind) *ledger.SystemKind { return &k }

func TestTrialBalanceSelfCheck(t *testing.T) {
	repo := &fakeRepo{balances: map[string][]LedgerBalance{
		"asOf": {
			{LedgerID: id.New(), Name: "Cash in Hand", Group: ledger.GroupAsset, Debit: 118000},
			{LedgerID: id.New(), Name: "Sales", Group: ledger.GroupIncome, Credit: 100000},
			{LedgerID: id.New(), Name: "Output Tax Payable", Group: ledger.GroupLiability, Credit: 18000},
		},
	}}
	svc := NewService(repo, fakeROTxm{})

	tb, err := svc.TrialBalance(testCtx(), time.Now())
	require.NoError(t, err)
	assert.True(t, tb.Balanced)
	assert.Equal(t, types.MinorUnits(118000), tb.DebitTotal)
	assert.Equal(t, tb.DebitTotal, tb.CreditTotal)
	assert.Len(t, tb.Rows, 3)
}

func TestTrialBalanceSurfacesImbalance(t *testing.T) {
	repo := &fakeRepo{balances: map[string][]LedgerBalance{
		"asOf": {
			{LedgerID: id.New(), Name: "Cash in Hand", Group: ledger.GroupAsset, Debit: 118000},
			{LedgerID: id.New(), Name: "Sales", Group: ledger.GroupIncome, Credit: 100000},
		},
	}}
	svc := NewService(repo, fakeROTxm{})

	tb, err := svc.TrialBalance(testCtx(), time.Now())
	require.NoError(t, err)
	assert.False(t, tb.Balanced, "imbalance is reported, never suppressed")
}

func TestProfitAndLossSeparatesCOGS(t *testing.T) {
	repo := &fakeRepo{balances: map[string][]LedgerBalance{
		"range": {
			{LedgerID: id.New(), Name: "Sales", Group: ledger.GroupIncome, Credit: 100000},
			{LedgerID: id.New(), Name: "Cost of Goods Sold", Group: ledger.GroupExpense,
				SystemKind: kindPtr(ledger.SystemCOGS), Debit: 60000},
			{LedgerID: id.New(), Name: "Rent", Group: ledger.GroupExpense, Debit: 15000},
		},
	}}
	svc := NewService(repo, fakeROTxm{})

	pl, err := svc.ProfitAndLoss(testCtx(), time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(100000), pl.Revenue)
	assert.Equal(t, types.MinorUnits(60000), pl.COGS)
	assert.Equal(t, types.MinorUnits(15000), pl.Expenses)
	assert.Equal(t, types.MinorUnits(25000), pl.NetProfit)
}

func TestBalanceSheetFoldsProfitIntoEquity(t *testing.T) {
	// Cash sale 1000 of goods costing 600 plus 500 opening capital.
	repo := &fakeRepo{balances: map[string][]LedgerBalance{
		"asOf": {
			{LedgerID: id.New(), Name: "Cash in Hand", Group: ledger.GroupAsset, Debit: 150000},
			{LedgerID: id.New(), Name: "Inventory", Group: ledger.GroupAsset, Debit: 60000, Credit: 60000},
			{LedgerID: id.New(), Name: "Opening Balance Equity", Group: ledger.GroupEquity, Credit: 50000},
			{LedgerID: id.New(), Name: "Sales", Group: ledger.GroupIncome, Credit: 100000},
			{LedgerID: id.New(), Name: "Cost of Goods Sold", Group: ledger.GroupExpense,
				SystemKind: kindPtr(ledger.SystemCOGS), Debit: 0},
		},
	}}
	svc := NewService(repo, fakeROTxm{})

	bs, err := svc.BalanceSheet(testCtx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(150000), bs.Assets.Total)
	assert.Equal(t, types.MinorUnits(100000), bs.RetainedProfit)
	assert.Equal(t, types.MinorUnits(150000), bs.Liabilities.Total+bs.Equity.Total)
	assert.True(t, bs.Balanced)
}

func TestCashFlowNet(t *testing.T) {
	repo := &fakeRepo{cash: CashTotals{Inflow: 118000, Outflow: 40000}}
	svc := NewService(repo, fakeROTxm{})

	cf, err := svc.CashFlow(testCtx(), time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(78000), cf.Net)
}

func TestBillProfitPerLine(t *testing.T) {
	txnID := id.New()
	repo := &fakeRepo{
		txn: &posting.Transaction{},
		items: []posting.TransactionItem{
			{ItemID: id.New(), Qty: types.NewQuantityFromInt(2), Rate: 100000, CostPrice: 60000},
			{ItemID: id.New(), Qty: types.NewQuantityFromInt(1), Rate: 50000, CostPrice: 55000},
		},
	}
	repo.txn.ID = txnID
	repo.txn.Number = "INV-0001"
	repo.txn.Type = posting.TypeSale
	svc := NewService(repo, fakeROTxm{})

	bp, err := svc.BillProfit(testCtx(), txnID)
	require.NoError(t, err)
	require.Len(t, bp.Lines, 2)
	assert.Equal(t, types.MinorUnits(80000), bp.Lines[0].Profit)
	assert.Equal(t, types.MinorUnits(-5000), bp.Lines[1].Profit, "loss-making lines stay negative")
	assert.Equal(t, types.MinorUnits(75000), bp.TotalProfit)
}

func TestBillProfitRejectsNonSale(t *testing.T) {
	txnID := id.New()
	repo := &fakeRepo{txn: &posting.Transaction{}}
	repo.txn.ID = txnID
	repo.txn.Number = "PUR-0001"
	repo.txn.Type = posting.TypePurchase
	svc := NewService(repo, fakeROTxm{})

	_, err := svc.BillProfit(testCtx(), txnID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestDayBookMergesChronologically(t *testing.T) {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	txn := posting.Transaction{}
	txn.ID = id.New()
	txn.Number = "INV-0001"
	txn.Type = posting.TypeSale
	txn.TotalAmount = 118000
	txn.CreatedAt = base.Add(2 * time.Hour)

	repo := &fakeRepo{
		txns: []posting.Transaction{txn},
		payments: []posting.Payment{
			{ID: id.New(), Direction: posting.DirectionIn, Amount: 50000, CreatedAt: base.Add(time.Hour)},
			{ID: id.New(), Direction: posting.DirectionOut, Amount: 20000, CreatedAt: base.Add(3 * time.Hour)},
		},
	}
	svc := NewService(repo, fakeROTxm{})

	db, err := svc.DayBook(testCtx(), base)
	require.NoError(t, err)
	require.Len(t, db.Lines, 3)
	assert.Equal(t, "PAYMENT", db.Lines[0].Kind)
	assert.Equal(t, "TRANSACTION", db.Lines[1].Kind)
	assert.Equal(t, "PAYMENT", db.Lines[2].Kind)
	assert.True(t, db.Lines[0].At.Before(db.Lines[1].At))
}

func TestStockSummaryTotals(t *testing.T) {
	repo := &fakeRepo{stock: []StockRow{
		{ItemID: id.New(), ItemName: "Widget", Qty: types.NewQuantityFromInt(5), Value: 300000},
		{ItemID: id.New(), ItemName: "Gadget", Qty: types.NewQuantityFromInt(2), Value: 80000},
	}}
	svc := NewService(repo, fakeROTxm{})

	ss, err := svc.StockSummary(testCtx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(380000), ss.TotalValue)
	assert.Len(t, ss.Rows, 2)
}
