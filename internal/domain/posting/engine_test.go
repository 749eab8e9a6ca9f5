package posting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khata/internal/core/apperror"
	"khata/internal/core/entity"
	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/internal/core/types"
	"khata/internal/domain/catalogs/item"
	"khata/internal/domain/catalogs/party"
	"khata/internal/domain/ledger"
	"khata/internal/domain/stock"
)

// --- fakes ---

type fakeTxm struct{}

func (fakeTxm) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeNumbers struct{ n int }

func (f *fakeNumbers) Next(_ context.Context, prefix string) (string, error) {
	f.n++
	return fmt.Sprintf("%s-%04d", prefix, f.n), nil
}

type memLedgerRepo struct {
	ledgers []*ledger.Ledger
}

func (r *memLedgerRepo) Create(_ context.Context, l *ledger.Ledger) error {
	r.ledgers = append(r.ledgers, l)
	return nil
}

func (r *memLedgerRepo) GetByID(_ context.Context, _, ledgerID id.ID) (*ledger.Ledger, error) {
	for _, l := range r.ledgers {
		if l.ID == ledgerID {
			return l, nil
		}
	}
	return nil, apperror.NewNotFound("ledger", ledgerID)
}

func (r *memLedgerRepo) GetBySystemKind(_ context.Context, _ id.ID, kind ledger.SystemKind) (*ledger.Ledger, error) {
	for _, l := range r.ledgers {
		if l.SystemKind != nil && *l.SystemKind == kind {
			return l, nil
		}
	}
	return nil, nil
}

func (r *memLedgerRepo) List(_ context.Context, _ id.ID) ([]ledger.Ledger, error) {
	out := make([]ledger.Ledger, 0, len(r.ledgers))
	for _, l := range r.ledgers {
		out = append(out, *l)
	}
	return out, nil
}

type memPostingRepo struct {
	txns     map[id.ID]*Transaction
	items    []TransactionItem
	entries  []LedgerEntry
	payments []Payment
}

func newMemPostingRepo() *memPostingRepo {
	return &memPostingRepo{txns: make(map[id.ID]*Transaction)}
}

func (r *memPostingRepo) InsertTransaction(_ context.Context, t *Transaction) error {
	cp := *t
	r.txns[t.ID] = &cp
	return nil
}

func (r *memPostingRepo) InsertItems(_ context.Context, items []TransactionItem) error {
	r.items = append(r.items, items...)
	return nil
}

func (r *memPostingRepo) InsertEntries(_ context.Context, entries []LedgerEntry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *memPostingRepo) InsertPayment(_ context.Context, p *Payment) error {
	r.payments = append(r.payments, *p)
	return nil
}

func (r *memPostingRepo) GetTransaction(_ context.Context, _, txnID id.ID) (*Transaction, error) {
	t, ok := r.txns[txnID]
	if !ok {
		return nil, apperror.NewNotFound("transaction", txnID)
	}
	cp := *t
	return &cp, nil
}

func (r *memPostingRepo) GetTransactionForUpdate(ctx context.Context, businessID, txnID id.ID) (*Transaction, error) {
	return r.GetTransaction(ctx, businessID, txnID)
}

func (r *memPostingRepo) GetItems(_ context.Context, _, txnID id.ID) ([]TransactionItem, error) {
	var out []TransactionItem
	for _, it := range r.items {
		if it.TransactionID == txnID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memPostingRepo) GetEntries(_ context.Context, _, txnID id.ID) ([]LedgerEntry, error) {
	var out []LedgerEntry
	for _, e := range r.entries {
		if e.TransactionID == txnID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memPostingRepo) GetPaymentsBySource(_ context.Context, _, sourceTxnID id.ID) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.SourceTxnID == sourceTxnID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPostingRepo) HasReversal(_ context.Context, _, txnID id.ID) (bool, error) {
	for _, t := range r.txns {
		if t.ReversalOf != nil && *t.ReversalOf == txnID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPostingRepo) UpdateSettlement(_ context.Context, _, txnID id.ID, balance types.MinorUnits, status PaymentStatus) error {
	t, ok := r.txns[txnID]
	if !ok {
		return apperror.NewNotFound("transaction", txnID)
	}
	t.BalanceAmount = balance
	t.PaymentStatus = status
	return nil
}

func (r *memPostingRepo) ListByDate(_ context.Context, _ id.ID, day time.Time) ([]Transaction, error) {
	var out []Transaction
	for _, t := range r.txns {
		if t.Date.Truncate(24 * time.Hour).Equal(day.Truncate(24 * time.Hour)) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memPostingRepo) ListPaymentsByDate(_ context.Context, _ id.ID, day time.Time) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.Date.Truncate(24 * time.Hour).Equal(day.Truncate(24 * time.Hour)) {
			out = append(out, p)
		}
	}
	return out, nil
}

type memPartyRepo struct {
	parties map[id.ID]*party.Party
}

func (r *memPartyRepo) GetByID(_ context.Context, _, partyID id.ID) (*party.Party, error) {
	p, ok := r.parties[partyID]
	if !ok {
		return nil, apperror.NewNotFound("party", partyID)
	}
	return p, nil
}

func (r *memPartyRepo) GetForUpdate(ctx context.Context, businessID, partyID id.ID) (*party.Party, error) {
	return r.GetByID(ctx, businessID, partyID)
}

func (r *memPartyRepo) AdjustRunningBalance(_ context.Context, _, partyID id.ID, delta types.MinorUnits) error {
	r.parties[partyID].RunningBalance += delta
	return nil
}

type memItemRepo struct {
	items map[id.ID]*item.Item
}

func (r *memItemRepo) GetByID(_ context.Context, _, itemID id.ID) (*item.Item, error) {
	it, ok := r.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("item", itemID)
	}
	return it, nil
}

func (r *memItemRepo) SetStockCache(_ context.Context, _, itemID id.ID, qty types.Quantity) error {
	r.items[itemID].StockQty = qty
	return nil
}

type memStockRepo struct {
	balances map[id.ID]stock.Balance
	lots     []stock.Lot
	entries  []stock.Entry
}

func newMemStockRepo() *memStockRepo {
	return &memStockRepo{balances: make(map[id.ID]stock.Balance)}
}

func (r *memStockRepo) GetBalanceForUpdate(_ context.Context, _, itemID id.ID) (stock.Balance, error) {
	return r.balances[itemID], nil
}

func (r *memStockRepo) UpsertBalance(_ context.Context, b stock.Balance) error {
	r.balances[b.ItemID] = b
	return nil
}

func (r *memStockRepo) GetLotsForUpdate(_ context.Context, _, itemID id.ID) ([]stock.Lot, error) {
	var open []stock.Lot
	for _, lot := range r.lots {
		if lot.ItemID == itemID && lot.QtyRemaining.IsPositive() {
			open = append(open, lot)
		}
	}
	return open, nil
}

func (r *memStockRepo) InsertLot(_ context.Context, lot stock.Lot) error {
	r.lots = append(r.lots, lot)
	return nil
}

func (r *memStockRepo) SetLotQty(_ context.Context, lotID id.ID, qty types.Quantity) error {
	for i := range r.lots {
		if r.lots[i].ID == lotID {
			r.lots[i].QtyRemaining = qty
		}
	}
	return nil
}

func (r *memStockRepo) InsertEntries(_ context.Context, entries []stock.Entry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *memStockRepo) GetEntriesByTransaction(_ context.Context, _, txnID id.ID) ([]stock.Entry, error) {
	var out []stock.Entry
	for _, e := range r.entries {
		if e.TransactionID == txnID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memStockRepo) GetBalance(_ context.Context, _, itemID id.ID) (stock.Balance, error) {
	return r.balances[itemID], nil
}

func (r *memStockRepo) QtyAsOf(_ context.Context, _, itemID id.ID, asOf time.Time) (types.Quantity, error) {
	var qty types.Quantity
	for _, e := range r.entries {
		if e.ItemID == itemID && !e.Period.After(asOf) {
			qty += e.SignedQty()
		}
	}
	return qty, nil
}

// --- fixture ---

type fixture struct {
	ctx       context.Context
	biz       *tenant.Business
	engine    *Engine
	repo      *memPostingRepo
	ledgers   *memLedgerRepo
	parties   *memPartyRepo
	items     *memItemRepo
	stockRepo *memStockRepo
	stock     *stock.Service

	customer *party.Party
	widget   *item.Item
}

func newFixture(t *testing.T, policy tenant.ValuationPolicy, allowNegative bool) *fixture {
	t.Helper()

	biz := &tenant.Business{
		ID:                 id.New(),
		Name:               "Test Traders",
		Currency:           "INR",
		ValuationPolicy:    policy,
		AllowNegativeStock: allowNegative,
	}
	ctx := tenant.WithBusiness(context.Background(), biz)

	ledgerRepo := &memLedgerRepo{}
	ledgerSvc := ledger.NewService(ledgerRepo)
	require.NoError(t, ledgerSvc.EnsureSystemLedgers(ctx, biz.ID))

	recv := ledger.NewLedger(biz.ID, "Acme Receivable", ledger.GroupAsset, "Receivables")
	require.NoError(t, ledgerRepo.Create(ctx, recv))

	customer := &party.Party{
		Base:       entity.NewBase(),
		BusinessID: biz.ID,
		Name:       "Acme Stores",
		Type:       party.TypeCustomer,
		LedgerID:   recv.ID,
	}
	widget := &item.Item{
		Base:       entity.NewBase(),
		BusinessID: biz.ID,
		Name:       "Widget",
		Unit:       "pcs",
	}

	repo := newMemPostingRepo()
	stockRepo := newMemStockRepo()
	stockSvc := stock.NewService(stockRepo)

	f := &fixture{
		ctx:       ctx,
		biz:       biz,
		repo:      repo,
		ledgers:   ledgerRepo,
		parties:   &memPartyRepo{parties: map[id.ID]*party.Party{customer.ID: customer}},
		items:     &memItemRepo{items: map[id.ID]*item.Item{widget.ID: widget}},
		stockRepo: stockRepo,
		stock:     stockSvc,
		customer:  customer,
		widget:    widget,
	}
	f.engine = NewEngine(repo, ledgerSvc, f.parties, f.items, stockSvc, &fakeNumbers{}, fakeTxm{}, nil)
	return f
}

func (f *fixture) systemLedgerID(t *testing.T, kind ledger.SystemKind) id.ID {
	t.Helper()
	l, err := f.ledgers.GetBySystemKind(f.ctx, f.biz.ID, kind)
	require.NoError(t, err)
	require.NotNil(t, l)
	return l.ID
}

func (f *fixture) seedStock(t *testing.T, qty int64, unitCost types.MinorUnits) {
	t.Helper()
	cfg := stock.Config{Policy: f.biz.ValuationPolicy, AllowNegative: f.biz.AllowNegativeStock}
	_, err := f.stock.Receive(f.ctx, id.New(), f.widget.ID, types.NewQuantityFromInt(qty), unitCost, time.Now().UTC(), cfg)
	require.NoError(t, err)
}

func entryAmounts(entries []LedgerEntry, ledgerID id.ID) (debit, credit types.MinorUnits) {
	for _, e := range entries {
		if e.LedgerID == ledgerID {
			debit += e.Debit
			credit += e.Credit
		}
	}
	return debit, credit
}

// --- tests ---

// Credit sale of 1 unit @ 1000.00 + 180.00 tax with cost 600.00.
func TestPostCreditSaleDerivesBalancedEntries(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 1, 60000)

	partyID := f.customer.ID
	posted, err := f.engine.Post(f.ctx, &Request{
		Type:    TypeSale,
		Date:    time.Now().UTC(),
		PartyID: &partyID,
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(1), Rate: 100000, GSTAmount: 18000},
		},
		SubTotal:    100000,
		TaxAmount:   18000,
		TotalAmount: 118000,
	})
	require.NoError(t, err)

	d, _ := entryAmounts(posted.Entries, f.customer.LedgerID)
	assert.Equal(t, types.MinorUnits(118000), d)
	_, c := entryAmounts(posted.Entries, f.systemLedgerID(t, ledger.SystemSales))
	assert.Equal(t, types.MinorUnits(100000), c)
	_, c = entryAmounts(posted.Entries, f.systemLedgerID(t, ledger.SystemOutputTax))
	assert.Equal(t, types.MinorUnits(18000), c)
	d, _ = entryAmounts(posted.Entries, f.systemLedgerID(t, ledger.SystemCOGS))
	assert.Equal(t, types.MinorUnits(60000), d)
	_, c = entryAmounts(posted.Entries, f.systemLedgerID(t, ledger.SystemInventory))
	assert.Equal(t, types.MinorUnits(60000), c)

	var debits, credits types.MinorUnits
	for _, e := range posted.Entries {
		debits += e.Debit
		credits += e.Credit
	}
	assert.Equal(t, types.MinorUnits(178000), debits)
	assert.Equal(t, debits, credits)

	assert.Equal(t, PaymentUnpaid, posted.Transaction.PaymentStatus)
	assert.Equal(t, types.MinorUnits(118000), posted.Transaction.BalanceAmount)
	assert.Equal(t, types.MinorUnits(118000), f.customer.RunningBalance)
	assert.Equal(t, types.Quantity(0), f.items.items[f.widget.ID].StockQty)
}

// Payment against the receivable settles the bill and nets the party to zero.
func TestPaymentInSettlesOpenSale(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 1, 60000)

	partyID := f.customer.ID
	sale, err := f.engine.Post(f.ctx, &Request{
		Type:    TypeSale,
		Date:    time.Now().UTC(),
		PartyID: &partyID,
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(1), Rate: 100000, GSTAmount: 18000},
		},
		SubTotal:    100000,
		TaxAmount:   18000,
		TotalAmount: 118000,
	})
	require.NoError(t, err)

	saleID := sale.Transaction.ID
	payment, err := f.engine.Post(f.ctx, &Request{
		Type:         TypePaymentIn,
		Date:         time.Now().UTC(),
		PartyID:      &partyID,
		TotalAmount:  118000,
		AgainstTxnID: &saleID,
	})
	require.NoError(t, err)

	d, _ := entryAmounts(payment.Entries, f.systemLedgerID(t, ledger.SystemCash))
	assert.Equal(t, types.MinorUnits(118000), d)
	_, c := entryAmounts(payment.Entries, f.customer.LedgerID)
	assert.Equal(t, types.MinorUnits(118000), c)

	assert.Equal(t, types.MinorUnits(0), f.customer.RunningBalance)

	settled, err := f.repo.GetTransaction(f.ctx, f.biz.ID, saleID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, settled.PaymentStatus)
	assert.True(t, settled.BalanceAmount.IsZero())
	require.Len(t, f.repo.payments, 1)
	assert.Equal(t, DirectionIn, f.repo.payments[0].Direction)
}

// Selling 5 when stock is 3 under the blocking policy writes nothing.
func TestOversellBlockedWritesNoRows(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 3, 60000)

	partyID := f.customer.ID
	_, err := f.engine.Post(f.ctx, &Request{
		Type:    TypeSale,
		Date:    time.Now().UTC(),
		PartyID: &partyID,
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(5), Rate: 100000, GSTAmount: 0},
		},
		SubTotal:    500000,
		TaxAmount:   0,
		TotalAmount: 500000,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	assert.Empty(t, f.repo.txns)
	assert.Empty(t, f.repo.entries)
	assert.Equal(t, types.MinorUnits(0), f.customer.RunningBalance)
}

func TestCashSaleSettlesAtPosting(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 2, 60000)

	posted, err := f.engine.Post(f.ctx, &Request{
		Type: TypeSale,
		Date: time.Now().UTC(),
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(1), Rate: 100000, GSTAmount: 18000},
		},
		SubTotal:    100000,
		TaxAmount:   18000,
		TotalAmount: 118000,
	})
	require.NoError(t, err)

	assert.Equal(t, PaymentPaid, posted.Transaction.PaymentStatus)
	assert.True(t, posted.Transaction.BalanceAmount.IsZero())

	d, _ := entryAmounts(posted.Entries, f.systemLedgerID(t, ledger.SystemCash))
	assert.Equal(t, types.MinorUnits(118000), d)
	require.Len(t, f.repo.payments, 1)
	assert.Equal(t, DirectionIn, f.repo.payments[0].Direction)
}

func TestPurchaseBuildsInventoryAndInputTax(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)

	posted, err := f.engine.Post(f.ctx, &Request{
		Type: TypePurchase,
		Date: time.Now().UTC(),
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(10), Rate: 1000, GSTAmount: 1800},
		},
		SubTotal:    10000,
		TaxAmount:   1800,
		TotalAmount: 11800,
	})
	require.NoError(t, err)

	d, _ := entryAmounts(posted.Entries, f.systemLedgerID(t, ledger.SystemInventory))
	assert.Equal(t, types.MinorUnits(10000), d)
	d, _ = entryAmounts(posted.Entries, f.systemLedgerID(t, ledger.SystemInputTax))
	assert.Equal(t, types.MinorUnits(1800), d)
	_, c := entryAmounts(posted.Entries, f.systemLedgerID(t, ledger.SystemCash))
	assert.Equal(t, types.MinorUnits(11800), c)

	assert.Equal(t, types.NewQuantityFromInt(10), f.items.items[f.widget.ID].StockQty)
}

func TestReverseMirrorsEntriesAndRestoresState(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 4, 60000)

	partyID := f.customer.ID
	sale, err := f.engine.Post(f.ctx, &Request{
		Type:    TypeSale,
		Date:    time.Now().UTC(),
		PartyID: &partyID,
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(2), Rate: 100000, GSTAmount: 36000},
		},
		SubTotal:    200000,
		TaxAmount:   36000,
		TotalAmount: 236000,
	})
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(236000), f.customer.RunningBalance)

	rev, err := f.engine.Reverse(f.ctx, sale.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, TypeReversal, rev.Transaction.Type)
	require.NotNil(t, rev.Transaction.ReversalOf)
	assert.Equal(t, sale.Transaction.ID, *rev.Transaction.ReversalOf)

	// Mirrored row for row: debits and credits swapped.
	assert.Len(t, rev.Entries, len(sale.Entries))
	_, c := entryAmounts(rev.Entries, f.customer.LedgerID)
	assert.Equal(t, types.MinorUnits(236000), c)

	assert.Equal(t, types.MinorUnits(0), f.customer.RunningBalance)
	assert.Equal(t, types.NewQuantityFromInt(4), f.items.items[f.widget.ID].StockQty)

	settled, err := f.repo.GetTransaction(f.ctx, f.biz.ID, sale.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, settled.BalanceAmount.IsZero())
}

func TestReverseTwiceRejected(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 1, 60000)

	sale, err := f.engine.Post(f.ctx, &Request{
		Type: TypeSale,
		Date: time.Now().UTC(),
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(1), Rate: 100000, GSTAmount: 0},
		},
		SubTotal:    100000,
		TaxAmount:   0,
		TotalAmount: 100000,
	})
	require.NoError(t, err)

	_, err = f.engine.Reverse(f.ctx, sale.Transaction.ID)
	require.NoError(t, err)

	_, err = f.engine.Reverse(f.ctx, sale.Transaction.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAlreadyReversed, appErr.Code)
}

// Reversing a reversal restores the original transaction's effect.
func TestReverseOfReversalRestoresEffect(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 2, 60000)

	partyID := f.customer.ID
	sale, err := f.engine.Post(f.ctx, &Request{
		Type:    TypeSale,
		Date:    time.Now().UTC(),
		PartyID: &partyID,
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(1), Rate: 100000, GSTAmount: 18000},
		},
		SubTotal:    100000,
		TaxAmount:   18000,
		TotalAmount: 118000,
	})
	require.NoError(t, err)

	rev, err := f.engine.Reverse(f.ctx, sale.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(0), f.customer.RunningBalance)

	_, err = f.engine.Reverse(f.ctx, rev.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(118000), f.customer.RunningBalance)
	assert.Equal(t, types.NewQuantityFromInt(1), f.items.items[f.widget.ID].StockQty)
}

func TestJournalImbalanceRejected(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	cashID := f.systemLedgerID(t, ledger.SystemCash)
	salesID := f.systemLedgerID(t, ledger.SystemSales)

	_, err := f.engine.Post(f.ctx, &Request{
		Type: TypeJournal,
		Date: time.Now().UTC(),
		JournalLines: []JournalLineRequest{
			{LedgerID: cashID, Debit: 10000},
			{LedgerID: salesID, Credit: 9000},
		},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeImbalancedPosting, appErr.Code)
	assert.Empty(t, f.repo.txns)
}

func TestValidationRejectsTotalsMismatch(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)

	_, err := f.engine.Post(f.ctx, &Request{
		Type: TypeSale,
		Date: time.Now().UTC(),
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(1), Rate: 100000, GSTAmount: 18000},
		},
		SubTotal:    100000,
		TaxAmount:   18000,
		TotalAmount: 120000,
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

// SALE followed by an identical-lines SALE_RETURN restores stock quantity
// and party balance to pre-sale values.
func TestSaleThenIdenticalReturnRestoresState(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 5, 60000)

	partyID := f.customer.ID
	costPrice := types.MinorUnits(60000)
	_, err := f.engine.Post(f.ctx, &Request{
		Type:    TypeSale,
		Date:    time.Now().UTC(),
		PartyID: &partyID,
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(2), Rate: 100000, GSTAmount: 36000},
		},
		SubTotal:    200000,
		TaxAmount:   36000,
		TotalAmount: 236000,
	})
	require.NoError(t, err)

	_, err = f.engine.Post(f.ctx, &Request{
		Type:    TypeSaleReturn,
		Date:    time.Now().UTC(),
		PartyID: &partyID,
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(2), Rate: 100000, GSTAmount: 36000, CostPrice: &costPrice},
		},
		SubTotal:    200000,
		TaxAmount:   36000,
		TotalAmount: 236000,
	})
	require.NoError(t, err)

	assert.Equal(t, types.MinorUnits(0), f.customer.RunningBalance)
	assert.Equal(t, types.NewQuantityFromInt(5), f.items.items[f.widget.ID].StockQty)

	bal, err := f.stockRepo.GetBalance(f.ctx, f.biz.ID, f.widget.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MinorUnits(60000), bal.AvgCost)
}

// Payments carry no document lines, so the header amounts are derived:
// subTotal equals the total and the tax is zero.
func TestPaymentHeaderAmountsDerived(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 1, 60000)

	partyID := f.customer.ID
	sale, err := f.engine.Post(f.ctx, &Request{
		Type:    TypeSale,
		Date:    time.Now().UTC(),
		PartyID: &partyID,
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(1), Rate: 100000, GSTAmount: 18000},
		},
		SubTotal:    100000,
		TaxAmount:   18000,
		TotalAmount: 118000,
	})
	require.NoError(t, err)

	saleID := sale.Transaction.ID
	payment, err := f.engine.Post(f.ctx, &Request{
		Type:         TypePaymentIn,
		Date:         time.Now().UTC(),
		PartyID:      &partyID,
		TotalAmount:  118000,
		AgainstTxnID: &saleID,
	})
	require.NoError(t, err)

	txn := payment.Transaction
	assert.Equal(t, types.MinorUnits(118000), txn.SubTotal)
	assert.True(t, txn.TaxAmount.IsZero())
	assert.Equal(t, txn.TotalAmount, txn.SubTotal+txn.TaxAmount)
}

// A journal's headline total is its debit total, not whatever the caller sent.
func TestJournalHeaderDerivedFromDebits(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	cashID := f.systemLedgerID(t, ledger.SystemCash)
	salesID := f.systemLedgerID(t, ledger.SystemSales)

	posted, err := f.engine.Post(f.ctx, &Request{
		Type: TypeJournal,
		Date: time.Now().UTC(),
		JournalLines: []JournalLineRequest{
			{LedgerID: cashID, Debit: 10000},
			{LedgerID: salesID, Credit: 10000},
		},
		TotalAmount: 999999,
	})
	require.NoError(t, err)

	txn := posted.Transaction
	assert.Equal(t, types.MinorUnits(10000), txn.TotalAmount)
	assert.Equal(t, types.MinorUnits(10000), txn.SubTotal)
	assert.True(t, txn.TaxAmount.IsZero())
}

// Header-level tax with untaxed lines is split across the lines in
// proportion to their amounts, down to the last paisa.
func TestHeaderTaxAllocatedAcrossLines(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 3, 60000)

	partyID := f.customer.ID
	posted, err := f.engine.Post(f.ctx, &Request{
		Type:    TypeSale,
		Date:    time.Now().UTC(),
		PartyID: &partyID,
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(2), Rate: 50000},
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(1), Rate: 50000},
		},
		SubTotal:    150000,
		TaxAmount:   18500,
		TotalAmount: 168500,
	})
	require.NoError(t, err)

	// 18500 over 100000:50000 leaves a 1-paisa remainder; the line with
	// the larger fractional share absorbs it.
	require.Len(t, f.repo.items, 2)
	assert.Equal(t, types.MinorUnits(12333), f.repo.items[0].GSTAmount)
	assert.Equal(t, types.MinorUnits(6167), f.repo.items[1].GSTAmount)

	_, c := entryAmounts(posted.Entries, f.systemLedgerID(t, ledger.SystemOutputTax))
	assert.Equal(t, types.MinorUnits(18500), c)
	assert.Equal(t, types.MinorUnits(168500), posted.Transaction.TotalAmount)
}

// Reversing a payment reopens the bill it had settled and mirrors the
// payment row in the opposite direction.
func TestReversePaymentReopensSettledSale(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 1, 60000)

	partyID := f.customer.ID
	sale, err := f.engine.Post(f.ctx, &Request{
		Type:    TypeSale,
		Date:    time.Now().UTC(),
		PartyID: &partyID,
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(1), Rate: 100000, GSTAmount: 18000},
		},
		SubTotal:    100000,
		TaxAmount:   18000,
		TotalAmount: 118000,
	})
	require.NoError(t, err)

	saleID := sale.Transaction.ID
	payment, err := f.engine.Post(f.ctx, &Request{
		Type:         TypePaymentIn,
		Date:         time.Now().UTC(),
		PartyID:      &partyID,
		TotalAmount:  118000,
		AgainstTxnID: &saleID,
	})
	require.NoError(t, err)

	settled, err := f.repo.GetTransaction(f.ctx, f.biz.ID, saleID)
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, settled.PaymentStatus)
	require.Equal(t, types.MinorUnits(0), f.customer.RunningBalance)

	rev, err := f.engine.Reverse(f.ctx, payment.Transaction.ID)
	require.NoError(t, err)

	reopened, err := f.repo.GetTransaction(f.ctx, f.biz.ID, saleID)
	require.NoError(t, err)
	assert.Equal(t, PaymentUnpaid, reopened.PaymentStatus)
	assert.Equal(t, types.MinorUnits(118000), reopened.BalanceAmount)
	assert.Equal(t, types.MinorUnits(118000), f.customer.RunningBalance)

	// The original IN row gets an OUT mirror attributed to the reversal.
	mirrors, err := f.repo.GetPaymentsBySource(f.ctx, f.biz.ID, rev.Transaction.ID)
	require.NoError(t, err)
	require.Len(t, mirrors, 1)
	assert.Equal(t, DirectionOut, mirrors[0].Direction)
	assert.Equal(t, types.MinorUnits(118000), mirrors[0].Amount)
	require.NotNil(t, mirrors[0].TransactionID)
	assert.Equal(t, saleID, *mirrors[0].TransactionID)
}

// A cash sale return pays the refund out through the cash ledger, so the
// day book sees the outflow.
func TestCashSaleReturnRefundsThroughCash(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)

	costPrice := types.MinorUnits(60000)
	posted, err := f.engine.Post(f.ctx, &Request{
		Type: TypeSaleReturn,
		Date: time.Now().UTC(),
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(1), Rate: 100000, GSTAmount: 18000, CostPrice: &costPrice},
		},
		SubTotal:    100000,
		TaxAmount:   18000,
		TotalAmount: 118000,
	})
	require.NoError(t, err)

	require.Len(t, f.repo.payments, 1)
	refund := f.repo.payments[0]
	assert.Equal(t, DirectionOut, refund.Direction)
	assert.Equal(t, types.MinorUnits(118000), refund.Amount)
	assert.Equal(t, posted.Transaction.ID, refund.SourceTxnID)
}

// A cash purchase return takes the supplier's refund back in.
func TestCashPurchaseReturnTakesRefundIn(t *testing.T) {
	f := newFixture(t, tenant.ValuationWeightedAverage, false)
	f.seedStock(t, 2, 60000)

	_, err := f.engine.Post(f.ctx, &Request{
		Type: TypePurchaseReturn,
		Date: time.Now().UTC(),
		Lines: []LineRequest{
			{ItemID: f.widget.ID, Qty: types.NewQuantityFromInt(1), Rate: 60000},
		},
		SubTotal:    60000,
		TaxAmount:   0,
		TotalAmount: 60000,
	})
	require.NoError(t, err)

	require.Len(t, f.repo.payments, 1)
	assert.Equal(t, DirectionIn, f.repo.payments[0].Direction)
	assert.Equal(t, types.MinorUnits(60000), f.repo.payments[0].Amount)
}
