package posting

import (
	"context"
	"fmt"
	"time"

	"khata/internal/core/apperror"
	appctx "khata/internal/core/context"
	"khata/internal/core/entity"
	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/internal/core/tx"
	"khata/internal/core/types"
	"khata/internal/domain/catalogs/item"
	"khata/internal/domain/catalogs/party"
	"khata/internal/domain/ledger"
	"khata/internal/domain/stock"
	"khata/pkg/logger"
)

// Numberer generates the next document number for a prefix. Numbers are
// allocated before the posting transaction opens, so a failed posting leaves
// a gap rather than holding the sequence lock.
type Numberer interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// AuditRecorder persists an audit-trail entry for a posting action.
type AuditRecorder interface {
	Record(ctx context.Context, action string, entityID id.ID, snapshot any) error
}

// Engine is the transaction poster. Post and Reverse each run as one
// database transaction: validate, value stock, derive entries, gate,
// commit. Nothing is externally observable until commit.
type Engine struct {
	repo    Repository
	ledgers *ledger.Service
	parties party.Repository
	items   item.Repository
	stock   *stock.Service
	numbers Numberer
	txm     tx.Manager
	audit   AuditRecorder
}

// NewEngine creates a transaction poster. audit may be nil.
func NewEngine(
	repo Repository,
	ledgers *ledger.Service,
	parties party.Repository,
	items item.Repository,
	stockSvc *stock.Service,
	numbers Numberer,
	txm tx.Manager,
	audit AuditRecorder,
) *Engine {
	return &Engine{
		repo:    repo,
		ledgers: ledgers,
		parties: parties,
		items:   items,
		stock:   stockSvc,
		numbers: numbers,
		txm:     txm,
		audit:   audit,
	}
}

// Post validates, values, derives and commits one transaction.
func (e *Engine) Post(ctx context.Context, req *Request) (*Posted, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.AllocateTax(biz.Currency); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	number, err := e.numbers.Next(ctx, req.Type.NumberPrefix())
	if err != nil {
		return nil, fmt.Errorf("allocate number: %w", err)
	}

	var posted *Posted
	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := e.post(ctx, biz, req, number)
		if err != nil {
			return err
		}
		posted = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transaction posted",
		"number", posted.Transaction.Number,
		"type", posted.Transaction.Type,
		"total", posted.Transaction.TotalAmount,
	)
	return posted, nil
}

func (e *Engine) post(ctx context.Context, biz *tenant.Business, req *Request, number string) (*Posted, error) {
	now := time.Now().UTC()

	txn := &Transaction{
		Document:    entity.NewDocument(appctx.GetActorID(ctx)),
		BusinessID:  biz.ID,
		Number:      number,
		Type:        req.Type,
		Date:        req.Date,
		PartyID:     req.PartyID,
		SubTotal:    req.SubTotal,
		TaxAmount:   req.TaxAmount,
		TotalAmount: req.TotalAmount,
		Notes:       req.Notes,
	}

	// Resolve the counter ledger: party sub-ledger for credit events,
	// cash/bank for cash ones. Locking the party row is the per-party
	// serialization point.
	var pty *party.Party
	b := &entryBuilder{
		businessID: biz.ID,
		txnID:      txn.ID,
		period:     req.Date,
		now:        now,
	}

	if req.PartyID != nil {
		var err error
		pty, err = e.parties.GetForUpdate(ctx, biz.ID, *req.PartyID)
		if err != nil {
			return nil, err
		}
		b.counterLedger = pty.LedgerID
	}

	if pty == nil || req.Type == TypePaymentIn || req.Type == TypePaymentOut {
		cashBank, err := e.cashLedger(ctx, req.PaymentMode)
		if err != nil {
			return nil, err
		}
		b.cashBank = cashBank
		if pty == nil {
			b.counterLedger = cashBank
		}
	}

	if err := e.resolveSystemLedgers(ctx, req.Type, b); err != nil {
		return nil, err
	}

	items, totalCost, err := e.valueLines(ctx, biz, txn.ID, req)
	if err != nil {
		return nil, err
	}

	if err := b.build(req.Type, req, totalCost); err != nil {
		return nil, err
	}

	// Settlement cache: credit documents open at full balance, everything
	// else posts settled.
	if pty != nil && (req.Type == TypeSale || req.Type == TypePurchase || req.Type == TypeExpense) {
		txn.BalanceAmount = req.TotalAmount
	}
	txn.PaymentStatus = DerivePaymentStatus(txn.BalanceAmount, txn.TotalAmount)

	if err := e.repo.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	if len(items) > 0 {
		if err := e.repo.InsertItems(ctx, items); err != nil {
			return nil, fmt.Errorf("insert transaction items: %w", err)
		}
	}
	if err := e.repo.InsertEntries(ctx, b.entries); err != nil {
		return nil, fmt.Errorf("insert ledger entries: %w", err)
	}

	if err := e.settle(ctx, biz, txn, req, pty, b.cashBank, now); err != nil {
		return nil, err
	}

	if pty != nil {
		if err := e.adjustPartyCache(ctx, biz.ID, pty, b.entries); err != nil {
			return nil, err
		}
	}

	if e.audit != nil {
		if err := e.audit.Record(ctx, "transaction.posted", txn.ID, txn); err != nil {
			return nil, fmt.Errorf("record audit: %w", err)
		}
	}

	return &Posted{Transaction: txn, Entries: b.entries}, nil
}

// Reverse posts a REVERSAL transaction mirroring every ledger entry and
// stock movement of the original. A second reversal of the same transaction
// is rejected; reversing a reversal restores the original effect.
func (e *Engine) Reverse(ctx context.Context, txnID id.ID) (*Posted, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}

	number, err := e.numbers.Next(ctx, TypeReversal.NumberPrefix())
	if err != nil {
		return nil, fmt.Errorf("allocate number: %w", err)
	}

	var posted *Posted
	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := e.reverse(ctx, biz, txnID, number)
		if err != nil {
			return err
		}
		posted = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transaction reversed",
		"number", posted.Transaction.Number,
		"reversal_of", txnID,
	)
	return posted, nil
}

func (e *Engine) reverse(ctx context.Context, biz *tenant.Business, txnID id.ID, number string) (*Posted, error) {
	now := time.Now().UTC()

	orig, err := e.repo.GetTransactionForUpdate(ctx, biz.ID, txnID)
	if err != nil {
		return nil, err
	}

	reversed, err := e.repo.HasReversal(ctx, biz.ID, orig.ID)
	if err != nil {
		return nil, fmt.Errorf("check reversal: %w", err)
	}
	if reversed {
		return nil, apperror.NewAlreadyReversed(orig.ID.String())
	}

	origID := orig.ID
	rev := &Transaction{
		Document:      entity.NewDocument(appctx.GetActorID(ctx)),
		BusinessID:    biz.ID,
		Number:        number,
		Type:          TypeReversal,
		Date:          now,
		PartyID:       orig.PartyID,
		SubTotal:      orig.SubTotal,
		TaxAmount:     orig.TaxAmount,
		TotalAmount:   orig.TotalAmount,
		PaymentStatus: PaymentPaid,
		ReversalOf:    &origID,
		Notes:         "Reversal of " + orig.Number,
	}

	origEntries, err := e.repo.GetEntries(ctx, biz.ID, orig.ID)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	b := &entryBuilder{
		businessID: biz.ID,
		txnID:      rev.ID,
		period:     rev.Date,
		now:        now,
	}
	if err := b.mirror(origEntries); err != nil {
		return nil, err
	}

	origStock, err := e.stock.EntriesFor(ctx, orig.ID)
	if err != nil {
		return nil, fmt.Errorf("load stock entries: %w", err)
	}
	for _, se := range origStock {
		it, err := e.items.GetByID(ctx, biz.ID, se.ItemID)
		if err != nil {
			return nil, err
		}
		cfg := stock.Config{
			Policy:        it.EffectivePolicy(biz),
			AllowNegative: biz.AllowNegativeStock,
		}
		if _, err := e.stock.Mirror(ctx, []stock.Entry{se}, rev.ID, rev.Date, cfg); err != nil {
			return nil, err
		}
		if err := e.refreshStockCache(ctx, biz.ID, se.ItemID); err != nil {
			return nil, err
		}
	}

	if err := e.repo.InsertTransaction(ctx, rev); err != nil {
		return nil, fmt.Errorf("insert reversal: %w", err)
	}
	if err := e.repo.InsertEntries(ctx, b.entries); err != nil {
		return nil, fmt.Errorf("insert reversal entries: %w", err)
	}

	if err := e.reversePayments(ctx, biz.ID, orig, rev.ID, now); err != nil {
		return nil, err
	}

	// The reversal cancels whatever the original left outstanding.
	if !orig.BalanceAmount.IsZero() {
		if err := e.repo.UpdateSettlement(ctx, biz.ID, orig.ID, 0, PaymentPaid); err != nil {
			return nil, fmt.Errorf("settle original: %w", err)
		}
	}

	if orig.PartyID != nil {
		pty, err := e.parties.GetForUpdate(ctx, biz.ID, *orig.PartyID)
		if err != nil {
			return nil, err
		}
		if err := e.adjustPartyCache(ctx, biz.ID, pty, b.entries); err != nil {
			return nil, err
		}
	}

	if e.audit != nil {
		if err := e.audit.Record(ctx, "transaction.reversed", rev.ID, rev); err != nil {
			return nil, fmt.Errorf("record audit: %w", err)
		}
	}

	return &Posted{Transaction: rev, Entries: b.entries}, nil
}

// Get reads a posted transaction back with its lines and journal. Posted
// rows are immutable apart from the settlement cache, so plain committed
// reads suffice.
func (e *Engine) Get(ctx context.Context, txnID id.ID) (*Detail, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}

	txn, err := e.repo.GetTransaction(ctx, biz.ID, txnID)
	if err != nil {
		return nil, err
	}
	items, err := e.repo.GetItems(ctx, biz.ID, txnID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	entries, err := e.repo.GetEntries(ctx, biz.ID, txnID)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	return &Detail{Transaction: txn, Items: items, Entries: entries}, nil
}

// valueLines runs the stock engine over every line, stamping the valued
// per-unit cost. Returns the persisted lines and the summed movement cost.
func (e *Engine) valueLines(ctx context.Context, biz *tenant.Business, txnID id.ID, req *Request) ([]TransactionItem, types.MinorUnits, error) {
	if len(req.Lines) == 0 {
		return nil, 0, nil
	}

	effect := req.Type.StockEffect()
	items := make([]TransactionItem, 0, len(req.Lines))
	var totalCost types.MinorUnits

	for i, l := range req.Lines {
		it, err := e.items.GetByID(ctx, biz.ID, l.ItemID)
		if err != nil {
			return nil, 0, err
		}
		cfg := stock.Config{
			Policy:        it.EffectivePolicy(biz),
			AllowNegative: biz.AllowNegativeStock,
		}

		var entry stock.Entry
		switch effect {
		case StockOut:
			entry, err = e.stock.Issue(ctx, txnID, l.ItemID, l.Qty, req.Date, cfg)
		case StockIn:
			unitCost := l.Rate
			if req.Type == TypeSaleReturn {
				if l.CostPrice != nil {
					unitCost = *l.CostPrice
				} else if unitCost, err = e.stock.CurrentCost(ctx, l.ItemID); err != nil {
					return nil, 0, err
				}
			}
			entry, err = e.stock.Receive(ctx, txnID, l.ItemID, l.Qty, unitCost, req.Date, cfg)
		}
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, 0, appErr.WithDetail("line_no", i+1)
			}
			return nil, 0, err
		}

		totalCost += entry.CostValue
		items = append(items, TransactionItem{
			LineID:        id.New(),
			TransactionID: txnID,
			BusinessID:    biz.ID,
			LineNo:        i + 1,
			ItemID:        l.ItemID,
			Qty:           l.Qty,
			Rate:          l.Rate,
			GSTAmount:     l.GSTAmount,
			Amount:        l.Amount(),
			CostPrice:     entry.Rate,
		})

		if err := e.refreshStockCache(ctx, biz.ID, l.ItemID); err != nil {
			return nil, 0, err
		}
	}

	return items, totalCost, nil
}

// settle records the payment row for cash and payment documents and applies
// a payment against its open transaction.
func (e *Engine) settle(ctx context.Context, biz *tenant.Business, txn *Transaction, req *Request, pty *party.Party, cashBank id.ID, now time.Time) error {
	switch req.Type {
	case TypePaymentIn, TypePaymentOut:
		direction := DirectionIn
		if req.Type == TypePaymentOut {
			direction = DirectionOut
		}
		p := &Payment{
			ID:            id.New(),
			BusinessID:    biz.ID,
			SourceTxnID:   txn.ID,
			TransactionID: req.AgainstTxnID,
			Date:          req.Date,
			Mode:          paymentMode(req.PaymentMode),
			Amount:        req.TotalAmount,
			Direction:     direction,
			PartyID:       req.PartyID,
			LedgerID:      cashBank,
			CreatedAt:     now,
		}
		if err := e.repo.InsertPayment(ctx, p); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if req.AgainstTxnID != nil {
			return e.applyPayment(ctx, biz.ID, *req.AgainstTxnID, req.TotalAmount)
		}
		return nil

	case TypeSale, TypePurchase, TypeExpense, TypeSaleReturn, TypePurchaseReturn:
		// Cash documents settle themselves at posting time. Returns refund
		// through the same cash ledger in the opposite direction.
		if pty != nil {
			return nil
		}
		direction := DirectionOut
		if req.Type == TypeSale || req.Type == TypePurchaseReturn {
			direction = DirectionIn
		}
		txnID := txn.ID
		p := &Payment{
			ID:            id.New(),
			BusinessID:    biz.ID,
			SourceTxnID:   txn.ID,
			TransactionID: &txnID,
			Date:          req.Date,
			Mode:          paymentMode(req.PaymentMode),
			Amount:        req.TotalAmount,
			Direction:     direction,
			LedgerID:      cashBank,
			CreatedAt:     now,
		}
		if err := e.repo.InsertPayment(ctx, p); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	}
	return nil
}

// reversePayments mirrors every payment the original document produced and
// reopens the settlements those payments had closed. The target's balance is
// re-derived from the payment amount; its status follows the balance.
func (e *Engine) reversePayments(ctx context.Context, businessID id.ID, orig *Transaction, revID id.ID, now time.Time) error {
	payments, err := e.repo.GetPaymentsBySource(ctx, businessID, orig.ID)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}

	for _, p := range payments {
		mirror := &Payment{
			ID:            id.New(),
			BusinessID:    businessID,
			SourceTxnID:   revID,
			TransactionID: p.TransactionID,
			Date:          now,
			Mode:          p.Mode,
			Amount:        p.Amount,
			Direction:     p.Direction.Opposite(),
			PartyID:       p.PartyID,
			LedgerID:      p.LedgerID,
			CreatedAt:     now,
		}
		if err := e.repo.InsertPayment(ctx, mirror); err != nil {
			return fmt.Errorf("insert mirrored payment: %w", err)
		}

		// A payment applied against another document reopens that document's
		// balance when undone.
		if p.TransactionID == nil || *p.TransactionID == orig.ID {
			continue
		}
		target, err := e.repo.GetTransactionForUpdate(ctx, businessID, *p.TransactionID)
		if err != nil {
			return err
		}
		reopened := target.BalanceAmount + p.Amount
		status := DerivePaymentStatus(reopened, target.TotalAmount)
		if err := e.repo.UpdateSettlement(ctx, businessID, target.ID, reopened, status); err != nil {
			return fmt.Errorf("reopen settlement: %w", err)
		}
	}
	return nil
}

// applyPayment reduces the outstanding balance of an open transaction.
// The target row is locked: concurrent settlements serialize here.
func (e *Engine) applyPayment(ctx context.Context, businessID, txnID id.ID, amount types.MinorUnits) error {
	target, err := e.repo.GetTransactionForUpdate(ctx, businessID, txnID)
	if err != nil {
		return err
	}

	newBalance := target.BalanceAmount - amount
	if newBalance.IsNegative() {
		return apperror.NewValidation("payment exceeds outstanding balance").
			WithDetail("transaction_id", txnID.String()).
			WithDetail("outstanding", int64(target.BalanceAmount)).
			WithDetail("amount", int64(amount))
	}

	status := DerivePaymentStatus(newBalance, target.TotalAmount)
	if err := e.repo.UpdateSettlement(ctx, businessID, txnID, newBalance, status); err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	return nil
}

// adjustPartyCache applies the signed effect of this posting's entries on
// the party sub-ledger to the running-balance cache. Signed by the ledger's
// normal side: receivables grow on debit, payables on credit.
func (e *Engine) adjustPartyCache(ctx context.Context, businessID id.ID, pty *party.Party, entries []LedgerEntry) error {
	var delta types.MinorUnits
	for _, en := range entries {
		if en.LedgerID != pty.LedgerID {
			continue
		}
		if pty.IsCustomer() {
			delta += en.Debit - en.Credit
		} else {
			delta += en.Credit - en.Debit
		}
	}
	if delta.IsZero() {
		return nil
	}
	if err := e.parties.AdjustRunningBalance(ctx, businessID, pty.ID, delta); err != nil {
		return fmt.Errorf("adjust running balance: %w", err)
	}
	return nil
}

func (e *Engine) refreshStockCache(ctx context.Context, businessID, itemID id.ID) error {
	qty, err := e.stock.Availability(ctx, itemID)
	if err != nil {
		return err
	}
	if err := e.items.SetStockCache(ctx, businessID, itemID, qty); err != nil {
		return fmt.Errorf("set stock cache: %w", err)
	}
	return nil
}

func (e *Engine) cashLedger(ctx context.Context, mode string) (id.ID, error) {
	kind := ledger.SystemCash
	if paymentMode(mode) == ModeBank {
		kind = ledger.SystemBank
	}
	l, err := e.ledgers.System(ctx, kind)
	if err != nil {
		return id.Nil(), err
	}
	return l.ID, nil
}

// resolveSystemLedgers fills in the well-known ledgers the builder needs for
// this type.
func (e *Engine) resolveSystemLedgers(ctx context.Context, t Type, b *entryBuilder) error {
	resolve := func(kind ledger.SystemKind, dst *id.ID) error {
		l, err := e.ledgers.System(ctx, kind)
		if err != nil {
			return err
		}
		*dst = l.ID
		return nil
	}

	switch t {
	case TypeSale, TypeSaleReturn:
		for _, r := range []struct {
			kind ledger.SystemKind
			dst  *id.ID
		}{
			{ledger.SystemSales, &b.sales},
			{ledger.SystemOutputTax, &b.outputTax},
			{ledger.SystemInventory, &b.inventory},
			{ledger.SystemCOGS, &b.cogs},
		} {
			if err := resolve(r.kind, r.dst); err != nil {
				return err
			}
		}
	case TypePurchase, TypePurchaseReturn:
		if err := resolve(ledger.SystemInventory, &b.inventory); err != nil {
			return err
		}
		if err := resolve(ledger.SystemInputTax, &b.inputTax); err != nil {
			return err
		}
	}
	return nil
}

func paymentMode(mode string) string {
	if mode == ModeBank {
		return ModeBank
	}
	return ModeCash
}
