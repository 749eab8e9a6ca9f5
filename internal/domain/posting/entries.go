package posting

import (
	"time"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/core/types"
)

// entryBuilder derives the balanced ledger entries for one transaction.
// All ledger ids are resolved by the engine before derivation; the builder
// is pure and fully deterministic per type.
type entryBuilder struct {
	businessID id.ID
	txnID      id.ID
	period     time.Time
	now        time.Time

	// counterLedger is the party sub-ledger for credit events, or the
	// cash/bank ledger for cash events.
	counterLedger id.ID

	sales     id.ID
	outputTax id.ID
	inputTax  id.ID
	inventory id.ID
	cogs      id.ID
	cashBank  id.ID

	entries []LedgerEntry
}

func (b *entryBuilder) debit(ledgerID id.ID, amount types.MinorUnits) {
	b.add(ledgerID, amount, 0)
}

func (b *entryBuilder) credit(ledgerID id.ID, amount types.MinorUnits) {
	b.add(ledgerID, 0, amount)
}

// add appends one entry; zero amounts produce no row, keeping the
// one-nonzero-side invariant.
func (b *entryBuilder) add(ledgerID id.ID, debit, credit types.MinorUnits) {
	if debit.IsZero() && credit.IsZero() {
		return
	}
	b.entries = append(b.entries, LedgerEntry{
		LineID:        id.New(),
		BusinessID:    b.businessID,
		TransactionID: b.txnID,
		LedgerID:      ledgerID,
		Debit:         debit,
		Credit:        credit,
		Period:        b.period,
		CreatedAt:     b.now,
	})
}

// build derives entries for the given type. cost is the summed valued cost
// of the stock movement; zero for non-stock types.
func (b *entryBuilder) build(t Type, req *Request, cost types.MinorUnits) error {
	switch t {
	case TypeSale:
		b.debit(b.counterLedger, req.TotalAmount)
		b.credit(b.sales, req.SubTotal)
		b.credit(b.outputTax, req.TaxAmount)
		b.debit(b.cogs, cost)
		b.credit(b.inventory, cost)

	case TypePurchase:
		b.debit(b.inventory, req.SubTotal)
		b.debit(b.inputTax, req.TaxAmount)
		b.credit(b.counterLedger, req.TotalAmount)

	case TypeSaleReturn:
		b.credit(b.counterLedger, req.TotalAmount)
		b.debit(b.sales, req.SubTotal)
		b.debit(b.outputTax, req.TaxAmount)
		b.credit(b.cogs, cost)
		b.debit(b.inventory, cost)

	case TypePurchaseReturn:
		b.credit(b.inventory, req.SubTotal)
		b.credit(b.inputTax, req.TaxAmount)
		b.debit(b.counterLedger, req.TotalAmount)

	case TypePaymentIn:
		b.debit(b.cashBank, req.TotalAmount)
		b.credit(b.counterLedger, req.TotalAmount)

	case TypePaymentOut:
		b.debit(b.counterLedger, req.TotalAmount)
		b.credit(b.cashBank, req.TotalAmount)

	case TypeExpense:
		b.debit(*req.ExpenseLedgerID, req.TotalAmount)
		b.credit(b.counterLedger, req.TotalAmount)

	case TypeJournal:
		for _, jl := range req.JournalLines {
			b.add(jl.LedgerID, jl.Debit, jl.Credit)
		}

	default:
		return apperror.NewValidation("unknown transaction type").
			WithDetail("type", string(t))
	}

	return b.assertBalanced(t)
}

// mirror derives the reversal entries for an already-posted transaction by
// swapping debit and credit on every original entry.
func (b *entryBuilder) mirror(orig []LedgerEntry) error {
	for _, e := range orig {
		b.add(e.LedgerID, e.Credit, e.Debit)
	}
	return b.assertBalanced(TypeReversal)
}

// assertBalanced is the gate every posting passes: Σdebit == Σcredit.
// A mismatch is a derivation defect, never corrected, always halted.
func (b *entryBuilder) assertBalanced(t Type) error {
	var debits, credits types.MinorUnits
	for _, e := range b.entries {
		debits += e.Debit
		credits += e.Credit
	}
	if debits != credits {
		return apperror.NewImbalancedPosting(string(t), int64(debits), int64(credits))
	}
	return nil
}
