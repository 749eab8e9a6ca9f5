// Package posting turns business events into balanced double-entry postings
// and commits them atomically with their line items and stock movements.
package posting

import (
	"time"

	"khata/internal/core/apperror"
	"khata/internal/core/entity"
	"khata/internal/core/id"
	"khata/internal/core/types"
)

// Type is the business event kind being posted.
type Type string

const (
	TypeSale           Type = "SALE"
	TypePurchase       Type = "PURCHASE"
	TypeSaleReturn     Type = "SALE_RETURN"
	TypePurchaseReturn Type = "PURCHASE_RETURN"
	TypePaymentIn      Type = "PAYMENT_IN"
	TypePaymentOut     Type = "PAYMENT_OUT"
	TypeExpense        Type = "EXPENSE"
	TypeJournal        Type = "JOURNAL"

	// TypeReversal is created only by Engine.Reverse, never accepted in a
	// Request.
	TypeReversal Type = "REVERSAL"
)

// Valid reports whether t is a postable type.
func (t Type) Valid() bool {
	switch t {
	case TypeSale, TypePurchase, TypeSaleReturn, TypePurchaseReturn,
		TypePaymentIn, TypePaymentOut, TypeExpense, TypeJournal:
		return true
	}
	return false
}

// StockEffect is the inventory direction a transaction type implies.
type StockEffect int

const (
	StockNone StockEffect = iota
	StockOut
	StockIn
)

// StockEffect returns the inventory direction for this type.
func (t Type) StockEffect() StockEffect {
	switch t {
	case TypeSale, TypePurchaseReturn:
		return StockOut
	case TypePurchase, TypeSaleReturn:
		return StockIn
	default:
		return StockNone
	}
}

// NumberPrefix returns the document-number prefix for this type.
func (t Type) NumberPrefix() string {
	switch t {
	case TypeSale:
		return "INV"
	case TypePurchase:
		return "PUR"
	case TypeSaleReturn:
		return "CRN"
	case TypePurchaseReturn:
		return "DRN"
	case TypePaymentIn:
		return "RCT"
	case TypePaymentOut:
		return "PMT"
	case TypeExpense:
		return "EXP"
	case TypeReversal:
		return "REV"
	default:
		return "JRN"
	}
}

// PaymentStatus is the settlement state of a transaction, derived from its
// outstanding balance. Cache-level only: reports never read it.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

// DerivePaymentStatus maps an outstanding balance to its settlement state.
func DerivePaymentStatus(balance, total types.MinorUnits) PaymentStatus {
	switch {
	case balance.IsZero():
		return PaymentPaid
	case balance == total:
		return PaymentUnpaid
	default:
		return PaymentPartial
	}
}

// Transaction is a posted document header. Immutable once committed;
// corrections happen only through a reversing transaction.
type Transaction struct {
	entity.Document

	BusinessID id.ID     `db:"business_id" json:"businessId"`
	Number     string    `db:"number" json:"number"`
	Type       Type      `db:"type" json:"type"`
	Date       time.Time `db:"date" json:"date"`
	PartyID    *id.ID    `db:"party_id" json:"partyId,omitempty"`

	SubTotal    types.MinorUnits `db:"sub_total" json:"subTotal"`
	TaxAmount   types.MinorUnits `db:"tax_amount" json:"taxAmount"`
	TotalAmount types.MinorUnits `db:"total_amount" json:"totalAmount"`

	// BalanceAmount and PaymentStatus are settlement caches maintained
	// alongside payments; the ledger is the source of truth.
	BalanceAmount types.MinorUnits `db:"balance_amount" json:"balanceAmount"`
	PaymentStatus PaymentStatus    `db:"payment_status" json:"paymentStatus"`

	ReversalOf *id.ID `db:"reversal_of" json:"reversalOf,omitempty"`
	Notes      string `db:"notes" json:"notes,omitempty"`
}

// TransactionItem is one immutable document line.
type TransactionItem struct {
	LineID        id.ID `db:"line_id" json:"lineId"`
	TransactionID id.ID `db:"transaction_id" json:"transactionId"`
	BusinessID    id.ID `db:"business_id" json:"businessId"`
	LineNo        int   `db:"line_no" json:"lineNo"`
	ItemID        id.ID `db:"item_id" json:"itemId"`

	Qty       types.Quantity   `db:"qty" json:"qty"`
	Rate      types.MinorUnits `db:"rate" json:"rate"`
	GSTAmount types.MinorUnits `db:"gst_amount" json:"gstAmount"`
	Amount    types.MinorUnits `db:"amount" json:"amount"`

	// CostPrice is the per-unit valued cost stamped by the stock engine at
	// posting time. Zero for non-stock lines.
	CostPrice types.MinorUnits `db:"cost_price" json:"costPrice"`
}

// Direction is the cash direction of a payment.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Opposite returns the reversed cash direction.
func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

// Payment is a settlement record, optionally applied against a transaction.
// SourceTxnID names the posting document that produced the row; reversals
// follow it to find the settlements they must undo.
type Payment struct {
	ID            id.ID     `db:"id" json:"id"`
	BusinessID    id.ID     `db:"business_id" json:"businessId"`
	SourceTxnID   id.ID     `db:"source_txn_id" json:"sourceTxnId"`
	TransactionID *id.ID    `db:"transaction_id" json:"transactionId,omitempty"`
	Date          time.Time `db:"date" json:"date"`
	Mode          string    `db:"mode" json:"mode"`

	Amount    types.MinorUnits `db:"amount" json:"amount"`
	Direction Direction        `db:"direction" json:"direction"`
	PartyID   *id.ID           `db:"party_id" json:"partyId,omitempty"`
	LedgerID  id.ID            `db:"ledger_id" json:"ledgerId"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// LedgerEntry is one debit or credit line in the journal. Exactly one of
// Debit/Credit is nonzero.
type LedgerEntry struct {
	LineID        id.ID `db:"line_id" json:"lineId"`
	BusinessID    id.ID `db:"business_id" json:"businessId"`
	TransactionID id.ID `db:"transaction_id" json:"transactionId"`
	LedgerID      id.ID `db:"ledger_id" json:"ledgerId"`

	Debit  types.MinorUnits `db:"debit" json:"debit"`
	Credit types.MinorUnits `db:"credit" json:"credit"`

	Period    time.Time `db:"period" json:"period"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// PaymentMode selects the cash-side ledger for cash events.
const (
	ModeCash = "CASH"
	ModeBank = "BANK"
)

// LineRequest is one requested document line.
type LineRequest struct {
	ItemID    id.ID            `json:"itemId"`
	Qty       types.Quantity   `json:"qty"`
	Rate      types.MinorUnits `json:"rate"`
	GSTAmount types.MinorUnits `json:"gstAmount"`

	// CostPrice optionally pins the restock cost of a sale-return line to
	// the originating sale. When nil the current running cost is used.
	CostPrice *types.MinorUnits `json:"costPrice,omitempty"`
}

// Amount is the line subtotal (qty x rate, tax excluded).
func (l LineRequest) Amount() types.MinorUnits {
	return types.MulQtyUnits(l.Rate, l.Qty)
}

// JournalLineRequest is one explicit debit/credit line of a manual journal.
type JournalLineRequest struct {
	LedgerID id.ID            `json:"ledgerId"`
	Debit    types.MinorUnits `json:"debit"`
	Credit   types.MinorUnits `json:"credit"`
}

// Request describes a transaction to post. It is the DRAFT state: validated
// in memory, nothing persisted until Engine.Post commits.
type Request struct {
	Type    Type      `json:"type"`
	Date    time.Time `json:"date"`
	PartyID *id.ID    `json:"partyId,omitempty"`

	Lines        []LineRequest        `json:"lines,omitempty"`
	JournalLines []JournalLineRequest `json:"journalLines,omitempty"`

	SubTotal    types.MinorUnits `json:"subTotal"`
	TaxAmount   types.MinorUnits `json:"taxAmount"`
	TotalAmount types.MinorUnits `json:"totalAmount"`

	// PaymentMode selects Cash vs Bank for cash events. Defaults to CASH.
	PaymentMode string `json:"paymentMode,omitempty"`

	// AgainstTxnID applies a PAYMENT_IN/OUT to a specific open transaction.
	AgainstTxnID *id.ID `json:"againstTxnId,omitempty"`

	// ExpenseLedgerID names the expense account for EXPENSE postings.
	ExpenseLedgerID *id.ID `json:"expenseLedgerId,omitempty"`

	Notes string `json:"notes,omitempty"`
}

// Validate checks the request in DRAFT state; failures reject before any
// write. For types without document lines it also derives the header
// amounts, so every persisted header satisfies
// totalAmount == subTotal + taxAmount.
func (r *Request) Validate() error {
	if !r.Type.Valid() {
		return apperror.NewValidation("unknown transaction type").
			WithDetail("type", string(r.Type))
	}
	if r.Date.IsZero() {
		return apperror.NewValidation("transaction date is required").
			WithDetail("type", string(r.Type))
	}

	switch r.Type {
	case TypeSale, TypePurchase, TypeSaleReturn, TypePurchaseReturn:
		return r.validateLines()
	case TypePaymentIn, TypePaymentOut:
		if r.PartyID == nil {
			return apperror.NewValidation("payment requires a party").
				WithDetail("type", string(r.Type))
		}
		if !r.TotalAmount.IsPositive() {
			return apperror.NewValidation("payment amount must be positive").
				WithDetail("type", string(r.Type))
		}
		r.SubTotal = r.TotalAmount
		r.TaxAmount = 0
	case TypeExpense:
		if r.ExpenseLedgerID == nil {
			return apperror.NewValidation("expense requires an expense ledger").
				WithDetail("type", string(r.Type))
		}
		if !r.TotalAmount.IsPositive() {
			return apperror.NewValidation("expense amount must be positive").
				WithDetail("type", string(r.Type))
		}
		r.SubTotal = r.TotalAmount
		r.TaxAmount = 0
	case TypeJournal:
		if len(r.JournalLines) < 2 {
			return apperror.NewValidation("journal requires at least two lines").
				WithDetail("type", string(r.Type))
		}
		var debits types.MinorUnits
		for i, jl := range r.JournalLines {
			oneSide := (jl.Debit.IsPositive() && jl.Credit.IsZero()) ||
				(jl.Credit.IsPositive() && jl.Debit.IsZero())
			if !oneSide {
				return apperror.NewValidation("journal line must have exactly one positive side").
					WithDetail("type", string(r.Type)).
					WithDetail("line_no", i+1)
			}
			debits += jl.Debit
		}
		// The journal's headline amount is its debit total.
		r.TotalAmount = debits
		r.SubTotal = debits
		r.TaxAmount = 0
	}
	return nil
}

// AllocateTax distributes a header-level tax across the lines in proportion
// to their amounts when no line carries its own tax. The largest-remainder
// split sums exactly to the header tax, so line taxes and the header stay
// consistent down to the minor unit.
func (r *Request) AllocateTax(currency string) error {
	if r.TaxAmount.IsZero() || len(r.Lines) == 0 {
		return nil
	}
	for _, l := range r.Lines {
		if !l.GSTAmount.IsZero() {
			return nil
		}
	}

	weights := make([]int64, len(r.Lines))
	for i, l := range r.Lines {
		weights[i] = int64(l.Amount())
	}
	parts, err := types.NewMoney(r.TaxAmount, currency).Allocate(weights)
	if err != nil {
		return apperror.NewValidation("cannot distribute tax across lines").
			WithDetail("type", string(r.Type)).
			WithCause(err)
	}
	for i := range r.Lines {
		r.Lines[i].GSTAmount = parts[i].Units
	}
	return nil
}

func (r *Request) validateLines() error {
	if len(r.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("type", string(r.Type))
	}

	var sum types.MinorUnits
	var tax types.MinorUnits
	for i, l := range r.Lines {
		if !l.Qty.IsPositive() {
			return apperror.NewValidation("line quantity must be positive").
				WithDetail("type", string(r.Type)).
				WithDetail("line_no", i+1)
		}
		if l.Rate.IsNegative() {
			return apperror.NewValidation("line rate must not be negative").
				WithDetail("type", string(r.Type)).
				WithDetail("line_no", i+1)
		}
		if l.GSTAmount.IsNegative() {
			return apperror.NewValidation("line tax must not be negative").
				WithDetail("type", string(r.Type)).
				WithDetail("line_no", i+1)
		}
		sum += l.Amount()
		tax += l.GSTAmount
	}

	if sum != r.SubTotal {
		return apperror.NewValidation("line amounts do not sum to subtotal").
			WithDetail("type", string(r.Type)).
			WithDetail("lines_total", int64(sum)).
			WithDetail("sub_total", int64(r.SubTotal))
	}
	if tax != r.TaxAmount {
		return apperror.NewValidation("line taxes do not sum to tax amount").
			WithDetail("type", string(r.Type)).
			WithDetail("lines_tax", int64(tax)).
			WithDetail("tax_amount", int64(r.TaxAmount))
	}
	if r.SubTotal+r.TaxAmount != r.TotalAmount {
		return apperror.NewValidation("total must equal subtotal plus tax").
			WithDetail("type", string(r.Type)).
			WithDetail("sub_total", int64(r.SubTotal)).
			WithDetail("tax_amount", int64(r.TaxAmount)).
			WithDetail("total_amount", int64(r.TotalAmount))
	}
	return nil
}

// Posted is the result of a successful posting.
type Posted struct {
	Transaction *Transaction  `json:"transaction"`
	Entries     []LedgerEntry `json:"entries"`
}

// Detail is a posted transaction read back with its lines and journal.
type Detail struct {
	Transaction *Transaction      `json:"transaction"`
	Items       []TransactionItem `json:"items,omitempty"`
	Entries     []LedgerEntry     `json:"entries"`
}
