package dto

import (
	"time"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/core/types"
	"khata/internal/domain/posting"
)

// --- Request DTOs ---

// PostTransactionRequest represents a request to post a transaction.
// Monetary amounts arrive as decimal strings ("1180.00") and quantities as
// decimal strings ("2.5"); parsing is exact, no floats on the wire.
type PostTransactionRequest struct {
	Type    string    `json:"type" binding:"required"`
	Date    time.Time `json:"date" binding:"required"`
	PartyID *string   `json:"partyId,omitempty"`

	Lines        []TransactionLineRequest `json:"lines,omitempty"`
	JournalLines []JournalLineRequest     `json:"journalLines,omitempty"`

	SubTotal    string `json:"subTotal,omitempty"`
	TaxAmount   string `json:"taxAmount,omitempty"`
	TotalAmount string `json:"totalAmount,omitempty"`

	PaymentMode     string  `json:"paymentMode,omitempty"`
	AgainstTxnID    *string `json:"againstTxnId,omitempty"`
	ExpenseLedgerID *string `json:"expenseLedgerId,omitempty"`

	Notes string `json:"notes,omitempty"`
}

// TransactionLineRequest represents one document line.
type TransactionLineRequest struct {
	ItemID    string `json:"itemId" binding:"required"`
	Qty       string `json:"qty" binding:"required"`
	Rate      string `json:"rate" binding:"required"`
	GSTAmount string `json:"gstAmount,omitempty"`
	CostPrice string `json:"costPrice,omitempty"`
}

// JournalLineRequest represents one explicit journal line.
type JournalLineRequest struct {
	LedgerID string `json:"ledgerId" binding:"required"`
	Debit    string `json:"debit,omitempty"`
	Credit   string `json:"credit,omitempty"`
}

// ToRequest converts the DTO to a posting request. Returns a validation
// error naming the offending field; nothing is persisted on failure.
func (r *PostTransactionRequest) ToRequest() (*posting.Request, error) {
	req := &posting.Request{
		Type:        posting.Type(r.Type),
		Date:        r.Date,
		PaymentMode: r.PaymentMode,
		Notes:       r.Notes,
	}

	var err error
	if req.PartyID, err = parseOptionalID(r.PartyID, "partyId"); err != nil {
		return nil, err
	}
	if req.AgainstTxnID, err = parseOptionalID(r.AgainstTxnID, "againstTxnId"); err != nil {
		return nil, err
	}
	if req.ExpenseLedgerID, err = parseOptionalID(r.ExpenseLedgerID, "expenseLedgerId"); err != nil {
		return nil, err
	}

	if req.SubTotal, err = parseAmount(r.SubTotal, "subTotal"); err != nil {
		return nil, err
	}
	if req.TaxAmount, err = parseAmount(r.TaxAmount, "taxAmount"); err != nil {
		return nil, err
	}
	if req.TotalAmount, err = parseAmount(r.TotalAmount, "totalAmount"); err != nil {
		return nil, err
	}

	for i, l := range r.Lines {
		line, err := l.toLine(i + 1)
		if err != nil {
			return nil, err
		}
		req.Lines = append(req.Lines, line)
	}

	for i, jl := range r.JournalLines {
		line, err := jl.toLine(i + 1)
		if err != nil {
			return nil, err
		}
		req.JournalLines = append(req.JournalLines, line)
	}

	return req, nil
}

func (l TransactionLineRequest) toLine(lineNo int) (posting.LineRequest, error) {
	var out posting.LineRequest

	itemID, err := id.Parse(l.ItemID)
	if err != nil {
		return out, lineError("invalid item id", lineNo)
	}
	out.ItemID = itemID

	if out.Qty, err = types.ParseQuantity(l.Qty); err != nil {
		return out, lineError("invalid quantity", lineNo)
	}
	if out.Rate, err = parseAmount(l.Rate, "rate"); err != nil {
		return out, lineError("invalid rate", lineNo)
	}
	if out.GSTAmount, err = parseAmount(l.GSTAmount, "gstAmount"); err != nil {
		return out, lineError("invalid tax amount", lineNo)
	}

	if l.CostPrice != "" {
		cost, err := types.ParseMinorUnits(l.CostPrice)
		if err != nil {
			return out, lineError("invalid cost price", lineNo)
		}
		out.CostPrice = &cost
	}

	return out, nil
}

func (l JournalLineRequest) toLine(lineNo int) (posting.JournalLineRequest, error) {
	var out posting.JournalLineRequest

	ledgerID, err := id.Parse(l.LedgerID)
	if err != nil {
		return out, lineError("invalid ledger id", lineNo)
	}
	out.LedgerID = ledgerID

	if out.Debit, err = parseAmount(l.Debit, "debit"); err != nil {
		return out, lineError("invalid debit amount", lineNo)
	}
	if out.Credit, err = parseAmount(l.Credit, "credit"); err != nil {
		return out, lineError("invalid credit amount", lineNo)
	}

	return out, nil
}

func parseAmount(s, field string) (types.MinorUnits, error) {
	if s == "" {
		return 0, nil
	}
	m, err := types.ParseMinorUnits(s)
	if err != nil {
		return 0, apperror.NewValidation("invalid amount").
			WithDetail("field", field).
			WithDetail("value", s)
	}
	return m, nil
}

func parseOptionalID(s *string, field string) (*id.ID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	parsed, err := id.Parse(*s)
	if err != nil {
		return nil, apperror.NewValidation("invalid id").
			WithDetail("field", field).
			WithDetail("value", *s)
	}
	return &parsed, nil
}

func lineError(msg string, lineNo int) *apperror.AppError {
	return apperror.NewValidation(msg).WithDetail("line_no", lineNo)
}

// --- Response DTOs ---

// PostedTransactionResponse returns the posted document with its journal.
type PostedTransactionResponse struct {
	Transaction *posting.Transaction  `json:"transaction"`
	Entries     []posting.LedgerEntry `json:"entries"`
}

// FromPosted creates the response from an engine result.
func FromPosted(p *posting.Posted) PostedTransactionResponse {
	return PostedTransactionResponse{
		Transaction: p.Transaction,
		Entries:     p.Entries,
	}
}
