// Package ledger provides the chart of accounts (ledger registry).
package ledger

import (
	"context"
	"time"

	"khata/internal/core/apperror"
	"khata/internal/core/entity"
	"khata/internal/core/id"
)

// Group is one of the five account groups.
type Group string

const (
	GroupAsset     Group = "ASSET"
	GroupLiability Group = "LIABILITY"
	GroupIncome    Group = "INCOME"
	GroupExpense   Group = "EXPENSE"
	GroupEquity    Group = "EQUITY"
)

// Side is the normal balance side of an account group.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// NormalSide returns the side on which balances of this group grow.
// Used to present signed, human-readable balances in reports.
func (g Group) NormalSide() Side {
	switch g {
	case GroupAsset, GroupExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Valid reports whether g is a known group.
func (g Group) Valid() bool {
	switch g {
	case GroupAsset, GroupLiability, GroupIncome, GroupExpense, GroupEquity:
		return true
	}
	return false
}

// SystemKind marks well-known ledgers the posting engine resolves by role.
type SystemKind string

const (
	SystemCash          SystemKind = "CASH"
	SystemBank          SystemKind = "BANK"
	SystemSales         SystemKind = "SALES"
	SystemOutputTax     SystemKind = "OUTPUT_TAX"
	SystemInputTax      SystemKind = "INPUT_TAX"
	SystemInventory     SystemKind = "INVENTORY"
	SystemCOGS          SystemKind = "COGS"
	SystemOpeningEquity SystemKind = "OPENING_EQUITY"
)

// systemDefaults describes the standard chart seeded for every business.
var systemDefaults = []struct {
	Kind     SystemKind
	Name     string
	Group    Group
	SubGroup string
}{
	{SystemCash, "Cash in Hand", GroupAsset, "Cash & Bank"},
	{SystemBank, "Bank Account", GroupAsset, "Cash & Bank"},
	{SystemSales, "Sales", GroupIncome, "Direct Income"},
	{SystemOutputTax, "Output Tax Payable", GroupLiability, "Duties & Taxes"},
	{SystemInputTax, "Input Tax Credit", GroupAsset, "Duties & Taxes"},
	{SystemInventory, "Inventory", GroupAsset, "Current Assets"},
	{SystemCOGS, "Cost of Goods Sold", GroupExpense, "Direct Expense"},
	{SystemOpeningEquity, "Opening Balance Equity", GroupEquity, "Capital"},
}

// Ledger is a named bucket in the chart of accounts.
type Ledger struct {
	entity.Base

	BusinessID id.ID  `db:"business_id" json:"businessId"`
	Name       string `db:"name" json:"name"`
	Group      Group  `db:"group" json:"group"`
	SubGroup   string `db:"sub_group" json:"subGroup,omitempty"`

	// SystemKind is set on the well-known ledgers; nil for user-defined ones.
	SystemKind *SystemKind `db:"system_kind" json:"systemKind,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewLedger creates a user-defined ledger.
func NewLedger(businessID id.ID, name string, group Group, subGroup string) *Ledger {
	return &Ledger{
		Base:       entity.NewBase(),
		BusinessID: businessID,
		Name:       name,
		Group:      group,
		SubGroup:   subGroup,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate checks ledger invariants.
func (l *Ledger) Validate(ctx context.Context) error {
	if id.IsNil(l.BusinessID) {
		return apperror.NewValidation("business is required").
			WithDetail("field", "businessId")
	}
	if l.Name == "" {
		return apperror.NewValidation("ledger name is required").
			WithDetail("field", "name")
	}
	if !l.Group.Valid() {
		return apperror.NewValidation("unknown account group").
			WithDetail("field", "group").
			WithDetail("value", string(l.Group))
	}
	return nil
}
