// Package reports derives every financial report directly from the journal,
// transactions and stock register. No report reads a cached aggregate.
package reports

import (
	"time"

	"khata/internal/core/id"
	"khata/internal/core/types"
	"khata/internal/domain/ledger"
)

// LedgerBalance is the summed activity of one ledger over a period.
type LedgerBalance struct {
	LedgerID   id.ID              `db:"ledger_id" json:"ledgerId"`
	Name       string             `db:"name" json:"name"`
	Group      ledger.Group       `db:"group" json:"group"`
	SystemKind *ledger.SystemKind `db:"system_kind" json:"systemKind,omitempty"`

	Debit  types.MinorUnits `db:"debit" json:"debit"`
	Credit types.MinorUnits `db:"credit" json:"credit"`
}

// Closing returns the balance signed by the ledger's normal side: positive
// when the account grew on its natural side.
func (b LedgerBalance) Closing() types.MinorUnits {
	if b.Group.NormalSide() == ledger.SideDebit {
		return b.Debit - b.Credit
	}
	return b.Credit - b.Debit
}

// TrialBalanceRow is one account line of the trial balance.
type TrialBalanceRow struct {
	LedgerID id.ID            `json:"ledgerId"`
	Name     string           `json:"name"`
	Group    ledger.Group     `json:"group"`
	Debit    types.MinorUnits `json:"debit"`
	Credit   types.MinorUnits `json:"credit"`
	Closing  types.MinorUnits `json:"closing"`
}

// TrialBalance is the master double-entry integrity check.
type TrialBalance struct {
	AsOf        time.Time         `json:"asOf"`
	Rows        []TrialBalanceRow `json:"rows"`
	DebitTotal  types.MinorUnits  `json:"debitTotal"`
	CreditTotal types.MinorUnits  `json:"creditTotal"`

	// Balanced is the system-wide self-check. False signals a
	// data-integrity incident: surfaced in the payload and logged at
	// error level, never suppressed.
	Balanced bool `json:"balanced"`
}

// ProfitAndLoss summarizes trading performance over a period.
type ProfitAndLoss struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	Revenue   types.MinorUnits `json:"revenue"`
	COGS      types.MinorUnits `json:"cogs"`
	Expenses  types.MinorUnits `json:"expenses"`
	NetProfit types.MinorUnits `json:"netProfit"`
}

// BalanceSheetGroup is one account-group section.
type BalanceSheetGroup struct {
	Group ledger.Group      `json:"group"`
	Rows  []TrialBalanceRow `json:"rows"`
	Total types.MinorUnits  `json:"total"`
}

// BalanceSheet is the position statement as of a date. Equity includes
// cumulative net profit through asOf.
type BalanceSheet struct {
	AsOf time.Time `json:"asOf"`

	Assets      BalanceSheetGroup `json:"assets"`
	Liabilities BalanceSheetGroup `json:"liabilities"`
	Equity      BalanceSheetGroup `json:"equity"`

	RetainedProfit types.MinorUnits `json:"retainedProfit"`

	// Balanced asserts Assets == Liabilities + Equity.
	Balanced bool `json:"balanced"`
}

// CashFlow is the cash/bank movement summary for a period.
type CashFlow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	Inflow  types.MinorUnits `json:"inflow"`
	Outflow types.MinorUnits `json:"outflow"`
	Net     types.MinorUnits `json:"net"`
}

// CashTotals carries the raw cash-ledger sums from storage.
type CashTotals struct {
	Inflow  types.MinorUnits `db:"inflow"`
	Outflow types.MinorUnits `db:"outflow"`
}

// BillProfitLine is the margin of one sale line.
type BillProfitLine struct {
	ItemID    id.ID            `json:"itemId"`
	Qty       types.Quantity   `json:"qty"`
	Rate      types.MinorUnits `json:"rate"`
	CostPrice types.MinorUnits `json:"costPrice"`
	Profit    types.MinorUnits `json:"profit"`
}

// BillProfit is the per-transaction margin report.
type BillProfit struct {
	TransactionID id.ID            `json:"transactionId"`
	Number        string           `json:"number"`
	Lines         []BillProfitLine `json:"lines"`
	TotalProfit   types.MinorUnits `json:"totalProfit"`
}

// DayBookLine is one chronological event of a business day.
type DayBookLine struct {
	At     time.Time        `json:"at"`
	Kind   string           `json:"kind"` // TRANSACTION or PAYMENT
	ID     id.ID            `json:"id"`
	Number string           `json:"number,omitempty"`
	Type   string           `json:"type"`
	Amount types.MinorUnits `json:"amount"`
	Party  *id.ID           `json:"partyId,omitempty"`
}

// DayBook merges transactions and payments for one date.
type DayBook struct {
	Date  time.Time     `json:"date"`
	Lines []DayBookLine `json:"lines"`
}

// StockRow is one item's on-hand position.
type StockRow struct {
	ItemID   id.ID            `db:"item_id" json:"itemId"`
	ItemName string           `db:"item_name" json:"itemName"`
	Qty      types.Quantity   `db:"qty" json:"qty"`
	Value    types.MinorUnits `db:"value" json:"value"`
}

// StockSummary is the on-hand quantity and value by item.
type StockSummary struct {
	AsOf       time.Time        `json:"asOf"`
	Rows       []StockRow       `json:"rows"`
	TotalValue types.MinorUnits `json:"totalValue"`
}
