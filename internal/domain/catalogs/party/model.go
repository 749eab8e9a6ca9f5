// Package party provides the party read model.
// Parties (customers, suppliers) are created and edited by the external
// catalog service; the financial core consumes them by id and maintains the
// running-balance cache alongside each posting.
package party

import (
	"time"

	"khata/internal/core/entity"
	"khata/internal/core/id"
	"khata/internal/core/types"
)

// Type distinguishes the two party roles.
type Type string

const (
	TypeCustomer Type = "CUSTOMER"
	TypeSupplier Type = "SUPPLIER"
)

// Party is a customer or supplier with its dedicated sub-ledger.
type Party struct {
	entity.Base

	BusinessID id.ID  `db:"business_id" json:"businessId"`
	Name       string `db:"name" json:"name"`
	Type       Type   `db:"type" json:"type"`

	// LedgerID is the receivable (customer) or payable (supplier) sub-ledger
	// assigned by the catalog at creation.
	LedgerID id.ID `db:"ledger_id" json:"ledgerId"`

	// RunningBalance is a derived cache of the party sub-ledger balance,
	// signed by the ledger's normal side. Recomputed transactionally with
	// each posting and reconciled by the background worker; reports never
	// rely on it.
	RunningBalance types.MinorUnits `db:"running_balance" json:"runningBalance"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsCustomer reports whether the party ledger is a receivable.
func (p *Party) IsCustomer() bool { return p.Type == TypeCustomer }
