package dto

import (
	"khata/internal/domain/ledger"
)

// CreateLedgerRequest represents a request to create a ledger account.
type CreateLedgerRequest struct {
	Name     string `json:"name" binding:"required"`
	Group    string `json:"group" binding:"required"`
	SubGroup string `json:"subGroup,omitempty"`
}

// ToGroup converts the raw group string.
func (r *CreateLedgerRequest) ToGroup() ledger.Group {
	return ledger.Group(r.Group)
}
