package handlers

import (
	"github.com/gin-gonic/gin"

	"khata/internal/domain/ledger"
	"khata/internal/infrastructure/http/v1/dto"
)

// LedgerHandler exposes the chart of accounts.
type LedgerHandler struct {
	*BaseHandler
	ledgers *ledger.Service
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(base *BaseHandler, svc *ledger.Service) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, ledgers: svc}
}

// List returns the full chart of accounts.
// GET /api/v1/ledgers
func (h *LedgerHandler) List(c *gin.Context) {
	ledgers, err := h.ledgers.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ledgers)
}

// Get returns one ledger.
// GET /api/v1/ledgers/:id
func (h *LedgerHandler) Get(c *gin.Context) {
	ledgerID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	l, err := h.ledgers.Get(c.Request.Context(), ledgerID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, l)
}

// Create adds a user-defined ledger.
// POST /api/v1/ledgers
func (h *LedgerHandler) Create(c *gin.Context) {
	var req dto.CreateLedgerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l, err := h.ledgers.Create(c.Request.Context(), req.Name, req.ToGroup(), req.SubGroup)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, l.ID.String())
}
