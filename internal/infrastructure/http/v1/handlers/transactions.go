package handlers

import (
	"github.com/gin-gonic/gin"

	"khata/internal/domain/posting"
	"khata/internal/infrastructure/http/v1/dto"
)

// TransactionHandler exposes the posting engine.
type TransactionHandler struct {
	*BaseHandler
	engine *posting.Engine
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(base *BaseHandler, engine *posting.Engine) *TransactionHandler {
	return &TransactionHandler{BaseHandler: base, engine: engine}
}

// Post posts a new transaction atomically.
// POST /api/v1/transactions
func (h *TransactionHandler) Post(c *gin.Context) {
	var req dto.PostTransactionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	postingReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	posted, err := h.engine.Post(c.Request.Context(), postingReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPosted(posted))
}

// Reverse posts the mirror of an existing transaction.
// POST /api/v1/transactions/:id/reverse
func (h *TransactionHandler) Reverse(c *gin.Context) {
	txnID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	posted, err := h.engine.Reverse(c.Request.Context(), txnID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPosted(posted))
}

// Get returns a posted transaction with its lines and journal.
// GET /api/v1/transactions/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	txnID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	detail, err := h.engine.Get(c.Request.Context(), txnID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, detail)
}
