package handlers

import (
	"github.com/gin-gonic/gin"

	"khata/internal/domain/reports"
)

// ReportsHandler exposes the report engine. Every report derives from the
// journal and registers at request time.
type ReportsHandler struct {
	*BaseHandler
	reports *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, svc *reports.Service) *ReportsHandler {
	return &ReportsHandler{BaseHandler: base, reports: svc}
}

// TrialBalance returns per-ledger totals with the system-wide self-check.
// GET /api/v1/reports/trial-balance?asOf=2026-08-29
func (h *ReportsHandler) TrialBalance(c *gin.Context) {
	asOf, ok := h.DateQuery(c, "asOf")
	if !ok {
		return
	}

	tb, err := h.reports.TrialBalance(c.Request.Context(), asOf)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, tb)
}

// ProfitAndLoss returns revenue, COGS and expenses over a period.
// GET /api/v1/reports/profit-loss?from=2026-04-01&to=2026-08-29
func (h *ReportsHandler) ProfitAndLoss(c *gin.Context) {
	from, to, ok := h.RangeQuery(c)
	if !ok {
		return
	}

	pl, err := h.reports.ProfitAndLoss(c.Request.Context(), from, to)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, pl)
}

// BalanceSheet returns the position statement as of a date.
// GET /api/v1/reports/balance-sheet?asOf=2026-08-29
func (h *ReportsHandler) BalanceSheet(c *gin.Context) {
	asOf, ok := h.DateQuery(c, "asOf")
	if !ok {
		return
	}

	bs, err := h.reports.BalanceSheet(c.Request.Context(), asOf)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, bs)
}

// CashFlow returns cash movement over a period.
// GET /api/v1/reports/cash-flow?from=2026-04-01&to=2026-08-29
func (h *ReportsHandler) CashFlow(c *gin.Context) {
	from, to, ok := h.RangeQuery(c)
	if !ok {
		return
	}

	cf, err := h.reports.CashFlow(c.Request.Context(), from, to)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cf)
}

// BillProfit returns the per-line margin of one sale.
// GET /api/v1/reports/bill-profit/:txnId
func (h *ReportsHandler) BillProfit(c *gin.Context) {
	txnID, ok := h.ParseID(c, "txnId")
	if !ok {
		return
	}

	bp, err := h.reports.BillProfit(c.Request.Context(), txnID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, bp)
}

// DayBook returns the chronological activity of one day.
// GET /api/v1/reports/day-book?date=2026-08-29
func (h *ReportsHandler) DayBook(c *gin.Context) {
	date, ok := h.DateQuery(c, "date")
	if !ok {
		return
	}

	db, err := h.reports.DayBook(c.Request.Context(), date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, db)
}

// StockSummary returns on-hand quantity and value by item.
// GET /api/v1/reports/stock-summary?asOf=2026-08-29
func (h *ReportsHandler) StockSummary(c *gin.Context) {
	asOf, ok := h.DateQuery(c, "asOf")
	if !ok {
		return
	}

	ss, err := h.reports.StockSummary(c.Request.Context(), asOf)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ss)
}
