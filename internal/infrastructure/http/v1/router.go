// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"khata/internal/domain/ledger"
	"khata/internal/domain/posting"
	"khata/internal/domain/reports"
	"khata/internal/domain/stock"
	"khata/internal/infrastructure/http/v1/handlers"
	"khata/internal/infrastructure/http/v1/middleware"
	"khata/internal/infrastructure/numerator"
	"khata/internal/infrastructure/storage/postgres"
	"khata/internal/infrastructure/storage/postgres/catalog_repo"
	"khata/internal/infrastructure/storage/postgres/ledger_repo"
	"khata/internal/infrastructure/storage/postgres/posting_repo"
	"khata/internal/infrastructure/storage/postgres/report_repo"
	"khata/internal/infrastructure/storage/postgres/stock_repo"
	"khata/internal/infrastructure/storage/postgres/tenant_repo"
	"khata/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool.
	Pool *postgres.Pool

	// TxManager manages transactions over the pool.
	TxManager *postgres.TxManager

	// Logger for request logging.
	Logger *logger.Logger

	// Audit records posting actions; nil disables the audit trail.
	Audit *postgres.AuditService
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters).
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no business required).
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Repos and services are created once; TxManager state travels in the
	// request context.
	businessRepo := tenant_repo.NewBusinessRepo()
	ledgerService := ledger.NewService(ledger_repo.NewLedgerRepo())
	partyRepo := catalog_repo.NewPartyRepo()
	itemRepo := catalog_repo.NewItemRepo()
	stockService := stock.NewService(stock_repo.NewStockRepo())
	postingRepo := posting_repo.NewPostingRepo()
	numbers := numerator.NewDocumentNumberer()

	var audit posting.AuditRecorder
	if cfg.Audit != nil {
		audit = cfg.Audit
	}
	engine := posting.NewEngine(postingRepo, ledgerService, partyRepo, itemRepo,
		stockService, numbers, cfg.TxManager, audit)
	reportService := reports.NewService(report_repo.NewReportRepo(postingRepo), cfg.TxManager)

	baseHandler := handlers.NewBaseHandler()
	txnHandler := handlers.NewTransactionHandler(baseHandler, engine)
	ledgerHandler := handlers.NewLedgerHandler(baseHandler, ledgerService)
	reportsHandler := handlers.NewReportsHandler(baseHandler, reportService)

	// API v1: every endpoint runs inside a business boundary.
	api := router.Group("/api/v1")
	api.Use(middleware.BusinessContext(cfg.Pool, cfg.TxManager, businessRepo))
	api.Use(middleware.ActorContext())
	{
		txns := api.Group("/transactions")
		{
			txns.POST("", txnHandler.Post)
			txns.GET("/:id", txnHandler.Get)
			txns.POST("/:id/reverse", txnHandler.Reverse)
		}

		ledgers := api.Group("/ledgers")
		{
			ledgers.GET("", ledgerHandler.List)
			ledgers.POST("", ledgerHandler.Create)
			ledgers.GET("/:id", ledgerHandler.Get)
		}

		reportsGroup := api.Group("/reports")
		{
			reportsGroup.GET("/trial-balance", reportsHandler.TrialBalance)
			reportsGroup.GET("/profit-loss", reportsHandler.ProfitAndLoss)
			reportsGroup.GET("/balance-sheet", reportsHandler.BalanceSheet)
			reportsGroup.GET("/cash-flow", reportsHandler.CashFlow)
			reportsGroup.GET("/bill-profit/:txnId", reportsHandler.BillProfit)
			reportsGroup.GET("/day-book", reportsHandler.DayBook)
			reportsGroup.GET("/stock-summary", reportsHandler.StockSummary)
		}
	}

	return router
}
