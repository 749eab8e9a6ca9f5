// Package main is the entry point for the khata reconciliation worker.
// It periodically recomputes the derived caches (party running balances,
// document settlement balances, item stock quantities) from the
// source-of-truth registers and repairs
// drift. The ledger is never adjusted from a cache.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"khata/internal/core/tenant"
	"khata/internal/infrastructure/storage/postgres"
	"khata/internal/infrastructure/storage/postgres/tenant_repo"
	"khata/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting khata reconciliation worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	interval := 5 * time.Minute
	if raw := os.Getenv("RECONCILE_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			interval = d
		}
	}

	worker := &Worker{
		pool:       pool,
		txManager:  postgres.NewTxManager(pool),
		businesses: tenant_repo.NewBusinessRepo(),
		log:        log.WithComponent("reconciler"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx, interval)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker walks every business on a fixed interval.
type Worker struct {
	pool       *postgres.Pool
	txManager  *postgres.TxManager
	businesses *tenant_repo.BusinessRepo
	log        *logger.Logger
}

// Run reconciles immediately and then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.reconcileAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcileAll(ctx)
		}
	}
}

func (w *Worker) reconcileAll(ctx context.Context) {
	ctx = tenant.WithPool(ctx, w.pool.Unwrap())
	ctx = tenant.WithTxManager(ctx, w.txManager)

	businesses, err := w.businesses.List(ctx)
	if err != nil {
		w.log.Errorw("failed to list businesses", "error", err)
		return
	}

	for i := range businesses {
		biz := &businesses[i]
		biz.ApplyDefaults()
		bizCtx := tenant.WithBusiness(ctx, biz)

		if err := w.reconcileBusiness(bizCtx); err != nil {
			w.log.Errorw("reconciliation failed",
				"business_id", biz.ID,
				"error", err,
			)
		}
	}
}

func (w *Worker) reconcileBusiness(ctx context.Context) error {
	return w.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := w.reconcilePartyBalances(ctx); err != nil {
			return err
		}
		if err := w.reconcileSettlements(ctx); err != nil {
			return err
		}
		return w.reconcileStockQuantities(ctx)
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
