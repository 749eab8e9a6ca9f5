// Package main provides a CLI tool for seeding the database with a demo
// business, its standard chart of accounts and a small catalog.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/joho/godotenv"

	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/internal/domain/catalogs/party"
	"khata/internal/domain/ledger"
	"khata/internal/infrastructure/storage/postgres"
	"khata/internal/infrastructure/storage/postgres/ledger_repo"
	"khata/internal/infrastructure/storage/postgres/tenant_repo"
	"khata/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	if os.Getenv("SKIP_MIGRATIONS") != "true" {
		runMigrations(dbURL, log)
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	ctx = tenant.WithPool(ctx, pool.Unwrap())
	ctx = tenant.WithTxManager(ctx, txManager)

	biz, err := seedBusiness(ctx, txManager, log)
	if err != nil {
		log.Fatalw("failed to seed business", "error", err)
	}
	ctx = tenant.WithBusiness(ctx, biz)

	if err := seedChartOfAccounts(ctx, biz, log); err != nil {
		log.Fatalw("failed to seed chart of accounts", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoCatalog(ctx, txManager, biz, log); err != nil {
			log.Fatalw("failed to seed demo catalog", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// runMigrations brings the schema up to date via goose before seeding.
// A failure is reported but not fatal: the schema may already be current
// and managed elsewhere.
func runMigrations(dbURL string, log *logger.Logger) {
	log.Info("running migrations")
	cmd := exec.Command("goose", "-dir", "db/migrations", "postgres", dbURL, "up")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Warnw("migrations failed; run them manually with goose", "error", err)
		return
	}
	log.Info("migrations completed")
}

func seedBusiness(ctx context.Context, txManager *postgres.TxManager, log *logger.Logger) (*tenant.Business, error) {
	name := os.Getenv("SEED_BUSINESS_NAME")
	if name == "" {
		name = "Demo Traders"
	}

	repo := tenant_repo.NewBusinessRepo()

	// Reuse an existing business of the same name; seeding is idempotent.
	querier := txManager.GetQuerier(ctx)
	var existingID id.ID
	err := querier.QueryRow(ctx,
		`SELECT id FROM businesses WHERE name = $1 LIMIT 1`, name).Scan(&existingID)
	if err == nil {
		log.Infow("business already exists", "id", existingID, "name", name)
		return repo.GetByID(ctx, existingID)
	}

	biz := &tenant.Business{
		ID:        id.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	biz.ApplyDefaults()
	if policy := tenant.ValuationPolicy(os.Getenv("SEED_VALUATION_POLICY")); policy.Valid() {
		biz.ValuationPolicy = policy
	}

	if err := repo.Create(ctx, biz); err != nil {
		return nil, err
	}

	log.Infow("business created", "id", biz.ID, "name", biz.Name, "policy", biz.ValuationPolicy)
	return biz, nil
}

func seedChartOfAccounts(ctx context.Context, biz *tenant.Business, log *logger.Logger) error {
	ledgers := ledger.NewService(ledger_repo.NewLedgerRepo())
	if err := ledgers.EnsureSystemLedgers(ctx, biz.ID); err != nil {
		return err
	}
	log.Info("system ledgers ensured")
	return nil
}

// seedDemoCatalog creates one customer, one supplier and two items. Parties
// get their dedicated sub-ledgers.
func seedDemoCatalog(ctx context.Context, txManager *postgres.TxManager, biz *tenant.Business, log *logger.Logger) error {
	ledgers := ledger.NewService(ledger_repo.NewLedgerRepo())
	querier := txManager.GetQuerier(ctx)

	var count int
	if err := querier.QueryRow(ctx,
		`SELECT COUNT(*) FROM parties WHERE business_id = $1`, biz.ID).Scan(&count); err != nil {
		return fmt.Errorf("check parties: %w", err)
	}
	if count > 0 {
		log.Info("demo catalog already seeded")
		return nil
	}

	now := time.Now().UTC()

	seedParty := func(name string, typ party.Type, group ledger.Group, subGroup string) error {
		subLedger, err := ledgers.Create(ctx, name, group, subGroup)
		if err != nil {
			return err
		}
		_, err = querier.Exec(ctx, `
			INSERT INTO parties (id, version, business_id, name, type, ledger_id, running_balance, updated_at)
			VALUES ($1, 1, $2, $3, $4, $5, 0, $6)`,
			id.New(), biz.ID, name, typ, subLedger.ID, now)
		if err != nil {
			return fmt.Errorf("insert party %s: %w", name, err)
		}
		return nil
	}

	if err := seedParty("Acme Retail", party.TypeCustomer, ledger.GroupAsset, "Accounts Receivable"); err != nil {
		return err
	}
	if err := seedParty("Bulk Supplies Co", party.TypeSupplier, ledger.GroupLiability, "Accounts Payable"); err != nil {
		return err
	}

	for _, name := range []string{"Widget", "Gadget"} {
		if _, err := querier.Exec(ctx, `
			INSERT INTO items (id, version, business_id, name, unit, valuation_policy, stock_qty, updated_at)
			VALUES ($1, 1, $2, $3, 'PCS', NULL, 0, $4)`,
			id.New(), biz.ID, name, now); err != nil {
			return fmt.Errorf("insert item %s: %w", name, err)
		}
	}

	log.Info("demo catalog seeded")
	return nil
}
