package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/core/tenant"
	"khata/internal/core/tx"
	"khata/internal/core/types"
	"khata/internal/domain/ledger"
	"khata/internal/domain/posting"
	"khata/pkg/logger"
)

// Service is the report engine. Every report is a pure function of the
// journal and document tables as of its arguments, computed inside a
// read-only transaction.
type Service struct {
	repo Repository
	txm  tx.ReadOnlyManager
}

// NewService creates a report engine.
func NewService(repo Repository, txm tx.ReadOnlyManager) *Service {
	return &Service{repo: repo, txm: txm}
}

// TrialBalance lists per-account debit/credit totals through asOf and runs
// the system-wide Σdebit == Σcredit self-check.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (*TrialBalance, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}

	var report *TrialBalance
	err = s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		balances, err := s.repo.BalancesAsOf(ctx, biz.ID, asOf)
		if err != nil {
			return fmt.Errorf("ledger balances: %w", err)
		}

		report = &TrialBalance{AsOf: asOf, Rows: make([]TrialBalanceRow, 0, len(balances))}
		for _, b := range balances {
			report.Rows = append(report.Rows, TrialBalanceRow{
				LedgerID: b.LedgerID,
				Name:     b.Name,
				Group:    b.Group,
				Debit:    b.Debit,
				Credit:   b.Credit,
				Closing:  b.Closing(),
			})
			report.DebitTotal += b.Debit
			report.CreditTotal += b.Credit
		}
		report.Balanced = report.DebitTotal == report.CreditTotal
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Balanced {
		// Data-integrity incident: the journal itself is off. Escalate,
		// never tolerate.
		logger.Error(ctx, "trial balance self-check failed",
			"as_of", asOf,
			"debit_total", int64(report.DebitTotal),
			"credit_total", int64(report.CreditTotal),
		)
	}
	return report, nil
}

// ProfitAndLoss computes revenue, COGS, other expenses and net profit over
// [from, to].
func (s *Service) ProfitAndLoss(ctx context.Context, from, to time.Time) (*ProfitAndLoss, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}

	var report *ProfitAndLoss
	err = s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		balances, err := s.repo.BalancesInRange(ctx, biz.ID, from, to)
		if err != nil {
			return fmt.Errorf("ledger balances: %w", err)
		}

		report = &ProfitAndLoss{From: from, To: to}
		for _, b := range balances {
			switch b.Group {
			case ledger.GroupIncome:
				report.Revenue += b.Closing()
			case ledger.GroupExpense:
				if b.SystemKind != nil && *b.SystemKind == ledger.SystemCOGS {
					report.COGS += b.Closing()
				} else {
					report.Expenses += b.Closing()
				}
			}
		}
		report.NetProfit = report.Revenue - report.COGS - report.Expenses
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// BalanceSheet builds the position statement as of a date and asserts the
// accounting identity Assets == Liabilities + Equity, with cumulative net
// profit folded into equity.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (*BalanceSheet, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}

	var report *BalanceSheet
	err = s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		balances, err := s.repo.BalancesAsOf(ctx, biz.ID, asOf)
		if err != nil {
			return fmt.Errorf("ledger balances: %w", err)
		}

		report = &BalanceSheet{
			AsOf:        asOf,
			Assets:      BalanceSheetGroup{Group: ledger.GroupAsset},
			Liabilities: BalanceSheetGroup{Group: ledger.GroupLiability},
			Equity:      BalanceSheetGroup{Group: ledger.GroupEquity},
		}

		for _, b := range balances {
			row := TrialBalanceRow{
				LedgerID: b.LedgerID,
				Name:     b.Name,
				Group:    b.Group,
				Debit:    b.Debit,
				Credit:   b.Credit,
				Closing:  b.Closing(),
			}
			switch b.Group {
			case ledger.GroupAsset:
				report.Assets.Rows = append(report.Assets.Rows, row)
				report.Assets.Total += row.Closing
			case ledger.GroupLiability:
				report.Liabilities.Rows = append(report.Liabilities.Rows, row)
				report.Liabilities.Total += row.Closing
			case ledger.GroupEquity:
				report.Equity.Rows = append(report.Equity.Rows, row)
				report.Equity.Total += row.Closing
			case ledger.GroupIncome:
				report.RetainedProfit += row.Closing
			case ledger.GroupExpense:
				report.RetainedProfit -= row.Closing
			}
		}

		report.Equity.Total += report.RetainedProfit
		report.Balanced = report.Assets.Total == report.Liabilities.Total+report.Equity.Total
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Balanced {
		logger.Error(ctx, "balance sheet identity violated",
			"as_of", asOf,
			"assets", int64(report.Assets.Total),
			"liabilities", int64(report.Liabilities.Total),
			"equity", int64(report.Equity.Total),
		)
	}
	return report, nil
}

// CashFlow sums cash/bank ledger debits (inflow) and credits (outflow) over
// [from, to].
func (s *Service) CashFlow(ctx context.Context, from, to time.Time) (*CashFlow, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}

	var report *CashFlow
	err = s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		totals, err := s.repo.CashFlows(ctx, biz.ID, from, to)
		if err != nil {
			return fmt.Errorf("cash flows: %w", err)
		}
		report = &CashFlow{
			From:    from,
			To:      to,
			Inflow:  totals.Inflow,
			Outflow: totals.Outflow,
			Net:     totals.Inflow - totals.Outflow,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// BillProfit computes per-line margin (rate - costPrice) x qty for one
// posted sale. Margin is meaningless on other document types, so anything
// but a SALE is rejected.
func (s *Service) BillProfit(ctx context.Context, txnID id.ID) (*BillProfit, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}

	var report *BillProfit
	err = s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		txn, err := s.repo.Transaction(ctx, biz.ID, txnID)
		if err != nil {
			return err
		}
		if txn.Type != posting.TypeSale {
			return apperror.NewValidation("bill profit applies to sales only").
				WithDetail("transaction_id", txnID.String()).
				WithDetail("type", string(txn.Type))
		}
		items, err := s.repo.TransactionItems(ctx, biz.ID, txnID)
		if err != nil {
			return fmt.Errorf("transaction items: %w", err)
		}

		report = &BillProfit{TransactionID: txn.ID, Number: txn.Number}
		for _, it := range items {
			profit := types.MulQtyUnits(it.Rate-it.CostPrice, it.Qty)
			report.Lines = append(report.Lines, BillProfitLine{
				ItemID:    it.ItemID,
				Qty:       it.Qty,
				Rate:      it.Rate,
				CostPrice: it.CostPrice,
				Profit:    profit,
			})
			report.TotalProfit += profit
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// DayBook merges the transactions and payments of one date chronologically.
func (s *Service) DayBook(ctx context.Context, date time.Time) (*DayBook, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}

	var report *DayBook
	err = s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		txns, err := s.repo.TransactionsByDate(ctx, biz.ID, date)
		if err != nil {
			return fmt.Errorf("transactions by date: %w", err)
		}
		payments, err := s.repo.PaymentsByDate(ctx, biz.ID, date)
		if err != nil {
			return fmt.Errorf("payments by date: %w", err)
		}

		report = &DayBook{Date: date, Lines: make([]DayBookLine, 0, len(txns)+len(payments))}
		for _, t := range txns {
			report.Lines = append(report.Lines, DayBookLine{
				At:     t.CreatedAt,
				Kind:   "TRANSACTION",
				ID:     t.ID,
				Number: t.Number,
				Type:   string(t.Type),
				Amount: t.TotalAmount,
				Party:  t.PartyID,
			})
		}
		for _, p := range payments {
			report.Lines = append(report.Lines, DayBookLine{
				At:     p.CreatedAt,
				Kind:   "PAYMENT",
				ID:     p.ID,
				Type:   string(p.Direction),
				Amount: p.Amount,
				Party:  p.PartyID,
			})
		}

		sort.SliceStable(report.Lines, func(i, j int) bool {
			return report.Lines[i].At.Before(report.Lines[j].At)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// StockSummary reports on-hand quantity and value per item through asOf,
// derived from the stock register.
func (s *Service) StockSummary(ctx context.Context, asOf time.Time) (*StockSummary, error) {
	biz, err := tenant.MustGetBusiness(ctx)
	if err != nil {
		return nil, err
	}

	var report *StockSummary
	err = s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		rows, err := s.repo.StockOnHand(ctx, biz.ID, asOf)
		if err != nil {
			return fmt.Errorf("stock on hand: %w", err)
		}
		report = &StockSummary{AsOf: asOf, Rows: rows}
		for _, r := range rows {
			report.TotalValue += r.Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
