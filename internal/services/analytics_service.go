package services

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"time"

	"financeflow/internal/core"
	"financeflow/internal/store"
)

// AnalyticsStore is the storage surface the aggregator reads from (and the
// snapshot cache it writes to).
type AnalyticsStore interface {
	store.TransactionStore
	store.AccountStore
	store.BudgetStore
	store.SnapshotStore
}

const (
	spendingWindowDays = 30
	insightTopN        = 3
	insightTrendMonths = 3
)

// AnalyticsService computes the read-only financial views over the ledger.
// Every balance and aggregate is recomputed from transactions at call time;
// cached snapshots are advisory and never consulted for answers.
type AnalyticsService struct {
	store AnalyticsStore
	now   func() time.Time
}

func NewAnalyticsService(st AnalyticsStore) *AnalyticsService {
	return NewAnalyticsServiceWithClock(st, time.Now)
}

// NewAnalyticsServiceWithClock pins the clock, used by tests to fix "now".
func NewAnalyticsServiceWithClock(st AnalyticsStore, now func() time.Time) *AnalyticsService {
	if now == nil {
		now = time.Now
	}
	return &AnalyticsService{store: st, now: now}
}

func (s *AnalyticsService) accountIDs(ctx context.Context, userID int64) ([]core.Account, []int64, error) {
	accounts, err := s.store.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load accounts for user %d: %w", userID, err)
	}
	ids := make([]int64, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	return accounts, ids, nil
}

// TotalBalance recomputes the user's total balance as the sum of opening
// balances plus every transaction amount. Stale flags set by the importer are
// cleared here: the aggregator is the balance authority.
func (s *AnalyticsService) TotalBalance(ctx context.Context, userID int64) (core.Money, error) {
	accounts, ids, err := s.accountIDs(ctx, userID)
	if err != nil {
		return core.Money{}, err
	}
	if len(ids) == 0 {
		return core.Money{}, nil
	}

	txs, err := s.store.Transactions(ctx, store.TransactionFilter{AccountIDs: ids})
	if err != nil {
		return core.Money{}, fmt.Errorf("load transactions for user %d: %w", userID, err)
	}

	var total core.Money
	for _, a := range accounts {
		total = total.Add(a.OpeningBalance)
	}
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}

	for _, a := range accounts {
		if !a.BalanceStale {
			continue
		}
		if err := s.store.MarkBalanceStale(ctx, a.ID, false); err != nil {
			slog.WarnContext(ctx, "Failed to clear stale-balance flag",
				"account_id", a.ID, "error", err)
		}
	}
	return total, nil
}

// SpendingByCategory sums absolute expense amounts per category over the
// trailing daysBack days. Categories with no matching transactions are
// omitted; the result is ordered by spend descending.
func (s *AnalyticsService) SpendingByCategory(ctx context.Context, userID int64, daysBack int) ([]core.CategorySpend, error) {
	if daysBack <= 0 {
		return nil, core.ErrInvalidDaysBack
	}
	_, ids, err := s.accountIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	now := s.now().UTC()
	txs, err := s.store.Transactions(ctx, store.TransactionFilter{
		AccountIDs:   ids,
		From:         now.AddDate(0, 0, -daysBack),
		OnlyExpenses: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load expenses for user %d: %w", userID, err)
	}
	return groupByCategory(txs), nil
}

func groupByCategory(txs []core.Transaction) []core.CategorySpend {
	sums := make(map[core.Category]int64)
	for _, tx := range txs {
		sums[tx.Category] += tx.Amount.Abs().Cents
	}
	out := make([]core.CategorySpend, 0, len(sums))
	for cat, cents := range sums {
		out = append(out, core.CategorySpend{Category: cat, Spent: core.CentsOf(cents)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Spent.Cents != out[j].Spent.Cents {
			return out[i].Spent.Cents > out[j].Spent.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// BudgetStatus reports current-month spend against every configured budget.
// A budget with no limit is always within limit with percentage zero. A
// failed computation for one category is logged and does not block the rest.
func (s *AnalyticsService) BudgetStatus(ctx context.Context, userID int64) ([]core.BudgetStatus, error) {
	budgets, err := s.store.BudgetsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load budgets for user %d: %w", userID, err)
	}
	_, ids, err := s.accountIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		var spent core.Money
		if len(ids) > 0 {
			txs, err := s.store.Transactions(ctx, store.TransactionFilter{
				AccountIDs:   ids,
				From:         monthStart,
				Category:     b.Category,
				OnlyExpenses: true,
			})
			if err != nil {
				slog.ErrorContext(ctx, "Budget computation failed for category",
					"user_id", userID, "category", b.Category, "error", err)
				continue
			}
			for _, tx := range txs {
				spent = spent.Add(tx.Amount.Abs())
			}
		}

		status := core.BudgetStatus{
			Category:       b.Category,
			MonthlyLimit:   b.MonthlyLimit,
			SpentThisMonth: spent,
			PercentUsed:    core.BasisPoints(spent, b.MonthlyLimit),
			State:          core.BudgetWithinLimit,
		}
		if remaining := b.MonthlyLimit.Sub(spent); remaining.Cents > 0 {
			status.Remaining = remaining
		}
		if b.MonthlyLimit.Cents > 0 && spent.Cents > b.MonthlyLimit.Cents {
			status.State = core.BudgetExceeded
		}
		out = append(out, status)
	}
	return out, nil
}

// MonthlyBalanceTrend returns a lazy, restartable sequence of per-month
// aggregates for the trailing numMonths calendar months ending at the current
// month, oldest first. Every entry is recomputed from the ledger; the
// snapshot cache is never consulted, so a stale cache cannot skew the trend.
func (s *AnalyticsService) MonthlyBalanceTrend(ctx context.Context, userID int64, numMonths int) (iter.Seq2[core.MonthlyNet, error], error) {
	if numMonths <= 0 {
		return nil, core.ErrInvalidMonths
	}
	return func(yield func(core.MonthlyNet, error) bool) {
		_, ids, err := s.accountIDs(ctx, userID)
		if err != nil {
			yield(core.MonthlyNet{}, err)
			return
		}
		now := s.now().UTC()
		current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		for i := numMonths - 1; i >= 0; i-- {
			month := current.AddDate(0, -i, 0)
			net, err := s.monthNet(ctx, ids, month)
			if !yield(net, err) || err != nil {
				return
			}
		}
	}, nil
}

func (s *AnalyticsService) monthNet(ctx context.Context, accountIDs []int64, monthStart time.Time) (core.MonthlyNet, error) {
	net := core.MonthlyNet{Year: monthStart.Year(), Month: int(monthStart.Month())}
	if len(accountIDs) == 0 {
		return net, nil
	}
	txs, err := s.store.Transactions(ctx, store.TransactionFilter{
		AccountIDs: accountIDs,
		From:       monthStart,
		To:         monthStart.AddDate(0, 1, 0),
	})
	if err != nil {
		return net, fmt.Errorf("load transactions for %d-%02d: %w", net.Year, net.Month, err)
	}
	for _, tx := range txs {
		if tx.IsExpense() {
			net.TotalExpenses = net.TotalExpenses.Add(tx.Amount.Abs())
		} else {
			net.TotalIncome = net.TotalIncome.Add(tx.Amount)
		}
	}
	net.NetBalance = net.TotalIncome.Sub(net.TotalExpenses)
	return net, nil
}

// RefreshSnapshot recomputes one month from the ledger and overwrites the
// cached snapshot. Idempotent; safe to run at any time, from the worker or
// on demand.
func (s *AnalyticsService) RefreshSnapshot(ctx context.Context, userID int64, year, month int) (core.MonthlySnapshot, error) {
	if month < 1 || month > 12 {
		return core.MonthlySnapshot{}, core.ErrInvalidDate
	}
	_, ids, err := s.accountIDs(ctx, userID)
	if err != nil {
		return core.MonthlySnapshot{}, err
	}
	net, err := s.monthNet(ctx, ids, time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return core.MonthlySnapshot{}, err
	}
	snap := core.MonthlySnapshot{
		UserID:        userID,
		Year:          year,
		Month:         month,
		TotalIncome:   net.TotalIncome,
		TotalExpenses: net.TotalExpenses,
		NetBalance:    net.NetBalance,
		RefreshedAt:   s.now().UTC(),
	}
	if err := s.store.UpsertSnapshot(ctx, snap); err != nil {
		return core.MonthlySnapshot{}, fmt.Errorf("upsert snapshot %d-%02d: %w", year, month, err)
	}
	return snap, nil
}

// MonthlyReport assembles the full view of one calendar month, consumed by
// the report exporter and the API.
func (s *AnalyticsService) MonthlyReport(ctx context.Context, userID int64, year, month int) (core.MonthlyReport, error) {
	if month < 1 || month > 12 {
		return core.MonthlyReport{}, core.ErrInvalidDate
	}
	_, ids, err := s.accountIDs(ctx, userID)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	report := core.MonthlyReport{Year: year, Month: month}
	if len(ids) == 0 {
		return report, nil
	}

	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	txs, err := s.store.Transactions(ctx, store.TransactionFilter{
		AccountIDs: ids,
		From:       monthStart,
		To:         monthStart.AddDate(0, 1, 0),
	})
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("load transactions for %d-%02d: %w", year, month, err)
	}

	var expenses []core.Transaction
	for _, tx := range txs {
		if tx.IsExpense() {
			report.TotalExpenses = report.TotalExpenses.Add(tx.Amount.Abs())
			expenses = append(expenses, tx)
		} else {
			report.TotalIncome = report.TotalIncome.Add(tx.Amount)
		}
	}
	report.NetBalance = report.TotalIncome.Sub(report.TotalExpenses)
	report.ByCategory = groupByCategory(expenses)
	report.TransactionCount = len(txs)
	return report, nil
}

// Insights composes the other aggregates into a small advisory view; it adds
// no computation of its own beyond averaging the recent trend.
func (s *AnalyticsService) Insights(ctx context.Context, userID int64) (core.Insights, error) {
	total, err := s.TotalBalance(ctx, userID)
	if err != nil {
		return core.Insights{}, err
	}

	spending, err := s.SpendingByCategory(ctx, userID, spendingWindowDays)
	if err != nil {
		return core.Insights{}, err
	}
	if len(spending) > insightTopN {
		spending = spending[:insightTopN]
	}

	budgets, err := s.BudgetStatus(ctx, userID)
	if err != nil {
		return core.Insights{}, err
	}
	var exceeded []core.BudgetStatus
	for _, b := range budgets {
		if b.State == core.BudgetExceeded {
			exceeded = append(exceeded, b)
		}
	}

	trend, err := s.MonthlyBalanceTrend(ctx, userID, insightTrendMonths)
	if err != nil {
		return core.Insights{}, err
	}
	var expenseSum int64
	months := 0
	for net, err := range trend {
		if err != nil {
			return core.Insights{}, err
		}
		expenseSum += net.TotalExpenses.Cents
		months++
	}
	var avg core.Money
	if months > 0 {
		avg = core.CentsOf(expenseSum / int64(months))
	}

	insights := core.Insights{
		TotalBalance:          total,
		TopCategories:         spending,
		ExceededBudgets:       exceeded,
		AverageMonthlyExpense: avg,
		Recommendation:        recommendation(exceeded, avg, spending),
	}
	return insights, nil
}

func recommendation(exceeded []core.BudgetStatus, avgExpense core.Money, top []core.CategorySpend) string {
	switch {
	case len(exceeded) > 0:
		return fmt.Sprintf("You exceeded the budget in %d categories. Consider cutting back there first.", len(exceeded))
	case avgExpense.Cents > 300000:
		return fmt.Sprintf("Average monthly spending of %s is high. Review the largest recurring expenses.", avgExpense)
	case len(top) > 0 && top[0].Spent.Cents > 50000:
		return fmt.Sprintf("%s is your biggest expense category this month. A small cut there goes furthest.", top[0].Category)
	default:
		return "Your finances look balanced."
	}
}
