package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"financeflow/internal/core"
	"financeflow/internal/store/memory"
)

func analyticsNow() time.Time {
	return time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
}

type analyticsFixture struct {
	store   *memory.Store
	svc     *AnalyticsService
	userID  int64
	account int64
}

func newAnalyticsFixture(t *testing.T) *analyticsFixture {
	t.Helper()
	st := memory.New()
	accountID, err := st.CreateAccount(context.Background(), core.Account{UserID: 1, Name: "Checking", Currency: "EUR"})
	if err != nil {
		t.Fatal(err)
	}
	return &analyticsFixture{
		store:   st,
		svc:     NewAnalyticsServiceWithClock(st, analyticsNow),
		userID:  1,
		account: accountID,
	}
}

func (f *analyticsFixture) insert(t *testing.T, cents int64, category core.Category, when time.Time) {
	t.Helper()
	_, err := f.store.InsertTransaction(context.Background(), core.Transaction{
		AccountID:   f.account,
		Amount:      core.CentsOf(cents),
		Category:    category,
		Description: "fixture",
		OccurredAt:  when,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTotalBalanceSumsAllTransactions(t *testing.T) {
	f := newAnalyticsFixture(t)
	ctx := context.Background()
	when := analyticsNow().AddDate(0, 0, -5)

	f.insert(t, 250000, core.CategorySalary, when)
	f.insert(t, -4550, core.CategoryFood, when)
	f.insert(t, -1230, core.CategoryTransport, when)

	total, err := f.svc.TotalBalance(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if got := total.String(); got != "2442.20" {
		t.Fatalf("expected total 2442.20, got %s", got)
	}
}

func TestTotalBalanceIncludesOpeningBalanceAndClearsStale(t *testing.T) {
	f := newAnalyticsFixture(t)
	ctx := context.Background()

	second, err := f.store.CreateAccount(ctx, core.Account{
		UserID:         f.userID,
		Name:           "Savings",
		Currency:       "EUR",
		OpeningBalance: core.CentsOf(100000),
	})
	if err != nil {
		t.Fatal(err)
	}
	f.insert(t, -2500, core.CategoryFood, analyticsNow().AddDate(0, 0, -1))
	if err := f.store.MarkBalanceStale(ctx, f.account, true); err != nil {
		t.Fatal(err)
	}

	total, err := f.svc.TotalBalance(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if total.Cents != 97500 {
		t.Fatalf("expected 97500 cents, got %d", total.Cents)
	}

	account, err := f.store.Account(ctx, f.account)
	if err != nil {
		t.Fatal(err)
	}
	if account.BalanceStale {
		t.Fatal("stale flag must be cleared after recompute")
	}
	if _, err := f.store.Account(ctx, second); err != nil {
		t.Fatal(err)
	}
}

func TestTotalBalanceNoAccounts(t *testing.T) {
	st := memory.New()
	svc := NewAnalyticsServiceWithClock(st, analyticsNow)
	total, err := svc.TotalBalance(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if !total.IsZero() {
		t.Fatalf("expected zero balance, got %s", total)
	}
}

func TestSpendingByCategoryOmitsEmptyAndOrdersBySpend(t *testing.T) {
	f := newAnalyticsFixture(t)
	recent := analyticsNow().AddDate(0, 0, -3)

	f.insert(t, -3000, core.CategoryFood, recent)
	f.insert(t, -1550, core.CategoryFood, recent.AddDate(0, 0, -1))
	f.insert(t, -8000, core.CategoryShopping, recent)
	f.insert(t, 250000, core.CategorySalary, recent)
	// Outside the 30-day window.
	f.insert(t, -9999, core.CategoryTransport, analyticsNow().AddDate(0, 0, -45))

	spend, err := f.svc.SpendingByCategory(context.Background(), f.userID, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(spend) != 2 {
		t.Fatalf("expected 2 categories (empty ones omitted), got %d: %+v", len(spend), spend)
	}
	if spend[0].Category != core.CategoryShopping || spend[0].Spent.Cents != 8000 {
		t.Fatalf("expected shopping 8000 first, got %+v", spend[0])
	}
	if spend[1].Category != core.CategoryFood || spend[1].Spent.Cents != 4550 {
		t.Fatalf("expected food 4550 second, got %+v", spend[1])
	}
}

func TestSpendingByCategoryRejectsInvalidWindow(t *testing.T) {
	f := newAnalyticsFixture(t)
	if _, err := f.svc.SpendingByCategory(context.Background(), f.userID, 0); !errors.Is(err, core.ErrInvalidDaysBack) {
		t.Fatalf("expected ErrInvalidDaysBack, got %v", err)
	}
}

func TestBudgetStatusExceeded(t *testing.T) {
	f := newAnalyticsFixture(t)
	ctx := context.Background()
	if err := f.store.UpsertBudget(ctx, core.Budget{
		UserID:       f.userID,
		Category:     core.CategoryFood,
		MonthlyLimit: core.CentsOf(20000),
	}); err != nil {
		t.Fatal(err)
	}

	monthStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	f.insert(t, -15000, core.CategoryFood, monthStart.AddDate(0, 0, 4))
	f.insert(t, -8000, core.CategoryFood, monthStart.AddDate(0, 0, 12))
	// Last month's food spend must not count.
	f.insert(t, -50000, core.CategoryFood, monthStart.AddDate(0, 0, -2))

	statuses, err := f.svc.BudgetStatus(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 budget status, got %d", len(statuses))
	}
	got := statuses[0]
	if got.State != core.BudgetExceeded {
		t.Fatalf("expected exceeded, got %s", got.State)
	}
	if got.SpentThisMonth.Cents != 23000 {
		t.Fatalf("expected spent 23000, got %d", got.SpentThisMonth.Cents)
	}
	if got.PercentUsed != 11500 {
		t.Fatalf("expected 115.00%% (11500 bp), got %d", got.PercentUsed)
	}
	if pct := core.FormatBasisPoints(got.PercentUsed); pct != "115.00" {
		t.Fatalf("expected formatted 115.00, got %s", pct)
	}
	if !got.Remaining.IsZero() {
		t.Fatalf("remaining clamps at zero when exceeded, got %s", got.Remaining)
	}
}

func TestBudgetStatusWithinLimit(t *testing.T) {
	f := newAnalyticsFixture(t)
	ctx := context.Background()
	if err := f.store.UpsertBudget(ctx, core.Budget{
		UserID:       f.userID,
		Category:     core.CategoryTransport,
		MonthlyLimit: core.CentsOf(10000),
	}); err != nil {
		t.Fatal(err)
	}
	f.insert(t, -2500, core.CategoryTransport, time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC))

	statuses, err := f.svc.BudgetStatus(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	got := statuses[0]
	if got.State != core.BudgetWithinLimit || got.Remaining.Cents != 7500 || got.PercentUsed != 2500 {
		t.Fatalf("unexpected status: %+v", got)
	}
}

func TestBudgetStatusZeroLimit(t *testing.T) {
	f := newAnalyticsFixture(t)
	ctx := context.Background()
	if err := f.store.UpsertBudget(ctx, core.Budget{
		UserID:   f.userID,
		Category: core.CategoryEntertainment,
	}); err != nil {
		t.Fatal(err)
	}
	f.insert(t, -4200, core.CategoryEntertainment, time.Date(2026, 8, 15, 20, 0, 0, 0, time.UTC))

	statuses, err := f.svc.BudgetStatus(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	got := statuses[0]
	if got.PercentUsed != 0 {
		t.Fatalf("zero limit must report percentage 0, got %d", got.PercentUsed)
	}
	if got.State != core.BudgetWithinLimit {
		t.Fatalf("zero limit never flips to exceeded, got %s", got.State)
	}
}

func TestMonthlyBalanceTrendOrderAndContent(t *testing.T) {
	f := newAnalyticsFixture(t)

	// June, July, August 2026.
	f.insert(t, 250000, core.CategorySalary, time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	f.insert(t, -50000, core.CategoryFood, time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC))
	f.insert(t, 250000, core.CategorySalary, time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))
	f.insert(t, -30000, core.CategoryShopping, time.Date(2026, 7, 20, 12, 0, 0, 0, time.UTC))
	f.insert(t, 250000, core.CategorySalary, time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC))

	trend, err := f.svc.MonthlyBalanceTrend(context.Background(), f.userID, 3)
	if err != nil {
		t.Fatal(err)
	}

	var got []core.MonthlyNet
	for net, err := range trend {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, net)
	}
	if len(got) != 3 {
		t.Fatalf("expected exactly 3 entries, got %d", len(got))
	}
	wantMonths := [3]int{6, 7, 8}
	for i, net := range got {
		if net.Year != 2026 || net.Month != wantMonths[i] {
			t.Fatalf("entry %d: expected 2026-%02d, got %d-%02d", i, wantMonths[i], net.Year, net.Month)
		}
	}
	if got[0].NetBalance.Cents != 200000 {
		t.Fatalf("June net: expected 200000, got %d", got[0].NetBalance.Cents)
	}
	if got[1].TotalIncome.Cents != 250000 || got[1].TotalExpenses.Cents != 30000 {
		t.Fatalf("July aggregates wrong: %+v", got[1])
	}
	if got[2].TotalExpenses.Cents != 0 || got[2].NetBalance.Cents != 250000 {
		t.Fatalf("August aggregates wrong: %+v", got[2])
	}
}

func TestMonthlyBalanceTrendIsRestartable(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.insert(t, -1000, core.CategoryFood, time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC))

	trend, err := f.svc.MonthlyBalanceTrend(context.Background(), f.userID, 2)
	if err != nil {
		t.Fatal(err)
	}

	// First pass stops after one entry; a second full pass starts over.
	for range trend {
		break
	}
	count := 0
	for _, err := range trend {
		if err != nil {
			t.Fatal(err)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("restarted iteration must yield all 2 entries, got %d", count)
	}
}

func TestMonthlyBalanceTrendRejectsInvalidMonths(t *testing.T) {
	f := newAnalyticsFixture(t)
	if _, err := f.svc.MonthlyBalanceTrend(context.Background(), f.userID, 0); !errors.Is(err, core.ErrInvalidMonths) {
		t.Fatalf("expected ErrInvalidMonths, got %v", err)
	}
}

func TestRefreshSnapshotOverwrites(t *testing.T) {
	f := newAnalyticsFixture(t)
	ctx := context.Background()
	f.insert(t, 250000, core.CategorySalary, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))

	first, err := f.svc.RefreshSnapshot(ctx, f.userID, 2026, 8)
	if err != nil {
		t.Fatal(err)
	}
	if first.NetBalance.Cents != 250000 {
		t.Fatalf("expected net 250000, got %d", first.NetBalance.Cents)
	}

	f.insert(t, -40000, core.CategoryShopping, time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	second, err := f.svc.RefreshSnapshot(ctx, f.userID, 2026, 8)
	if err != nil {
		t.Fatal(err)
	}
	if second.NetBalance.Cents != 210000 {
		t.Fatalf("refresh must recompute, got %d", second.NetBalance.Cents)
	}

	stored, err := f.store.Snapshot(ctx, f.userID, 2026, 8)
	if err != nil {
		t.Fatal(err)
	}
	if stored.NetBalance != second.NetBalance {
		t.Fatalf("stored snapshot differs: %+v vs %+v", stored, second)
	}

	if _, err := f.svc.RefreshSnapshot(ctx, f.userID, 2026, 13); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for month 13, got %v", err)
	}
}

func TestMonthlyReport(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.insert(t, 250000, core.CategorySalary, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	f.insert(t, -4550, core.CategoryFood, time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC))
	f.insert(t, -1230, core.CategoryTransport, time.Date(2026, 8, 11, 12, 0, 0, 0, time.UTC))
	// September entry stays out of the August report.
	f.insert(t, -9000, core.CategoryFood, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))

	report, err := f.svc.MonthlyReport(context.Background(), f.userID, 2026, 8)
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalIncome.Cents != 250000 || report.TotalExpenses.Cents != 5780 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if report.NetBalance.Cents != 244220 {
		t.Fatalf("expected net 244220, got %d", report.NetBalance.Cents)
	}
	if report.TransactionCount != 3 {
		t.Fatalf("expected 3 transactions, got %d", report.TransactionCount)
	}
	if len(report.ByCategory) != 2 || report.ByCategory[0].Category != core.CategoryFood {
		t.Fatalf("unexpected category breakdown: %+v", report.ByCategory)
	}
}

func TestInsightsComposition(t *testing.T) {
	f := newAnalyticsFixture(t)
	ctx := context.Background()

	if err := f.store.UpsertBudget(ctx, core.Budget{
		UserID:       f.userID,
		Category:     core.CategoryFood,
		MonthlyLimit: core.CentsOf(20000),
	}); err != nil {
		t.Fatal(err)
	}

	f.insert(t, 250000, core.CategorySalary, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	f.insert(t, -23000, core.CategoryFood, time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC))
	f.insert(t, -5000, core.CategoryTransport, time.Date(2026, 8, 12, 12, 0, 0, 0, time.UTC))
	f.insert(t, -60000, core.CategoryFood, time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC))

	insights, err := f.svc.Insights(ctx, f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if insights.TotalBalance.Cents != 162000 {
		t.Fatalf("unexpected total balance: %d", insights.TotalBalance.Cents)
	}
	if len(insights.TopCategories) == 0 || insights.TopCategories[0].Category != core.CategoryFood {
		t.Fatalf("expected food as top category, got %+v", insights.TopCategories)
	}
	if len(insights.ExceededBudgets) != 1 || insights.ExceededBudgets[0].Category != core.CategoryFood {
		t.Fatalf("expected food budget exceeded, got %+v", insights.ExceededBudgets)
	}
	// (23000 + 5000 + 60000 + 0) / 3 months.
	if insights.AverageMonthlyExpense.Cents != 29333 {
		t.Fatalf("unexpected average expense: %d", insights.AverageMonthlyExpense.Cents)
	}
	if insights.Recommendation == "" {
		t.Fatal("expected a recommendation")
	}
}
