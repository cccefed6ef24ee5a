package bank

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"financeflow/internal/core"
)

// merchantPool holds the plausible merchants and amount range (cents) for one
// expense category.
type merchantPool struct {
	merchants []string
	minCents  int64
	maxCents  int64
}

var expensePools = map[core.Category]merchantPool{
	core.CategoryFood:          {[]string{"GreenGrocer", "Corner Market", "Daily Bakery", "Trattoria Roma"}, 500, 12000},
	core.CategoryTransport:     {[]string{"Metro Transit", "City Rail", "Shell Station", "Ride Hail"}, 300, 9000},
	core.CategoryUtilities:     {[]string{"PowerGrid Energy", "AquaNet Water", "FiberLink Telecom"}, 2000, 14000},
	core.CategoryEntertainment: {[]string{"Streamflix", "Tune Stream", "Grand Cinema", "Arcade Hub"}, 800, 6000},
	core.CategoryShopping:      {[]string{"Urban Outfit", "HomeGoods", "Marketplace Online", "SportZone"}, 1500, 9500},
	core.CategoryHealthcare:    {[]string{"Central Pharmacy", "Dr. Keller", "Smile Dental"}, 1000, 15000},
	core.CategoryEducation:     {[]string{"BookNook", "LinguaCourse", "SkillShare Pro"}, 1200, 8000},
}

// order of pool iteration must be stable for a seeded source
var expenseCategories = []core.Category{
	core.CategoryFood,
	core.CategoryTransport,
	core.CategoryUtilities,
	core.CategoryEntertainment,
	core.CategoryShopping,
	core.CategoryHealthcare,
	core.CategoryEducation,
}

const (
	minBatchExpenses = 15
	maxBatchExpenses = 30
	salaryMinCents   = 200000
	salaryMaxCents   = 450000
)

// MockProvider generates plausible synthetic transactions. The random source
// and clock are injected so tests can pin both; there is no package-level
// random state.
type MockProvider struct {
	rand *rand.Rand
	now  func() time.Time
}

var _ Provider = (*MockProvider)(nil)

func NewMockProvider(r *rand.Rand, now func() time.Time) *MockProvider {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &MockProvider{rand: r, now: now}
}

func (p *MockProvider) Name() string { return ProviderMock }

func (p *MockProvider) Accounts(_ context.Context) ([]AccountInfo, error) {
	return []AccountInfo{
		{Ref: "mock-acc-001", Name: "Everyday Checking", BankName: "Demo Bank", Currency: "EUR", OpeningBalance: core.CentsOf(250050)},
		{Ref: "mock-acc-002", Name: "Rainy Day Savings", BankName: "Demo Bank", Currency: "EUR", OpeningBalance: core.CentsOf(500000)},
	}, nil
}

// Transactions produces between 15 and 30 expense transactions dated across
// [now-daysBack, now] plus one salary deposit per calendar month the window
// touches. External IDs are guaranteed pairwise distinct within the batch.
// No ordering is guaranteed; callers sort if they need order.
func (p *MockProvider) Transactions(_ context.Context, accountRef string, daysBack int) ([]core.Transaction, error) {
	if daysBack <= 0 {
		return nil, fmt.Errorf("provider %s, account %s: %w", ProviderMock, accountRef, core.ErrInvalidDaysBack)
	}

	now := p.now().UTC()
	windowStart := now.AddDate(0, 0, -daysBack)
	seen := make(map[string]struct{})

	count := minBatchExpenses + p.rand.Intn(maxBatchExpenses-minBatchExpenses+1)
	out := make([]core.Transaction, 0, count+daysBack/28+1)

	for i := 0; i < count; i++ {
		category := expenseCategories[p.rand.Intn(len(expenseCategories))]
		pool := expensePools[category]
		merchant := pool.merchants[p.rand.Intn(len(pool.merchants))]
		amount := pool.minCents + p.rand.Int63n(pool.maxCents-pool.minCents+1)
		occurredAt := windowStart.Add(time.Duration(p.rand.Int63n(int64(daysBack) * int64(24*time.Hour))))

		externalID, err := p.newExternalID(seen)
		if err != nil {
			return nil, err
		}
		out = append(out, core.Transaction{
			ExternalID:  externalID,
			Amount:      core.CentsOf(-amount),
			Category:    category,
			Merchant:    merchant,
			Description: merchant,
			OccurredAt:  occurredAt,
		})
	}

	salaries, err := p.salaries(windowStart, now, seen)
	if err != nil {
		return nil, err
	}
	return append(out, salaries...), nil
}

// salaries emits one deposit per calendar month between from and to, dated
// within the first three days of the month. A deposit in the current month is
// dropped when its date would still be in the future.
func (p *MockProvider) salaries(from, to time.Time, seen map[string]struct{}) ([]core.Transaction, error) {
	var out []core.Transaction
	month := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !month.After(to) {
		payday := month.AddDate(0, 0, p.rand.Intn(3)).Add(9 * time.Hour)
		amount := salaryMinCents + p.rand.Int63n(salaryMaxCents-salaryMinCents+1)
		if !payday.After(to) {
			externalID, err := p.newExternalID(seen)
			if err != nil {
				return nil, err
			}
			out = append(out, core.Transaction{
				ExternalID:  externalID,
				Amount:      core.CentsOf(amount),
				Category:    core.CategorySalary,
				Merchant:    "Acme Payroll",
				Description: "Monthly salary",
				OccurredAt:  payday,
			})
		}
		month = month.AddDate(0, 1, 0)
	}
	return out, nil
}

// newExternalID draws a UUID from the injected random source, retrying on the
// (vanishing) chance of a collision inside the batch.
func (p *MockProvider) newExternalID(seen map[string]struct{}) (string, error) {
	for {
		id, err := uuid.NewRandomFromReader(p.rand)
		if err != nil {
			return "", fmt.Errorf("generate external id: %w", err)
		}
		ext := "mock-" + id.String()
		if _, dup := seen[ext]; !dup {
			seen[ext] = struct{}{}
			return ext, nil
		}
	}
}
