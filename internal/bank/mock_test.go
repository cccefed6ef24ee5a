package bank

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"financeflow/internal/core"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
}

func newSeededProvider(seed int64) *MockProvider {
	return NewMockProvider(rand.New(rand.NewSource(seed)), fixedNow)
}

func TestTransactionsRejectsInvalidWindow(t *testing.T) {
	p := newSeededProvider(1)
	for _, daysBack := range []int{0, -1, -30} {
		if _, err := p.Transactions(context.Background(), "mock-acc-001", daysBack); !errors.Is(err, core.ErrInvalidDaysBack) {
			t.Fatalf("daysBack=%d: expected ErrInvalidDaysBack, got %v", daysBack, err)
		}
	}
}

func TestTransactionsBatchShape(t *testing.T) {
	p := newSeededProvider(42)
	batch, err := p.Transactions(context.Background(), "mock-acc-001", 90)
	if err != nil {
		t.Fatal(err)
	}

	var expenses, salaries int
	for _, tx := range batch {
		if tx.Category == core.CategorySalary {
			salaries++
			if tx.Amount.Cents < salaryMinCents || tx.Amount.Cents > salaryMaxCents {
				t.Fatalf("salary %d outside plausible range", tx.Amount.Cents)
			}
			if tx.OccurredAt.Day() > 3 {
				t.Fatalf("salary dated %v, expected start of month", tx.OccurredAt)
			}
			continue
		}
		expenses++
		if !tx.IsExpense() {
			t.Fatalf("non-salary transaction %+v should be an expense", tx)
		}
		pool, ok := expensePools[tx.Category]
		if !ok {
			t.Fatalf("unexpected category %q", tx.Category)
		}
		abs := tx.Amount.Abs().Cents
		if abs < pool.minCents || abs > pool.maxCents {
			t.Fatalf("%s amount %d outside pool range [%d,%d]", tx.Category, abs, pool.minCents, pool.maxCents)
		}
	}

	if expenses < minBatchExpenses || expenses > maxBatchExpenses {
		t.Fatalf("expected 15-30 expenses, got %d", expenses)
	}
	// 90 days back from Aug 25 touches Jun, Jul, Aug and the partial May window
	// start month; every payday in the past is emitted, one per month.
	if salaries < 3 || salaries > 4 {
		t.Fatalf("expected one salary per covered month, got %d", salaries)
	}
}

func TestTransactionsExternalIDsDistinct(t *testing.T) {
	p := newSeededProvider(7)
	for run := 0; run < 20; run++ {
		batch, err := p.Transactions(context.Background(), "mock-acc-001", 60)
		if err != nil {
			t.Fatal(err)
		}
		seen := make(map[string]struct{}, len(batch))
		for _, tx := range batch {
			if tx.ExternalID == "" {
				t.Fatal("generated transaction missing external ID")
			}
			if _, dup := seen[tx.ExternalID]; dup {
				t.Fatalf("duplicate external ID %q within batch", tx.ExternalID)
			}
			seen[tx.ExternalID] = struct{}{}
		}
	}
}

func TestTransactionsDatesWithinWindow(t *testing.T) {
	p := newSeededProvider(11)
	const daysBack = 30
	batch, err := p.Transactions(context.Background(), "mock-acc-001", daysBack)
	if err != nil {
		t.Fatal(err)
	}
	windowStart := fixedNow().AddDate(0, 0, -daysBack)
	for _, tx := range batch {
		if tx.Category == core.CategorySalary {
			// Paydays sit at the start of each covered month and may precede
			// a window that opens mid-month.
			if tx.OccurredAt.After(fixedNow()) {
				t.Fatalf("salary dated in the future: %v", tx.OccurredAt)
			}
			continue
		}
		if tx.OccurredAt.Before(windowStart) || tx.OccurredAt.After(fixedNow()) {
			t.Fatalf("expense dated %v outside [%v, %v]", tx.OccurredAt, windowStart, fixedNow())
		}
	}
}

func TestTransactionsDeterministicWithSeed(t *testing.T) {
	a, err := newSeededProvider(99).Transactions(context.Background(), "mock-acc-001", 45)
	if err != nil {
		t.Fatal(err)
	}
	b, err := newSeededProvider(99).Transactions(context.Background(), "mock-acc-001", 45)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("seeded runs differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ExternalID != b[i].ExternalID || a[i].Amount != b[i].Amount || !a[i].OccurredAt.Equal(b[i].OccurredAt) {
			t.Fatalf("seeded runs diverge at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGeneratedTransactionsValidate(t *testing.T) {
	p := newSeededProvider(3)
	batch, err := p.Transactions(context.Background(), "mock-acc-001", 30)
	if err != nil {
		t.Fatal(err)
	}
	for _, tx := range batch {
		tx.AccountID = 1
		if err := tx.Validate(); err != nil {
			t.Fatalf("generated transaction fails validation: %v (%+v)", err, tx)
		}
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(ProviderMock, rand.New(rand.NewSource(1)), fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != ProviderMock {
		t.Fatalf("expected mock provider, got %s", p.Name())
	}
	if _, err := NewProvider("plaid", nil, nil); err == nil {
		t.Fatal("unknown provider name must be rejected")
	}
}

func TestMockAccounts(t *testing.T) {
	accounts, err := newSeededProvider(1).Accounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 mock accounts, got %d", len(accounts))
	}
	refs := map[string]struct{}{}
	for _, a := range accounts {
		if a.Ref == "" || a.Currency == "" {
			t.Fatalf("incomplete account info: %+v", a)
		}
		refs[a.Ref] = struct{}{}
	}
	if len(refs) != 2 {
		t.Fatal("account refs must be distinct")
	}
}
