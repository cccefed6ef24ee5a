package core

import (
	"errors"
	"strings"
	"time"
)

// Category is the closed set of transaction categories. Unknown values are
// rejected at the boundary with ErrUnknownCategory.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryUtilities     Category = "utilities"
	CategoryEntertainment Category = "entertainment"
	CategoryShopping      Category = "shopping"
	CategoryHealthcare    Category = "healthcare"
	CategoryEducation     Category = "education"
	CategorySalary        Category = "salary"
	CategoryInvestment    Category = "investment"
	CategoryOther         Category = "other"
)

var (
	ErrInvalidDaysBack  = errors.New("days back must be positive")
	ErrInvalidMonths    = errors.New("number of months must be positive")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
)

var allCategories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryShopping,
	CategoryHealthcare,
	CategoryEducation,
	CategorySalary,
	CategoryInvestment,
	CategoryOther,
}

// Categories returns the full category set in a stable order.
func Categories() []Category {
	return append([]Category(nil), allCategories...)
}

// ParseCategory validates a raw category string against the closed set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrUnknownCategory
	}
	return c, nil
}

func (c Category) Valid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

type (
	// User owns accounts and budgets. Password hashing is delegated to the
	// auth package; core only carries the resulting hash.
	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		Currency     string
		CreatedAt    time.Time
	}

	// Account is a bank account holding a ledger of transactions. The live
	// balance is OpeningBalance plus the sum of transaction amounts; the
	// BalanceStale flag marks that any cached balance must be recomputed.
	Account struct {
		ID             int64
		UserID         int64
		Name           string
		Number         string
		BankName       string
		Currency       string
		OpeningBalance Money
		BalanceStale   bool
		CreatedAt      time.Time
	}

	// Transaction is an immutable ledger entry. Amount sign carries the
	// direction: positive is income, negative is an expense. ExternalID is
	// empty for manual entries and is the sole deduplication key on import.
	Transaction struct {
		ID          int64
		AccountID   int64
		ExternalID  string
		Amount      Money
		Category    Category
		Merchant    string
		Description string
		OccurredAt  time.Time
		CreatedAt   time.Time
	}

	// Budget caps monthly spending for one category. A zero MonthlyLimit
	// means no limit is configured.
	Budget struct {
		ID           int64
		UserID       int64
		Category     Category
		MonthlyLimit Money
	}

	// MonthlySnapshot is a denormalized monthly aggregate. It is a cache of
	// an aggregator computation, recomputed idempotently and never treated
	// as a source of truth.
	MonthlySnapshot struct {
		UserID        int64
		Year          int
		Month         int
		TotalIncome   Money
		TotalExpenses Money
		NetBalance    Money
		RefreshedAt   time.Time
	}
)

func (t Transaction) Validate() error {
	if !t.Category.Valid() {
		return ErrUnknownCategory
	}
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if t.OccurredAt.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// IsExpense reports whether the transaction is a debit.
func (t Transaction) IsExpense() bool { return t.Amount.Cents < 0 }

// MonthStart returns midnight UTC on the first day of the transaction's month.
func (t Transaction) MonthStart() time.Time {
	return time.Date(t.OccurredAt.Year(), t.OccurredAt.Month(), 1, 0, 0, 0, 0, time.UTC)
}
