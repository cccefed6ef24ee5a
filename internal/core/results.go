package core

// Result records returned by the analytics aggregator and the ledger
// importer. Each query has an explicit record type so the contracts stay
// statically checkable.

// CategorySpend is the absolute amount spent in one category over a window.
type CategorySpend struct {
	Category Category `json:"category"`
	Spent    Money    `json:"spent"`
}

// BudgetState is the comparison outcome of spend versus limit.
type BudgetState string

const (
	BudgetWithinLimit BudgetState = "within_limit"
	BudgetExceeded    BudgetState = "exceeded"
)

// BudgetStatus is the per-budget view for the current calendar month.
// PercentUsed is in basis points (hundredths of a percent); a budget with no
// limit always reports zero.
type BudgetStatus struct {
	Category       Category    `json:"category"`
	MonthlyLimit   Money       `json:"monthly_limit"`
	SpentThisMonth Money       `json:"spent_this_month"`
	Remaining      Money       `json:"remaining"`
	PercentUsed    int64       `json:"percent_used_bp"`
	State          BudgetState `json:"state"`
}

// MonthlyNet is one entry of the monthly balance trend, recomputed from the
// ledger. TotalExpenses is an absolute amount.
type MonthlyNet struct {
	Year          int   `json:"year"`
	Month         int   `json:"month"`
	TotalIncome   Money `json:"total_income"`
	TotalExpenses Money `json:"total_expenses"`
	NetBalance    Money `json:"net_balance"`
}

// Insights is a view composition over the other aggregates; it carries no
// independent computation of its own.
type Insights struct {
	TotalBalance          Money           `json:"total_balance"`
	TopCategories         []CategorySpend `json:"top_categories"`
	ExceededBudgets       []BudgetStatus  `json:"exceeded_budgets"`
	AverageMonthlyExpense Money           `json:"average_monthly_expense"`
	Recommendation        string          `json:"recommendation"`
}

// MonthlyReport is the full month view consumed by the report exporter.
type MonthlyReport struct {
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	TotalIncome      Money           `json:"total_income"`
	TotalExpenses    Money           `json:"total_expenses"`
	NetBalance       Money           `json:"net_balance"`
	ByCategory       []CategorySpend `json:"by_category"`
	TransactionCount int             `json:"transaction_count"`
}

// ImportFailure records one batch item that could not be inserted.
type ImportFailure struct {
	ExternalID string `json:"external_id"`
	Err        error  `json:"-"`
	Reason     string `json:"reason"`
}

// ImportReport summarizes one importer run. Duplicates are an expected
// outcome, counted and never raised as errors.
type ImportReport struct {
	Inserted int             `json:"inserted"`
	Skipped  int             `json:"skipped"`
	Failed   []ImportFailure `json:"failed,omitempty"`
}
