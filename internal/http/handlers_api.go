package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"financeflow/internal/core"
	"financeflow/internal/store"
)

type transactionDTO struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	ExternalID  string `json:"external_id,omitempty"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Merchant    string `json:"merchant,omitempty"`
	Description string `json:"description"`
	OccurredAt  string `json:"occurred_at"`
}

type categorySpendDTO struct {
	Category string `json:"category"`
	Spent    string `json:"spent"`
}

type budgetStatusDTO struct {
	Category       string `json:"category"`
	MonthlyLimit   string `json:"monthly_limit"`
	SpentThisMonth string `json:"spent_this_month"`
	Remaining      string `json:"remaining"`
	PercentUsed    string `json:"percent_used"`
	Status         string `json:"status"`
}

type monthlyNetDTO struct {
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	TotalIncome   string `json:"total_income"`
	TotalExpenses string `json:"total_expenses"`
	NetBalance    string `json:"net_balance"`
}

type importReportDTO struct {
	Inserted int      `json:"inserted_count"`
	Skipped  int      `json:"skipped_count"`
	Failed   []string `json:"failed,omitempty"`
}

func toImportReportDTO(report core.ImportReport) importReportDTO {
	dto := importReportDTO{Inserted: report.Inserted, Skipped: report.Skipped}
	for _, f := range report.Failed {
		dto.Failed = append(dto.Failed, f.Reason)
	}
	return dto
}

func toCategorySpendDTOs(spend []core.CategorySpend) []categorySpendDTO {
	out := make([]categorySpendDTO, len(spend))
	for i, cs := range spend {
		out[i] = categorySpendDTO{Category: string(cs.Category), Spent: cs.Spent.String()}
	}
	return out
}

func insightsCacheKey(userID int64) string {
	return fmt.Sprintf("insights:%d", userID)
}

// handleSync provisions provider accounts if needed, then pulls and imports
// every account's recent transactions.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	if _, err := s.sync.EnsureAccounts(r.Context(), uid); err != nil {
		slog.ErrorContext(r.Context(), "Account bootstrap failed", "user_id", uid, "error", err)
		writeError(w, http.StatusBadGateway, "bank provider unavailable")
		return
	}

	reports, err := s.sync.SyncAll(r.Context(), uid)
	if err != nil {
		slog.ErrorContext(r.Context(), "Sync failed", "user_id", uid, "error", err)
		writeError(w, http.StatusBadGateway, "sync failed")
		return
	}

	s.insightsCache.Delete(insightsCacheKey(uid))

	out := make(map[string]importReportDTO, len(reports))
	for accountID, report := range reports {
		out[fmt.Sprintf("%d", accountID)] = toImportReportDTO(report)
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	total, err := s.analytics.TotalBalance(r.Context(), uid)
	if err != nil {
		slog.ErrorContext(r.Context(), "Balance computation failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"total_balance": total.String()})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	accounts, err := s.store.AccountsByUser(r.Context(), uid)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load accounts", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	ids := make([]int64, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}

	filter := store.TransactionFilter{AccountIDs: ids}
	if days := queryInt(r, "days", 0); days > 0 {
		filter.From = time.Now().UTC().AddDate(0, 0, -days)
	}
	if raw := r.URL.Query().Get("category"); raw != "" {
		category, err := core.ParseCategory(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown category")
			return
		}
		filter.Category = category
	}

	txs, err := s.store.Transactions(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load transactions", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]transactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = transactionDTO{
			ID:          tx.ID,
			AccountID:   tx.AccountID,
			ExternalID:  tx.ExternalID,
			Amount:      tx.Amount.String(),
			Category:    string(tx.Category),
			Merchant:    tx.Merchant,
			Description: tx.Description,
			OccurredAt:  tx.OccurredAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (s *Server) handleSpending(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	days := queryInt(r, "days", 30)

	spend, err := s.analytics.SpendingByCategory(r.Context(), uid, days)
	if err != nil {
		if errors.Is(err, core.ErrInvalidDaysBack) {
			writeError(w, http.StatusBadRequest, "days must be positive")
			return
		}
		slog.ErrorContext(r.Context(), "Spending aggregation failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"spending_by_category": toCategorySpendDTOs(spend)})
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	statuses, err := s.analytics.BudgetStatus(r.Context(), uid)
	if err != nil {
		slog.ErrorContext(r.Context(), "Budget status failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]budgetStatusDTO, len(statuses))
	for i, st := range statuses {
		out[i] = budgetStatusDTO{
			Category:       string(st.Category),
			MonthlyLimit:   st.MonthlyLimit.String(),
			SpentThisMonth: st.SpentThisMonth.String(),
			Remaining:      st.Remaining.String(),
			PercentUsed:    core.FormatBasisPoints(st.PercentUsed),
			Status:         string(st.State),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": out})
}

type upsertBudgetRequest struct {
	Category     string `json:"category"`
	MonthlyLimit string `json:"monthly_limit"`
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	var req upsertBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := core.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}
	limit, err := core.ParseMoney(req.MonthlyLimit)
	if err != nil || limit.Cents < 0 {
		writeError(w, http.StatusBadRequest, "invalid monthly limit")
		return
	}

	if err := s.store.UpsertBudget(r.Context(), core.Budget{
		UserID:       uid,
		Category:     category,
		MonthlyLimit: limit,
	}); err != nil {
		slog.ErrorContext(r.Context(), "Budget upsert failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.insightsCache.Delete(insightsCacheKey(uid))
	writeJSON(w, http.StatusOK, map[string]string{
		"category":      string(category),
		"monthly_limit": limit.String(),
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	months := queryInt(r, "months", 3)

	trend, err := s.analytics.MonthlyBalanceTrend(r.Context(), uid, months)
	if err != nil {
		if errors.Is(err, core.ErrInvalidMonths) {
			writeError(w, http.StatusBadRequest, "months must be positive")
			return
		}
		slog.ErrorContext(r.Context(), "Trend computation failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var out []monthlyNetDTO
	for net, err := range trend {
		if err != nil {
			slog.ErrorContext(r.Context(), "Trend computation failed", "user_id", uid, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		out = append(out, monthlyNetDTO{
			Year:          net.Year,
			Month:         net.Month,
			TotalIncome:   net.TotalIncome.String(),
			TotalExpenses: net.TotalExpenses.String(),
			NetBalance:    net.NetBalance.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"monthly_balance_trend": out})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	key := insightsCacheKey(uid)

	insights, cached := s.insightsCache.Get(key)
	if !cached {
		var err error
		insights, err = s.analytics.Insights(r.Context(), uid)
		if err != nil {
			slog.ErrorContext(r.Context(), "Insights computation failed", "user_id", uid, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.insightsCache.Set(key, insights)
	}

	exceeded := make([]budgetStatusDTO, len(insights.ExceededBudgets))
	for i, st := range insights.ExceededBudgets {
		exceeded[i] = budgetStatusDTO{
			Category:       string(st.Category),
			MonthlyLimit:   st.MonthlyLimit.String(),
			SpentThisMonth: st.SpentThisMonth.String(),
			Remaining:      st.Remaining.String(),
			PercentUsed:    core.FormatBasisPoints(st.PercentUsed),
			Status:         string(st.State),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_balance":           insights.TotalBalance.String(),
		"top_categories":          toCategorySpendDTOs(insights.TopCategories),
		"exceeded_budgets":        exceeded,
		"average_monthly_expense": insights.AverageMonthlyExpense.String(),
		"recommendation":          insights.Recommendation,
		"cached":                  cached,
	})
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	year, month := parseYearMonth(r)

	report, err := s.analytics.MonthlyReport(r.Context(), uid, year, month)
	if err != nil {
		if errors.Is(err, core.ErrInvalidDate) {
			writeError(w, http.StatusBadRequest, "invalid month")
			return
		}
		slog.ErrorContext(r.Context(), "Monthly report failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"year":              report.Year,
		"month":             report.Month,
		"total_income":      report.TotalIncome.String(),
		"total_expenses":    report.TotalExpenses.String(),
		"net_balance":       report.NetBalance.String(),
		"by_category":       toCategorySpendDTOs(report.ByCategory),
		"transaction_count": report.TransactionCount,
	})
}
