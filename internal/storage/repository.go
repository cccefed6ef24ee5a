// Package storage is the SQLite implementation of the store ports, backed by
// the pure-Go sqlite driver and golang-migrate schema migrations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"financeflow/internal/core"
	"financeflow/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	// Manual entries carry no external ID and are stored as NULL so the
	// unique index never matches two of them.
	var externalID sql.NullString
	if tx.ExternalID != "" {
		externalID = sql.NullString{String: tx.ExternalID, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (account_id, external_id, amount_cents, category, merchant, description, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.AccountID, externalID, tx.Amount.Cents, string(tx.Category), tx.Merchant, tx.Description, tx.OccurredAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) ExternalIDs(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT external_id FROM transactions WHERE account_id = ? AND external_id IS NOT NULL`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query external ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan external id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) Transactions(ctx context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	if len(f.AccountIDs) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.AccountIDs)), ",")
	where = append(where, fmt.Sprintf("account_id IN (%s)", placeholders))
	for _, id := range f.AccountIDs {
		args = append(args, id)
	}
	if !f.From.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "occurred_at < ?")
		args = append(args, f.To.UTC())
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.OnlyExpenses {
		where = append(where, "amount_cents < 0")
	}

	query := `SELECT id, account_id, external_id, amount_cents, category, merchant, description, occurred_at, created_at
		FROM transactions WHERE ` + strings.Join(where, " AND ") + ` ORDER BY occurred_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx         core.Transaction
			externalID sql.NullString
			category   string
			cents      int64
		)
		if err := rows.Scan(&tx.ID, &tx.AccountID, &externalID, &cents, &category, &tx.Merchant, &tx.Description, &tx.OccurredAt, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.ExternalID = externalID.String
		tx.Amount = core.CentsOf(cents)
		tx.Category = core.Category(category)
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, name, number, bank_name, currency, opening_cents, balance_stale)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Name, a.Number, a.BankName, a.Currency, a.OpeningBalance.Cents, a.BalanceStale)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) Account(ctx context.Context, id int64) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, number, bank_name, currency, opening_cents, balance_stale, created_at
		FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *SQLiteRepository) AccountsByUser(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, number, bank_name, currency, opening_cents, balance_stale, created_at
		FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a     core.Account
		cents int64
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Number, &a.BankName, &a.Currency, &cents, &a.BalanceStale, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, store.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.OpeningBalance = core.CentsOf(cents)
	return a, nil
}

func (r *SQLiteRepository) MarkBalanceStale(ctx context.Context, accountID int64, stale bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET balance_stale = ? WHERE id = ?`, stale, accountID)
	if err != nil {
		return fmt.Errorf("mark balance stale: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	if _, err := core.ParseCategory(string(b.Category)); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, category, limit_cents) VALUES (?, ?, ?)
		ON CONFLICT(user_id, category) DO UPDATE SET limit_cents = excluded.limit_cents`,
		b.UserID, string(b.Category), b.MonthlyLimit.Cents)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BudgetsByUser(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category, limit_cents FROM budgets WHERE user_id = ? ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var (
			b        core.Budget
			category string
			cents    int64
		)
		if err := rows.Scan(&b.ID, &b.UserID, &category, &cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Category = core.Category(category)
		b.MonthlyLimit = core.CentsOf(cents)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpsertSnapshot(ctx context.Context, s core.MonthlySnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO monthly_snapshots (user_id, year, month, income_cents, expenses_cents, net_cents, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, year, month) DO UPDATE SET
			income_cents = excluded.income_cents,
			expenses_cents = excluded.expenses_cents,
			net_cents = excluded.net_cents,
			refreshed_at = excluded.refreshed_at`,
		s.UserID, s.Year, s.Month, s.TotalIncome.Cents, s.TotalExpenses.Cents, s.NetBalance.Cents, s.RefreshedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Snapshot(ctx context.Context, userID int64, year, month int) (core.MonthlySnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, year, month, income_cents, expenses_cents, net_cents, refreshed_at
		FROM monthly_snapshots WHERE user_id = ? AND year = ? AND month = ?`, userID, year, month)

	var (
		s                      core.MonthlySnapshot
		income, expenses, nett int64
		refreshedAt            time.Time
	)
	err := row.Scan(&s.UserID, &s.Year, &s.Month, &income, &expenses, &nett, &refreshedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlySnapshot{}, store.ErrNotFound
	}
	if err != nil {
		return core.MonthlySnapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	s.TotalIncome = core.CentsOf(income)
	s.TotalExpenses = core.CentsOf(expenses)
	s.NetBalance = core.CentsOf(nett)
	s.RefreshedAt = refreshedAt
	return s, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, currency) VALUES (?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.Currency)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) UserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, currency, created_at
		FROM users WHERE username = ?`, username)

	var u core.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Currency, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
