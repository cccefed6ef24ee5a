// Package memory is the in-memory storage backend. It backs the default
// development configuration and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"financeflow/internal/core"
	"financeflow/internal/store"
)

type snapshotKey struct {
	userID int64
	year   int
	month  int
}

// Store keeps all records in memory behind a single mutex. Reads hand out
// copies so callers can never mutate the ledger in place.
type Store struct {
	mu           sync.Mutex
	users        []core.User
	accounts     []core.Account
	transactions []core.Transaction
	budgets      []core.Budget
	snapshots    map[snapshotKey]core.MonthlySnapshot

	nextUserID        int64
	nextAccountID     int64
	nextTransactionID int64
	nextBudgetID      int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		snapshots:         make(map[snapshotKey]core.MonthlySnapshot),
		nextUserID:        1,
		nextAccountID:     1,
		nextTransactionID: 1,
		nextBudgetID:      1,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.nextUserID
	s.nextUserID++
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users = append(s.users, u)
	return u.ID, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return core.User{}, store.ErrNotFound
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.nextAccountID
	s.nextAccountID++
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.accounts = append(s.accounts, a)
	return a.ID, nil
}

func (s *Store) Account(_ context.Context, id int64) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, store.ErrNotFound
}

func (s *Store) AccountsByUser(_ context.Context, userID int64) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) MarkBalanceStale(_ context.Context, accountID int64, stale bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID == accountID {
			s.accounts[i].BalanceStale = stale
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = s.nextTransactionID
	s.nextTransactionID++
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.transactions = append(s.transactions, tx)
	return tx.ID, nil
}

func (s *Store) ExternalIDs(_ context.Context, accountID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, tx := range s.transactions {
		if tx.AccountID == accountID && tx.ExternalID != "" {
			out = append(out, tx.ExternalID)
		}
	}
	return out, nil
}

func (s *Store) Transactions(_ context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountSet := make(map[int64]struct{}, len(f.AccountIDs))
	for _, id := range f.AccountIDs {
		accountSet[id] = struct{}{}
	}

	var out []core.Transaction
	for _, tx := range s.transactions {
		if len(accountSet) > 0 {
			if _, ok := accountSet[tx.AccountID]; !ok {
				continue
			}
		}
		if !f.From.IsZero() && tx.OccurredAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !tx.OccurredAt.Before(f.To) {
			continue
		}
		if f.Category != "" && tx.Category != f.Category {
			continue
		}
		if f.OnlyExpenses && !tx.IsExpense() {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out, nil
}

func (s *Store) UpsertBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.budgets {
		if s.budgets[i].UserID == b.UserID && s.budgets[i].Category == b.Category {
			s.budgets[i].MonthlyLimit = b.MonthlyLimit
			return nil
		}
	}
	b.ID = s.nextBudgetID
	s.nextBudgetID++
	s.budgets = append(s.budgets, b)
	return nil
}

func (s *Store) BudgetsByUser(_ context.Context, userID int64) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) UpsertSnapshot(_ context.Context, snap core.MonthlySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshotKey{snap.UserID, snap.Year, snap.Month}] = snap
	return nil
}

func (s *Store) Snapshot(_ context.Context, userID int64, year, month int) (core.MonthlySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[snapshotKey{userID, year, month}]
	if !ok {
		return core.MonthlySnapshot{}, store.ErrNotFound
	}
	return snap, nil
}
