// Package store defines the ports to the storage collaborator. The services
// depend only on these interfaces; the SQLite repository and the in-memory
// store are the two implementations.
package store

import (
	"context"
	"errors"
	"time"

	"financeflow/internal/core"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// TransactionFilter narrows a ledger query. From is inclusive, To exclusive;
// the zero time leaves that bound open. An empty Category matches all.
type TransactionFilter struct {
	AccountIDs   []int64
	From         time.Time
	To           time.Time
	Category     core.Category
	OnlyExpenses bool
}

type (
	TransactionStore interface {
		// InsertTransaction appends one ledger entry and returns its ID.
		InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error)

		// ExternalIDs returns the non-empty external IDs already present in
		// the account's ledger, for import deduplication.
		ExternalIDs(ctx context.Context, accountID int64) ([]string, error)

		// Transactions returns the ledger entries matching the filter,
		// ordered by occurrence time descending.
		Transactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	}

	AccountStore interface {
		CreateAccount(ctx context.Context, a core.Account) (int64, error)
		Account(ctx context.Context, id int64) (core.Account, error)
		AccountsByUser(ctx context.Context, userID int64) ([]core.Account, error)

		// MarkBalanceStale flags or clears the account's cached-balance
		// staleness. The importer sets it; the aggregator clears it.
		MarkBalanceStale(ctx context.Context, accountID int64, stale bool) error
	}

	BudgetStore interface {
		UpsertBudget(ctx context.Context, b core.Budget) error
		BudgetsByUser(ctx context.Context, userID int64) ([]core.Budget, error)
	}

	SnapshotStore interface {
		// UpsertSnapshot overwrites the (user, year, month) snapshot. The
		// operation is idempotent; the snapshot is a cache, never a source
		// of truth.
		UpsertSnapshot(ctx context.Context, s core.MonthlySnapshot) error
		Snapshot(ctx context.Context, userID int64, year, month int) (core.MonthlySnapshot, error)
	}

	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (int64, error)
		UserByUsername(ctx context.Context, username string) (core.User, error)
	}
)

// Store is the full storage collaborator surface.
type Store interface {
	TransactionStore
	AccountStore
	BudgetStore
	SnapshotStore
	UserStore
	Close() error
}
