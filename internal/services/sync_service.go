package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"financeflow/internal/bank"
	"financeflow/internal/core"
	"financeflow/internal/store"
)

const syncConcurrency = 4

// SyncService pulls transaction batches from the bank provider and hands them
// to the importer. The provider returns a fully materialized batch; the sync
// itself never blocks on partial network reads.
type SyncService struct {
	provider bank.Provider
	importer *ImportService
	accounts store.AccountStore
	daysBack int
}

func NewSyncService(provider bank.Provider, importer *ImportService, accounts store.AccountStore, daysBack int) *SyncService {
	if daysBack <= 0 {
		daysBack = 30
	}
	return &SyncService{
		provider: provider,
		importer: importer,
		accounts: accounts,
		daysBack: daysBack,
	}
}

// SyncAccount fetches one account's batch from the provider and imports it.
func (s *SyncService) SyncAccount(ctx context.Context, accountID int64) (core.ImportReport, error) {
	account, err := s.accounts.Account(ctx, accountID)
	if err != nil {
		return core.ImportReport{}, fmt.Errorf("load account %d: %w", accountID, err)
	}

	batch, err := s.provider.Transactions(ctx, account.Number, s.daysBack)
	if err != nil {
		return core.ImportReport{}, fmt.Errorf("fetch transactions from %s: %w", s.provider.Name(), err)
	}

	report, err := s.importer.ImportBatch(ctx, accountID, batch)
	if err != nil {
		return core.ImportReport{}, err
	}

	slog.InfoContext(ctx, "Account synced",
		"account_id", accountID,
		"provider", s.provider.Name(),
		"inserted", report.Inserted,
		"skipped", report.Skipped)
	return report, nil
}

// SyncAll syncs every account of the user with bounded concurrency. One
// failing account does not abort the others; its error is reported alongside
// the successful reports.
func (s *SyncService) SyncAll(ctx context.Context, userID int64) (map[int64]core.ImportReport, error) {
	accounts, err := s.accounts.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load accounts for user %d: %w", userID, err)
	}

	var (
		mu      sync.Mutex
		reports = make(map[int64]core.ImportReport, len(accounts))
		failed  error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for _, account := range accounts {
		g.Go(func() error {
			report, err := s.SyncAccount(ctx, account.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.ErrorContext(ctx, "Account sync failed",
					"account_id", account.ID, "error", err)
				if failed == nil {
					failed = err
				}
				return nil
			}
			reports[account.ID] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	if len(reports) == 0 && failed != nil {
		return reports, failed
	}
	return reports, nil
}

// EnsureAccounts creates local accounts for any provider account not yet
// known, matching on the provider reference stored as the account number.
// It returns the user's accounts after the bootstrap.
func (s *SyncService) EnsureAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	remote, err := s.provider.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list provider accounts: %w", err)
	}
	local, err := s.accounts.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load accounts for user %d: %w", userID, err)
	}

	known := make(map[string]struct{}, len(local))
	for _, a := range local {
		known[a.Number] = struct{}{}
	}

	for _, info := range remote {
		if _, ok := known[info.Ref]; ok {
			continue
		}
		id, err := s.accounts.CreateAccount(ctx, core.Account{
			UserID:         userID,
			Name:           info.Name,
			Number:         info.Ref,
			BankName:       info.BankName,
			Currency:       info.Currency,
			OpeningBalance: info.OpeningBalance,
		})
		if err != nil {
			return nil, fmt.Errorf("create account for %s: %w", info.Ref, err)
		}
		slog.InfoContext(ctx, "Provisioned account from provider",
			"account_id", id, "ref", info.Ref, "provider", s.provider.Name())
	}

	return s.accounts.AccountsByUser(ctx, userID)
}
