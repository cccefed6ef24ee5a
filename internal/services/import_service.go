// Package services orchestrates the finance core: the ledger importer, the
// analytics aggregator, and the bank sync flow that feeds them.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"financeflow/internal/core"
	"financeflow/internal/store"
)

// LedgerEventPublisher notifies downstream consumers that an account's ledger
// changed. The AMQP client implements it; a nil publisher disables events.
type LedgerEventPublisher interface {
	PublishLedgerChanged(ctx context.Context, userID, accountID int64, inserted int) error
}

// ImportStore is the storage surface the importer needs.
type ImportStore interface {
	store.TransactionStore
	store.AccountStore
}

// ImportService merges transaction batches into the per-account ledger,
// deduplicating by external ID. It never recomputes balances; it only flags
// them stale and lets the aggregator recompute on the next read.
type ImportService struct {
	store  ImportStore
	events LedgerEventPublisher
}

func NewImportService(st ImportStore, events LedgerEventPublisher) *ImportService {
	return &ImportService{store: st, events: events}
}

// ImportBatch inserts the batch items that are not already in the account's
// ledger. Duplicates (by non-empty external ID, against the ledger or earlier
// items of the same batch) are counted and skipped. Validation and storage
// failures are collected per item; the batch is best-effort, never rolled
// back.
func (s *ImportService) ImportBatch(ctx context.Context, accountID int64, batch []core.Transaction) (core.ImportReport, error) {
	account, err := s.store.Account(ctx, accountID)
	if err != nil {
		return core.ImportReport{}, fmt.Errorf("load account %d: %w", accountID, err)
	}

	known, err := s.store.ExternalIDs(ctx, accountID)
	if err != nil {
		return core.ImportReport{}, fmt.Errorf("load external ids for account %d: %w", accountID, err)
	}
	seen := make(map[string]struct{}, len(known))
	for _, id := range known {
		seen[id] = struct{}{}
	}

	var report core.ImportReport
	for _, tx := range batch {
		if tx.ExternalID != "" {
			if _, dup := seen[tx.ExternalID]; dup {
				report.Skipped++
				continue
			}
		}

		tx.AccountID = accountID
		if err := tx.Validate(); err != nil {
			report.Failed = append(report.Failed, core.ImportFailure{
				ExternalID: tx.ExternalID,
				Err:        err,
				Reason:     err.Error(),
			})
			continue
		}

		if _, err := s.store.InsertTransaction(ctx, tx); err != nil {
			report.Failed = append(report.Failed, core.ImportFailure{
				ExternalID: tx.ExternalID,
				Err:        err,
				Reason:     err.Error(),
			})
			continue
		}
		report.Inserted++
		if tx.ExternalID != "" {
			seen[tx.ExternalID] = struct{}{}
		}
	}

	if report.Inserted > 0 {
		// Any cached balance is now stale; the aggregator owns the recompute.
		if err := s.store.MarkBalanceStale(ctx, accountID, true); err != nil {
			slog.ErrorContext(ctx, "Failed to flag account balance stale",
				"account_id", accountID, "error", err)
		}
		s.publishLedgerChanged(ctx, account.UserID, accountID, report.Inserted)
	}

	slog.InfoContext(ctx, "Import batch processed",
		"account_id", accountID,
		"batch_size", len(batch),
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"failed", len(report.Failed))

	return report, nil
}

func (s *ImportService) publishLedgerChanged(ctx context.Context, userID, accountID int64, inserted int) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLedgerChanged(ctx, userID, accountID, inserted); err != nil {
		// The import already succeeded locally; a lost event only delays the
		// snapshot refresh until the next periodic pass.
		slog.ErrorContext(ctx, "Failed to publish ledger-changed event",
			"account_id", accountID, "error", err)
	}
}
