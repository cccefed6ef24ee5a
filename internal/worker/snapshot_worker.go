// Package worker keeps monthly snapshots fresh. It reacts to ledger-changed
// events and runs a periodic safety-net refresh for missed messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"financeflow/internal/amqp"
	"financeflow/internal/core"
	"financeflow/internal/services"
)

// ReportExporter pushes a finished monthly report to an external sink. The
// Google Sheets client implements it; a nil exporter disables the export.
type ReportExporter interface {
	AppendMonthlyReport(ctx context.Context, report core.MonthlyReport) error
}

type SnapshotWorker struct {
	analytics *services.AnalyticsService
	exporter  ReportExporter
	now       func() time.Time

	mu    sync.Mutex
	users map[int64]struct{}
}

func NewSnapshotWorker(analytics *services.AnalyticsService, exporter ReportExporter) *SnapshotWorker {
	return &SnapshotWorker{
		analytics: analytics,
		exporter:  exporter,
		now:       time.Now,
		users:     make(map[int64]struct{}),
	}
}

// HandleLedgerChanged refreshes the current month's snapshot for the user
// named in the message. The user is remembered for the periodic pass.
func (w *SnapshotWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	w.mu.Lock()
	w.users[msg.UserID] = struct{}{}
	w.mu.Unlock()

	now := w.now().UTC()
	snap, err := w.analytics.RefreshSnapshot(ctx, msg.UserID, now.Year(), int(now.Month()))
	if err != nil {
		return fmt.Errorf("refresh snapshot for user %d: %w", msg.UserID, err)
	}

	slog.InfoContext(ctx, "Snapshot refreshed from ledger-changed event",
		"user_id", msg.UserID,
		"account_id", msg.AccountID,
		"inserted", msg.Inserted,
		"net_cents", snap.NetBalance.Cents)
	return nil
}

// RefreshAll recomputes the current month for every user seen so far. Errors
// are logged per user; the pass never aborts early.
func (w *SnapshotWorker) RefreshAll(ctx context.Context) {
	w.mu.Lock()
	ids := make([]int64, 0, len(w.users))
	for id := range w.users {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	now := w.now().UTC()
	for _, userID := range ids {
		if _, err := w.analytics.RefreshSnapshot(ctx, userID, now.Year(), int(now.Month())); err != nil {
			slog.ErrorContext(ctx, "Periodic snapshot refresh failed",
				"user_id", userID, "error", err)
		}
	}
	slog.DebugContext(ctx, "Periodic snapshot refresh completed", "users", len(ids))
}

// Run drives the periodic refresh until the context is cancelled.
func (w *SnapshotWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Snapshot worker started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Snapshot worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			w.RefreshAll(ctx)
		}
	}
}

// ExportMonthlyReport assembles one month and appends it to the configured
// exporter. A missing exporter is not an error; the export is optional.
func (w *SnapshotWorker) ExportMonthlyReport(ctx context.Context, userID int64, year, month int) error {
	if w.exporter == nil {
		slog.WarnContext(ctx, "No report exporter configured, skipping export",
			"user_id", userID, "year", year, "month", month)
		return nil
	}

	report, err := w.analytics.MonthlyReport(ctx, userID, year, month)
	if err != nil {
		return fmt.Errorf("build monthly report: %w", err)
	}
	if err := w.exporter.AppendMonthlyReport(ctx, report); err != nil {
		return fmt.Errorf("export monthly report: %w", err)
	}
	return nil
}
