package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"financeflow/internal/amqp"
	"financeflow/internal/core"
	"financeflow/internal/services"
	"financeflow/internal/store/memory"
)

func workerNow() time.Time {
	return time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
}

type fakeExporter struct {
	reports []core.MonthlyReport
	err     error
}

func (f *fakeExporter) AppendMonthlyReport(_ context.Context, report core.MonthlyReport) error {
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, report)
	return nil
}

func newWorkerFixture(t *testing.T) (*SnapshotWorker, *memory.Store, int64) {
	t.Helper()
	st := memory.New()
	accountID, err := st.CreateAccount(context.Background(), core.Account{UserID: 1, Name: "Checking", Currency: "EUR"})
	if err != nil {
		t.Fatal(err)
	}
	analytics := services.NewAnalyticsServiceWithClock(st, workerNow)
	w := NewSnapshotWorker(analytics, nil)
	w.now = workerNow
	return w, st, accountID
}

func seedTx(t *testing.T, st *memory.Store, accountID, cents int64, when time.Time) {
	t.Helper()
	category := core.CategoryFood
	if cents > 0 {
		category = core.CategorySalary
	}
	_, err := st.InsertTransaction(context.Background(), core.Transaction{
		AccountID:   accountID,
		Amount:      core.CentsOf(cents),
		Category:    category,
		Description: "seed",
		OccurredAt:  when,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestHandleLedgerChangedRefreshesCurrentMonth(t *testing.T) {
	w, st, accountID := newWorkerFixture(t)
	ctx := context.Background()
	seedTx(t, st, accountID, 250000, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	seedTx(t, st, accountID, -5780, time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC))

	msg := &amqp.LedgerChangedMessage{UserID: 1, AccountID: accountID, Inserted: 2}
	if err := w.HandleLedgerChanged(ctx, msg); err != nil {
		t.Fatal(err)
	}

	snap, err := st.Snapshot(ctx, 1, 2026, 8)
	if err != nil {
		t.Fatal(err)
	}
	if snap.NetBalance.Cents != 244220 {
		t.Fatalf("expected net 244220, got %d", snap.NetBalance.Cents)
	}
}

func TestRefreshAllCoversSeenUsers(t *testing.T) {
	w, st, accountID := newWorkerFixture(t)
	ctx := context.Background()

	if err := w.HandleLedgerChanged(ctx, &amqp.LedgerChangedMessage{UserID: 1, AccountID: accountID, Inserted: 1}); err != nil {
		t.Fatal(err)
	}

	// New ledger activity after the event.
	seedTx(t, st, accountID, -10000, time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	w.RefreshAll(ctx)

	snap, err := st.Snapshot(ctx, 1, 2026, 8)
	if err != nil {
		t.Fatal(err)
	}
	if snap.TotalExpenses.Cents != 10000 {
		t.Fatalf("periodic pass must pick up new activity, got %d", snap.TotalExpenses.Cents)
	}
}

func TestExportMonthlyReport(t *testing.T) {
	w, st, accountID := newWorkerFixture(t)
	exporter := &fakeExporter{}
	w.exporter = exporter
	ctx := context.Background()

	seedTx(t, st, accountID, 250000, time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))
	seedTx(t, st, accountID, -4550, time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC))

	if err := w.ExportMonthlyReport(ctx, 1, 2026, 7); err != nil {
		t.Fatal(err)
	}
	if len(exporter.reports) != 1 {
		t.Fatalf("expected 1 exported report, got %d", len(exporter.reports))
	}
	report := exporter.reports[0]
	if report.Year != 2026 || report.Month != 7 || report.NetBalance.Cents != 245450 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestExportMonthlyReportWithoutExporter(t *testing.T) {
	w, _, _ := newWorkerFixture(t)
	if err := w.ExportMonthlyReport(context.Background(), 1, 2026, 7); err != nil {
		t.Fatalf("missing exporter must not be an error: %v", err)
	}
}

func TestExportMonthlyReportPropagatesExporterError(t *testing.T) {
	w, _, _ := newWorkerFixture(t)
	w.exporter = &fakeExporter{err: errors.New("sheets unavailable")}
	if err := w.ExportMonthlyReport(context.Background(), 1, 2026, 7); err == nil {
		t.Fatal("expected exporter error to propagate")
	}
}
