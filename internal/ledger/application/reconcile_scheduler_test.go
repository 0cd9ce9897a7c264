package application

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/shopspring/decimal"

	ledger "chirho-events/internal/ledger/domain"
)

func TestNewReconcileSchedulerValidatesSchedule(t *testing.T) {
	f := newFixture(t, nil)
	reconciler, err := NewReconciler(f.store, f.calculator, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("reconciler: %v", err)
	}
	if _, err := NewReconcileScheduler(nil, "0 2 * * *", nil, nil); err == nil {
		t.Fatalf("expected error for nil reconciler")
	}
	if _, err := NewReconcileScheduler(reconciler, "every night", nil, nil); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
	scheduler, err := NewReconcileScheduler(reconciler, "0 2 * * *", []string{"event-1"}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := scheduler.Start(); err == nil {
		t.Fatalf("expected error on second start")
	}
	scheduler.Stop()
	scheduler.Stop()
}

func TestReconcileSchedulerRunOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.store.AppendPayment(ledger.PaymentRecord{
		ID:               "pay-drift",
		RegistrationID:   "reg-1",
		RegistrationType: ledger.RegistrationIndividual,
		Amount:           decimal.RequireFromString("50.00"),
		Status:           ledger.RecordSucceeded,
		Method:           ledger.MethodCash,
		CreatedAt:        f.clock.Now(),
	})
	reconciler, err := NewReconciler(f.store, f.calculator, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("reconciler: %v", err)
	}
	scheduler, err := NewReconcileScheduler(reconciler, "@daily", []string{"event-1", " "}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	reports := scheduler.RunOnce(context.Background())
	if len(reports) != 1 {
		t.Fatalf("expected one completed report, got %+v", reports)
	}
	if reports[0].Checked != 1 || len(reports[0].Changed) != 1 {
		t.Fatalf("unexpected report %+v", reports[0])
	}
}
