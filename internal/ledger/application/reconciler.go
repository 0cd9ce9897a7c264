package application

import (
	"context"
	"errors"
	"log"
	"strings"

	ledger "chirho-events/internal/ledger/domain"
	"chirho-events/internal/observability/metrics"
)

// BalanceChange describes a balance whose stored values disagreed with its payments.
type BalanceChange struct {
	RegistrationID   string                  `json:"registrationId"`
	RegistrationType ledger.RegistrationType `json:"registrationType"`
	Before           ledger.BalanceSnapshot  `json:"before"`
	After            ledger.BalanceSnapshot  `json:"after"`
}

// ReconcileReport summarizes one reconcile run.
type ReconcileReport struct {
	EventID string          `json:"eventId"`
	Checked int             `json:"checked"`
	Changed []BalanceChange `json:"changed"`
	Failed  []string        `json:"failed"`
}

// Reconciler recomputes every balance of an event.
type Reconciler struct {
	store      ledger.Store
	calculator *BalanceCalculator
	logger     *log.Logger
}

// NewReconciler constructs a reconciler.
func NewReconciler(store ledger.Store, calculator *BalanceCalculator, logger *log.Logger) (*Reconciler, error) {
	if store == nil {
		return nil, errors.New("reconciler: nil store")
	}
	if calculator == nil {
		return nil, errors.New("reconciler: nil balance calculator")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{store: store, calculator: calculator, logger: logger}, nil
}

// ReconcileEvent recomputes each balance in its own transaction. A failing
// balance is reported and the run continues.
func (r *Reconciler) ReconcileEvent(ctx context.Context, eventID string) (ReconcileReport, error) {
	report := ReconcileReport{EventID: eventID, Changed: []BalanceChange{}, Failed: []string{}}
	if strings.TrimSpace(eventID) == "" {
		return report, ledger.NewValidationError("eventId", "is required")
	}

	balances, err := r.store.ListBalancesByEvent(ctx, eventID)
	if err != nil {
		metrics.ObserveReconcile(metrics.ResultError, 0)
		return report, err
	}

	for _, balance := range balances {
		if err := ctx.Err(); err != nil {
			metrics.ObserveReconcile(metrics.ResultError, len(report.Changed))
			return report, err
		}
		report.Checked++
		before := balance.Snapshot()
		after, err := r.calculator.Recompute(ctx, balance.RegistrationID, balance.RegistrationType)
		if err != nil {
			r.logger.Printf("reconcile: recompute failed event=%s registration=%s err=%v", eventID, balance.RegistrationID, err)
			report.Failed = append(report.Failed, balance.RegistrationID)
			continue
		}
		if !before.Equal(after) {
			report.Changed = append(report.Changed, BalanceChange{
				RegistrationID:   balance.RegistrationID,
				RegistrationType: balance.RegistrationType,
				Before:           before,
				After:            after,
			})
		}
	}

	result := metrics.ResultSuccess
	if len(report.Failed) > 0 {
		result = metrics.ResultError
	}
	metrics.ObserveReconcile(result, len(report.Changed))
	r.logger.Printf("reconcile: event=%s checked=%d changed=%d failed=%d", eventID, report.Checked, len(report.Changed), len(report.Failed))
	return report, nil
}
