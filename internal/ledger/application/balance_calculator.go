package application

import (
	"context"
	"errors"
	"strings"
	"time"

	ledger "chirho-events/internal/ledger/domain"
	"chirho-events/internal/observability/metrics"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// BalanceCalculator recomputes derived balance fields from payment records.
type BalanceCalculator struct {
	store ledger.Store
	clock Clock
}

// NewBalanceCalculator constructs the calculator.
func NewBalanceCalculator(store ledger.Store, clock Clock) (*BalanceCalculator, error) {
	if store == nil {
		return nil, errors.New("balance calculator: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &BalanceCalculator{store: store, clock: clock}, nil
}

// Recompute locks the balance, sums every succeeded payment and persists the
// derived values. Calling it twice with no new payments yields the same snapshot.
func (c *BalanceCalculator) Recompute(ctx context.Context, registrationID string, regType ledger.RegistrationType) (ledger.BalanceSnapshot, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveBalanceRecompute(result, time.Since(start))
	}()

	if err := validateRegistration(registrationID, regType); err != nil {
		result = metrics.ResultRejected
		return ledger.BalanceSnapshot{}, err
	}

	var snapshot ledger.BalanceSnapshot
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		balance, err := lockBalance(ctx, tx, registrationID, regType)
		if err != nil {
			return err
		}
		snapshot, err = c.recomputeLocked(ctx, tx, balance)
		return err
	})
	if err != nil {
		result = metrics.ResultError
		return ledger.BalanceSnapshot{}, err
	}
	return snapshot, nil
}

// recomputeLocked expects balance to be locked by tx.
func (c *BalanceCalculator) recomputeLocked(ctx context.Context, tx ledger.Tx, balance *ledger.PaymentBalance) (ledger.BalanceSnapshot, error) {
	records, err := tx.ListSucceededPayments(ctx, balance.RegistrationID, balance.RegistrationType)
	if err != nil {
		return ledger.BalanceSnapshot{}, err
	}
	balance.Apply(records, c.clock.Now())
	if err := tx.SaveBalance(ctx, balance); err != nil {
		return ledger.BalanceSnapshot{}, err
	}
	return balance.Snapshot(), nil
}

func lockBalance(ctx context.Context, tx ledger.Tx, registrationID string, regType ledger.RegistrationType) (*ledger.PaymentBalance, error) {
	balance, err := tx.LockBalance(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.RegistrationType != regType {
		return nil, &ledger.NotFoundError{RegistrationID: registrationID}
	}
	return balance, nil
}

func validateRegistration(registrationID string, regType ledger.RegistrationType) error {
	if strings.TrimSpace(registrationID) == "" {
		return ledger.NewValidationError("registrationId", "is required")
	}
	if !regType.Valid() {
		return ledger.NewValidationError("registrationType", "must be group or individual")
	}
	return nil
}
