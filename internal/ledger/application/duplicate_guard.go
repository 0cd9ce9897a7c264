package application

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ledger "chirho-events/internal/ledger/domain"
	"chirho-events/internal/observability/metrics"
)

// DefaultDuplicateWindow is how far back the guard looks for an identical payment.
const DefaultDuplicateWindow = 30 * time.Second

// FingerprintCache remembers recent payment fingerprints.
type FingerprintCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	// Claim stores key for ttl only when it is absent and reports whether
	// this call stored it.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Remember(ctx context.Context, key string, ttl time.Duration) error
}

// PaymentFinder lists payments created since a point in time. Both
// ledger.Store and ledger.Tx satisfy it.
type PaymentFinder interface {
	FindRecentPayments(ctx context.Context, registrationID string, regType ledger.RegistrationType, since time.Time) ([]ledger.PaymentRecord, error)
}

// DuplicateGuard detects an identical payment submitted twice within a short window.
type DuplicateGuard struct {
	store  ledger.Store
	cache  FingerprintCache
	clock  Clock
	window time.Duration
	logger *log.Logger
}

// NewDuplicateGuard constructs a guard. cache may be nil.
func NewDuplicateGuard(store ledger.Store, cache FingerprintCache, clock Clock, window time.Duration, logger *log.Logger) (*DuplicateGuard, error) {
	if store == nil {
		return nil, errors.New("duplicate guard: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DuplicateGuard{store: store, cache: cache, clock: clock, window: window, logger: logger}, nil
}

// Window returns the default detection window.
func (g *DuplicateGuard) Window() time.Duration {
	return g.window
}

// IsDuplicate reports whether a payment with the same registration, amount and
// method was created within the trailing window. within <= 0 uses the default.
func (g *DuplicateGuard) IsDuplicate(ctx context.Context, registrationID string, regType ledger.RegistrationType, amount decimal.Decimal, method ledger.PaymentMethod, within time.Duration) (bool, error) {
	if g.cache != nil {
		seen, err := g.cache.Seen(ctx, Fingerprint(registrationID, regType, amount, method))
		if err != nil {
			g.logger.Printf("duplicate guard: cache lookup failed, falling back to db: %v", err)
		} else if seen {
			metrics.IncDuplicatePayment("cache")
			return true, nil
		}
	}
	return g.IsDuplicateIn(ctx, g.store, registrationID, regType, amount, method, within)
}

// IsDuplicateIn checks finder only, skipping the cache. RecordPayment calls it
// with the transaction after the balance row is locked.
func (g *DuplicateGuard) IsDuplicateIn(ctx context.Context, finder PaymentFinder, registrationID string, regType ledger.RegistrationType, amount decimal.Decimal, method ledger.PaymentMethod, within time.Duration) (bool, error) {
	if within <= 0 {
		within = g.window
	}
	since := g.clock.Now().Add(-within)
	recent, err := finder.FindRecentPayments(ctx, registrationID, regType, since)
	if err != nil {
		return false, err
	}
	for _, payment := range recent {
		if payment.Method == method && payment.Amount.Equal(amount) {
			metrics.IncDuplicatePayment("db")
			return true, nil
		}
	}
	return false, nil
}

// Claim atomically takes the fingerprint of a payment about to be recorded.
// duplicate is true when another request holds it. claimed is false when the
// cache is absent or failed; the caller then relies on IsDuplicateIn alone.
func (g *DuplicateGuard) Claim(ctx context.Context, registrationID string, regType ledger.RegistrationType, amount decimal.Decimal, method ledger.PaymentMethod) (duplicate, claimed bool) {
	if g.cache == nil {
		return false, false
	}
	ok, err := g.cache.Claim(ctx, Fingerprint(registrationID, regType, amount, method), g.window)
	if err != nil {
		g.logger.Printf("duplicate guard: cache claim failed, falling back to db: registration=%s err=%v", registrationID, err)
		return false, false
	}
	if !ok {
		metrics.IncDuplicatePayment("cache")
		return true, false
	}
	return false, true
}

// Release drops a claim whose payment was not recorded.
func (g *DuplicateGuard) Release(ctx context.Context, registrationID string, regType ledger.RegistrationType, amount decimal.Decimal, method ledger.PaymentMethod) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Release(ctx, Fingerprint(registrationID, regType, amount, method)); err != nil {
		g.logger.Printf("duplicate guard: cache release failed: registration=%s err=%v", registrationID, err)
	}
}

// Remember records a committed payment so the cache path can see it.
func (g *DuplicateGuard) Remember(ctx context.Context, payment *ledger.PaymentRecord) {
	if g.cache == nil || payment == nil {
		return
	}
	key := Fingerprint(payment.RegistrationID, payment.RegistrationType, payment.Amount, payment.Method)
	if err := g.cache.Remember(ctx, key, g.window); err != nil {
		g.logger.Printf("duplicate guard: cache write failed: registration=%s err=%v", payment.RegistrationID, err)
	}
}

// Fingerprint builds the cache key of a payment. Amounts are normalized to two
// decimals so 50 and 50.00 share a key.
func Fingerprint(registrationID string, regType ledger.RegistrationType, amount decimal.Decimal, method ledger.PaymentMethod) string {
	return strings.Join([]string{
		"payment",
		string(regType),
		registrationID,
		amount.StringFixed(2),
		string(method),
	}, ":")
}
