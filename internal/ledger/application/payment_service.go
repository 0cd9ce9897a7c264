package application

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"chirho-events/internal/audit"
	ledger "chirho-events/internal/ledger/domain"
	"chirho-events/internal/observability/metrics"
)

// PaymentInput is a request to record a settled payment.
type PaymentInput struct {
	RegistrationID   string
	RegistrationType ledger.RegistrationType
	Amount           decimal.Decimal
	Method           ledger.PaymentMethod
	PaymentDate      time.Time
	Reference        string
	Notes            ledger.Metadata
	Force            bool

	RecordedBy string
	ClientIP   string
	UserAgent  string
}

// PaymentSummary is the recorded payment as returned to callers.
type PaymentSummary struct {
	ID            string               `json:"id"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod ledger.PaymentMethod `json:"paymentMethod"`
	PaymentStatus ledger.RecordStatus  `json:"paymentStatus"`
}

// PaymentReceipt is the result of recording a payment.
type PaymentReceipt struct {
	Payment        PaymentSummary         `json:"payment"`
	UpdatedBalance ledger.BalanceSnapshot `json:"updatedBalance"`
}

// PaymentRecorded is published after a payment commits.
type PaymentRecorded struct {
	Payment    ledger.PaymentRecord
	EventID    string
	Balance    ledger.BalanceSnapshot
	OccurredAt time.Time
}

// PaymentPublisher emits payment recorded events.
type PaymentPublisher interface {
	PublishPaymentRecorded(ctx context.Context, event PaymentRecorded) error
}

// PaymentService handles payment recording use cases.
type PaymentService struct {
	store      ledger.Store
	guard      *DuplicateGuard
	calculator *BalanceCalculator
	publisher  PaymentPublisher
	audit      audit.Logger
	clock      Clock
	logger     *log.Logger
}

// NewPaymentService constructs the service. publisher and auditLogger may be nil.
func NewPaymentService(
	store ledger.Store,
	guard *DuplicateGuard,
	calculator *BalanceCalculator,
	publisher PaymentPublisher,
	auditLogger audit.Logger,
	clock Clock,
	logger *log.Logger,
) (*PaymentService, error) {
	if store == nil {
		return nil, errors.New("payment service: nil store")
	}
	if guard == nil {
		return nil, errors.New("payment service: nil duplicate guard")
	}
	if calculator == nil {
		return nil, errors.New("payment service: nil balance calculator")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PaymentService{
		store:      store,
		guard:      guard,
		calculator: calculator,
		publisher:  publisher,
		audit:      auditLogger,
		clock:      clock,
		logger:     logger,
	}, nil
}

// RecordPayment validates, guards, inserts and recomputes in one transaction.
// Notification and audit happen after commit and never fail the call.
func (s *PaymentService) RecordPayment(ctx context.Context, input PaymentInput) (PaymentReceipt, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObservePaymentRecord(result, time.Since(start))
	}()

	if err := s.validate(input); err != nil {
		result = metrics.ResultRejected
		return PaymentReceipt{}, err
	}

	now := s.clock.Now()
	payment, err := ledger.NewPaymentRecord(input.RegistrationID, input.RegistrationType, input.Amount, input.Method, input.PaymentDate, now)
	if err != nil {
		result = metrics.ResultRejected
		return PaymentReceipt{}, err
	}
	payment.Reference = strings.TrimSpace(input.Reference)
	payment.Notes = input.Notes
	payment.RecordedBy = input.RecordedBy

	duplicateErr := &ledger.DuplicatePaymentError{
		RegistrationID: input.RegistrationID,
		Amount:         input.Amount.StringFixed(2),
		Method:         input.Method,
	}
	claimed := false
	if !input.Force {
		var duplicate bool
		duplicate, claimed = s.guard.Claim(ctx, input.RegistrationID, input.RegistrationType, input.Amount, input.Method)
		if duplicate {
			result = metrics.ResultDuplicate
			return PaymentReceipt{}, duplicateErr
		}
	}

	var (
		snapshot ledger.BalanceSnapshot
		eventID  string
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		balance, err := lockBalance(ctx, tx, input.RegistrationID, input.RegistrationType)
		if err != nil {
			return err
		}
		eventID = balance.EventID
		if !input.Force {
			duplicate, err := s.guard.IsDuplicateIn(ctx, tx, input.RegistrationID, input.RegistrationType, input.Amount, input.Method, 0)
			if err != nil {
				return err
			}
			if duplicate {
				return duplicateErr
			}
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		snapshot, err = s.calculator.recomputeLocked(ctx, tx, balance)
		return err
	})
	if err != nil {
		var notFound *ledger.NotFoundError
		switch {
		case errors.Is(err, ledger.ErrDuplicatePayment):
			result = metrics.ResultDuplicate
			return PaymentReceipt{}, err
		case errors.As(err, &notFound):
			result = metrics.ResultRejected
		default:
			result = metrics.ResultError
		}
		if claimed {
			s.guard.Release(ctx, input.RegistrationID, input.RegistrationType, input.Amount, input.Method)
		}
		return PaymentReceipt{}, err
	}

	s.logger.Printf("payment recorded: registration=%s type=%s amount=%s method=%s status=%s",
		payment.RegistrationID, payment.RegistrationType, payment.Amount.StringFixed(2), payment.Method, snapshot.PaymentStatus)

	s.afterCommit(ctx, input, payment, eventID, snapshot)

	return PaymentReceipt{
		Payment: PaymentSummary{
			ID:            payment.ID,
			Amount:        payment.Amount,
			PaymentMethod: payment.Method,
			PaymentStatus: payment.Status,
		},
		UpdatedBalance: snapshot,
	}, nil
}

func (s *PaymentService) afterCommit(ctx context.Context, input PaymentInput, payment *ledger.PaymentRecord, eventID string, snapshot ledger.BalanceSnapshot) {
	s.guard.Remember(ctx, payment)

	if s.audit != nil {
		entry := audit.Entry{
			EventID:      eventID,
			Actor:        input.RecordedBy,
			Action:       audit.ActionPaymentRecord,
			ResourceType: "payment",
			ResourceID:   payment.ID,
			Metadata: audit.MarshalMetadata(map[string]any{
				"registrationId":   payment.RegistrationID,
				"registrationType": payment.RegistrationType,
				"amount":           payment.Amount.StringFixed(2),
				"method":           payment.Method,
				"forced":           input.Force,
				"paymentStatus":    snapshot.PaymentStatus,
			}),
			IP:        input.ClientIP,
			UserAgent: input.UserAgent,
			CreatedAt: payment.CreatedAt,
		}
		if err := s.audit.Log(ctx, entry); err != nil {
			s.logger.Printf("payment audit failed: payment=%s err=%v", payment.ID, err)
		}
	}

	if s.publisher != nil {
		event := PaymentRecorded{
			Payment:    *payment,
			EventID:    eventID,
			Balance:    snapshot,
			OccurredAt: payment.CreatedAt,
		}
		if err := s.publisher.PublishPaymentRecorded(ctx, event); err != nil {
			s.logger.Printf("payment notification failed: payment=%s err=%v", payment.ID, err)
		}
	}
}

// GetBalance returns the current balance of a registration.
func (s *PaymentService) GetBalance(ctx context.Context, registrationID string) (*ledger.PaymentBalance, error) {
	if strings.TrimSpace(registrationID) == "" {
		return nil, ledger.NewValidationError("registrationId", "is required")
	}
	balance, err := s.store.GetBalance(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, &ledger.NotFoundError{RegistrationID: registrationID}
	}
	return balance, nil
}

// ListPayments returns every payment record of a registration, oldest first.
func (s *PaymentService) ListPayments(ctx context.Context, registrationID string) ([]ledger.PaymentRecord, error) {
	if strings.TrimSpace(registrationID) == "" {
		return nil, ledger.NewValidationError("registrationId", "is required")
	}
	return s.store.ListPayments(ctx, registrationID)
}

// ListEventBalances returns every balance of an event.
func (s *PaymentService) ListEventBalances(ctx context.Context, eventID string) ([]ledger.PaymentBalance, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, ledger.NewValidationError("eventId", "is required")
	}
	return s.store.ListBalancesByEvent(ctx, eventID)
}

// Recompute exposes the balance calculator for manual corrections.
func (s *PaymentService) Recompute(ctx context.Context, registrationID string, regType ledger.RegistrationType) (ledger.BalanceSnapshot, error) {
	return s.calculator.Recompute(ctx, registrationID, regType)
}

func (s *PaymentService) validate(input PaymentInput) error {
	if err := validateRegistration(input.RegistrationID, input.RegistrationType); err != nil {
		return err
	}
	if !input.Amount.IsPositive() {
		return ledger.NewValidationError("amount", "must be greater than zero")
	}
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return ledger.NewValidationError("amount", "must have at most two decimal places")
	}
	if !input.Method.Valid() {
		return ledger.NewValidationError("paymentMethod", "must be one of card, check, cash, bank_transfer, other")
	}
	if input.PaymentDate.IsZero() {
		return ledger.NewValidationError("paymentDate", "is required")
	}
	if dateOnly(input.PaymentDate).After(dateOnly(s.clock.Now())) {
		return ledger.NewValidationError("paymentDate", "cannot be in the future")
	}
	if input.Method == ledger.MethodCheck && strings.TrimSpace(input.Reference) == "" {
		return ledger.NewValidationError("reference", "check number is required for check payments")
	}
	if err := input.Notes.Validate(); err != nil {
		return err
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
