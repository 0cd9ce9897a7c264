package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegistrationType distinguishes group and individual registrations.
type RegistrationType string

const (
	RegistrationGroup      RegistrationType = "group"
	RegistrationIndividual RegistrationType = "individual"
)

// Valid reports whether t is a known registration type.
func (t RegistrationType) Valid() bool {
	return t == RegistrationGroup || t == RegistrationIndividual
}

// ParseRegistrationType parses a registration type case-insensitively.
func ParseRegistrationType(raw string) (RegistrationType, error) {
	t := RegistrationType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", ErrInvalidRegistrationType
	}
	return t, nil
}

// RecordStatus is the processing state of a single payment record.
type RecordStatus string

const (
	RecordSucceeded RecordStatus = "succeeded"
	RecordPending   RecordStatus = "pending"
)

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodCheck        PaymentMethod = "check"
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodOther        PaymentMethod = "other"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodCheck, MethodCash, MethodBankTransfer, MethodOther:
		return true
	}
	return false
}

// Metadata keys accepted on a payment record.
const (
	MetaCheckNumber = "check_number"
	MetaProcessorID = "processor_id"
	MetaMemo        = "memo"
	MetaPayerName   = "payer_name"
)

var allowedMetadataKeys = map[string]struct{}{
	MetaCheckNumber: {},
	MetaProcessorID: {},
	MetaMemo:        {},
	MetaPayerName:   {},
}

// Metadata holds free-form notes attached to a payment.
type Metadata map[string]string

// Validate rejects unknown keys.
func (m Metadata) Validate() error {
	var unknown []string
	for key := range m {
		if _, ok := allowedMetadataKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return NewValidationError("notes", fmt.Sprintf("unsupported keys: %s", strings.Join(unknown, ", ")))
}

// JSON encodes metadata for storage; empty metadata encodes as an empty object.
func (m Metadata) JSON() []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	raw, err := json.Marshal(map[string]string(m))
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// PaymentRecord is one immutable money movement against a registration.
type PaymentRecord struct {
	ID               string
	RegistrationID   string
	RegistrationType RegistrationType
	Amount           decimal.Decimal
	Status           RecordStatus
	Method           PaymentMethod
	PaymentDate      time.Time
	Reference        string
	Notes            Metadata
	RecordedBy       string
	CreatedAt        time.Time
}

// NewPaymentRecord constructs a succeeded payment record.
func NewPaymentRecord(registrationID string, regType RegistrationType, amount decimal.Decimal, method PaymentMethod, paymentDate, createdAt time.Time) (*PaymentRecord, error) {
	if strings.TrimSpace(registrationID) == "" {
		return nil, ErrEmptyRegistrationID
	}
	if !regType.Valid() {
		return nil, ErrInvalidRegistrationType
	}
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &PaymentRecord{
		ID:               uuid.NewString(),
		RegistrationID:   registrationID,
		RegistrationType: regType,
		Amount:           amount,
		Status:           RecordSucceeded,
		Method:           method,
		PaymentDate:      paymentDate,
		CreatedAt:        createdAt.UTC(),
	}, nil
}
