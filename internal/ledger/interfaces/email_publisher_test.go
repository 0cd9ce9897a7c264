package interfaces

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"chirho-events/internal/ledger/application"
	ledger "chirho-events/internal/ledger/domain"
	"chirho-events/internal/ledger/infrastructure/memory"
	"chirho-events/internal/notify"
)

type captureSender struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (s *captureSender) Send(ctx context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func newPublisher(t *testing.T, contacts ledger.ContactDirectory) (*EmailPublisher, *notify.Dispatcher, *captureSender) {
	t.Helper()
	sender := &captureSender{}
	logger := log.New(io.Discard, "", 0)
	dispatcher, err := notify.NewDispatcher(sender, notify.WithLogger(logger))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	publisher, err := NewEmailPublisher(contacts, nil, dispatcher, logger)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	return publisher, dispatcher, sender
}

func recordedEvent(registrationID string) application.PaymentRecorded {
	return application.PaymentRecorded{
		Payment: ledger.PaymentRecord{
			ID:               "pay-1",
			RegistrationID:   registrationID,
			RegistrationType: ledger.RegistrationGroup,
			Amount:           decimal.RequireFromString("250"),
			Method:           ledger.MethodCheck,
			PaymentDate:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			Reference:        "1042",
		},
		EventID: "event-1",
		Balance: ledger.BalanceSnapshot{
			AmountPaid:      decimal.RequireFromString("250"),
			AmountRemaining: decimal.RequireFromString("750"),
			PaymentStatus:   ledger.PaymentStatusPartial,
		},
	}
}

func TestEmailPublisherSendsReceipt(t *testing.T) {
	contacts := memory.NewContactDirectory()
	contacts.Put("reg-1", ledger.Contact{Name: "Teresa Ruiz", Email: "leader@example.org", EventName: "Summer Retreat"})
	publisher, dispatcher, sender := newPublisher(t, contacts)

	if err := publisher.PublishPaymentRecorded(context.Background(), recordedEvent("reg-1")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	dispatcher.Wait()

	if len(sender.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.messages))
	}
	msg := sender.messages[0]
	if msg.To != "leader@example.org" || msg.Subject != notify.DefaultPaymentSubject {
		t.Fatalf("unexpected envelope %+v", msg)
	}
	for _, want := range []string{"Teresa Ruiz", "$250.00", "$750.00", "2026-03-02", "1042", "Summer Retreat"} {
		if !strings.Contains(msg.HTML, want) {
			t.Fatalf("body missing %q: %s", want, msg.HTML)
		}
	}
}

func TestEmailPublisherSkipsUnknownContact(t *testing.T) {
	publisher, dispatcher, sender := newPublisher(t, memory.NewContactDirectory())

	if err := publisher.PublishPaymentRecorded(context.Background(), recordedEvent("reg-404")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	dispatcher.Wait()
	if len(sender.messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(sender.messages))
	}
}

func TestNewEmailPublisherRequiresDeps(t *testing.T) {
	if _, err := NewEmailPublisher(nil, nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil contacts")
	}
	if _, err := NewEmailPublisher(memory.NewContactDirectory(), nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil dispatcher")
	}
}
