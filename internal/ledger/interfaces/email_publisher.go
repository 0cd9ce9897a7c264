package interfaces

import (
	"context"
	"errors"
	"log"

	"chirho-events/internal/ledger/application"
	ledger "chirho-events/internal/ledger/domain"
	"chirho-events/internal/notify"
)

// EmailPublisher turns recorded payments into "payment received" emails.
type EmailPublisher struct {
	contacts   ledger.ContactDirectory
	template   *notify.Template
	dispatcher *notify.Dispatcher
	subject    string
	logger     *log.Logger
}

// NewEmailPublisher constructs the publisher. template may be nil.
func NewEmailPublisher(contacts ledger.ContactDirectory, template *notify.Template, dispatcher *notify.Dispatcher, logger *log.Logger) (*EmailPublisher, error) {
	if contacts == nil {
		return nil, errors.New("email publisher: nil contact directory")
	}
	if dispatcher == nil {
		return nil, errors.New("email publisher: nil dispatcher")
	}
	if template == nil {
		defaultTemplate, err := notify.NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	if logger == nil {
		logger = log.Default()
	}
	return &EmailPublisher{
		contacts:   contacts,
		template:   template,
		dispatcher: dispatcher,
		subject:    notify.DefaultPaymentSubject,
		logger:     logger,
	}, nil
}

// PublishPaymentRecorded resolves the contact, renders the email and hands it
// to the dispatcher. Registrations without an email address are skipped.
func (p *EmailPublisher) PublishPaymentRecorded(ctx context.Context, event application.PaymentRecorded) error {
	if p == nil {
		return errors.New("email publisher: nil publisher")
	}
	payment := event.Payment
	contact, err := p.contacts.ContactFor(ctx, payment.RegistrationID, payment.RegistrationType)
	if err != nil {
		return err
	}
	if contact == nil || contact.Email == "" {
		p.logger.Printf("payment email skipped: registration=%s reason=no contact email", payment.RegistrationID)
		return nil
	}
	body, err := p.template.Render(notify.PaymentData{
		Name:            contact.Name,
		EventName:       contact.EventName,
		Amount:          payment.Amount.StringFixed(2),
		Method:          methodLabel(payment.Method),
		PaymentDate:     paymentDay(payment),
		Reference:       payment.Reference,
		AmountPaid:      event.Balance.AmountPaid.StringFixed(2),
		AmountRemaining: event.Balance.AmountRemaining.StringFixed(2),
		Status:          string(event.Balance.PaymentStatus),
		StatusLabel:     notify.StatusLabel(string(event.Balance.PaymentStatus)),
	})
	if err != nil {
		return err
	}
	p.dispatcher.Dispatch(notify.Message{
		To:      contact.Email,
		Subject: p.subject,
		HTML:    body,
	})
	return nil
}

func methodLabel(method ledger.PaymentMethod) string {
	switch method {
	case ledger.MethodBankTransfer:
		return "bank transfer"
	case ledger.MethodCard:
		return "card"
	}
	return string(method)
}
