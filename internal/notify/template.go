package notify

import (
	"bytes"
	"errors"
	"html/template"
)

// DefaultPaymentTemplate is the body of the "payment received" email.
const DefaultPaymentTemplate = `<html>
<body>
<p>Dear {{.Name}},</p>
<p>We received your {{.Method}} payment of <strong>${{.Amount}}</strong>{{if .EventName}} for {{.EventName}}{{end}} on {{.PaymentDate}}.</p>
<table>
<tr><td>Amount paid to date</td><td>${{.AmountPaid}}</td></tr>
<tr><td>Remaining balance</td><td>${{.AmountRemaining}}</td></tr>
<tr><td>Status</td><td>{{.StatusLabel}}</td></tr>
</table>
{{if .Reference}}<p>Reference: {{.Reference}}</p>{{end}}
<p>Thank you,<br>ChiRho Events</p>
</body>
</html>`

// DefaultPaymentSubject is the subject line of the "payment received" email.
const DefaultPaymentSubject = "Payment received"

// PaymentData provides fields for rendering a payment email.
type PaymentData struct {
	Name            string
	EventName       string
	Amount          string
	Method          string
	PaymentDate     string
	Reference       string
	AmountPaid      string
	AmountRemaining string
	Status          string
	StatusLabel     string
}

// Template renders email bodies.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses an email template, falling back to DefaultPaymentTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultPaymentTemplate
	}
	parsed, err := template.New("payment-received").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data PaymentData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("email template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// StatusLabel returns a human label for a payment status code.
func StatusLabel(status string) string {
	switch status {
	case "paid_full":
		return "Paid in full"
	case "partial":
		return "Partially paid"
	case "overpaid":
		return "Overpaid"
	case "unpaid":
		return "Unpaid"
	}
	return status
}
