package notify

import (
	"context"
	"errors"
	"log"
)

// Message is one outbound email.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNoRecipient is returned when a message has no address.
var ErrNoRecipient = errors.New("notify: empty recipient")

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *log.Logger
}

// NewLogSender constructs a log sender.
func NewLogSender(logger *log.Logger) *LogSender {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message envelope.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	_ = ctx
	if msg.To == "" {
		return ErrNoRecipient
	}
	s.logger.Printf("email (not sent): to=%s subject=%q bytes=%d", msg.To, msg.Subject, len(msg.HTML))
	return nil
}
