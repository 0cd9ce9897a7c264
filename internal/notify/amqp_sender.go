package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultEmailQueue is the queue consumed by the mail relay.
const DefaultEmailQueue = "email.outbound"

// AMQPSender publishes messages as persistent JSON to a durable queue.
type AMQPSender struct {
	url   string
	queue string
	from  string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPSender constructs a sender. The connection is opened on first use.
func NewAMQPSender(url, queue, from string) (*AMQPSender, error) {
	if url == "" {
		return nil, errors.New("amqp sender: empty url")
	}
	if queue == "" {
		queue = DefaultEmailQueue
	}
	return &AMQPSender{url: url, queue: queue, from: from}, nil
}

// Send publishes msg. A failed publish drops the connection so the next call redials.
func (s *AMQPSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if msg.From == "" {
		msg.From = s.from
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		s.reset()
		return err
	}
	return nil
}

// Close releases the broker connection.
func (s *AMQPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

func (s *AMQPSender) channel() (*amqp.Channel, error) {
	if s.ch != nil && !s.ch.IsClosed() {
		return s.ch, nil
	}
	s.reset()
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	s.conn = conn
	s.ch = ch
	return ch, nil
}

func (s *AMQPSender) reset() {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.ch = nil
	s.conn = nil
}
