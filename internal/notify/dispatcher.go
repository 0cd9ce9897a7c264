package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chirho-events/internal/observability/metrics"
)

const (
	defaultSendTimeout = 10 * time.Second
	defaultRatePerSec  = 5
)

// Dispatcher sends messages in the background. Failures are logged and
// counted, never returned to the caller.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
	timeout time.Duration
	logger  *log.Logger
	wg      sync.WaitGroup
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds each send including the rate limit wait.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithRate limits sends per second with the given burst.
func WithRate(perSecond float64, burst int) DispatcherOption {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(sender Sender, opts ...DispatcherOption) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("notify dispatcher: nil sender")
	}
	d := &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(defaultRatePerSec), defaultRatePerSec),
		timeout: defaultSendTimeout,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch queues msg for delivery and returns immediately.
func (d *Dispatcher) Dispatch(msg Message) {
	if d == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Printf("notify: send panicked: to=%s panic=%v", msg.To, r)
				metrics.IncNotification(metrics.ResultError)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.limiter.Wait(ctx); err != nil {
			d.logger.Printf("notify: rate limit wait failed: to=%s err=%v", msg.To, err)
			metrics.IncNotification(metrics.ResultError)
			return
		}
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Printf("notify: send failed: to=%s subject=%q err=%v", msg.To, msg.Subject, err)
			metrics.IncNotification(metrics.ResultError)
			return
		}
		metrics.IncNotification(metrics.ResultSuccess)
	}()
}

// Wait blocks until every dispatched message finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
