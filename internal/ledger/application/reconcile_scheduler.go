package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultReconcileTimeout = 10 * time.Minute

// ReconcileScheduler runs the reconciler for a fixed set of events on a cron schedule.
type ReconcileScheduler struct {
	reconciler *Reconciler
	schedule   string
	events     []string
	timeout    time.Duration
	logger     *log.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewReconcileScheduler constructs a scheduler. schedule uses the standard
// five-field cron syntax.
func NewReconcileScheduler(reconciler *Reconciler, schedule string, events []string, logger *log.Logger) (*ReconcileScheduler, error) {
	if reconciler == nil {
		return nil, errors.New("reconcile scheduler: nil reconciler")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("reconcile scheduler: invalid schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReconcileScheduler{
		reconciler: reconciler,
		schedule:   schedule,
		events:     append([]string(nil), events...),
		timeout:    defaultReconcileTimeout,
		logger:     logger,
		cron:       cron.New(),
	}, nil
}

// Start registers the job and starts the cron goroutine.
func (s *ReconcileScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("reconcile scheduler: already running")
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("reconcile scheduler: add job: %w", err)
	}
	s.cron.Start()
	s.running = true
	s.logger.Printf("reconcile scheduler started: schedule=%q events=%d", s.schedule, len(s.events))
	return nil
}

// Stop waits for a running job to finish.
func (s *ReconcileScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
}

// RunOnce reconciles every configured event and returns the reports of the
// events that completed.
func (s *ReconcileScheduler) RunOnce(ctx context.Context) []ReconcileReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reports := make([]ReconcileReport, 0, len(s.events))
	for _, eventID := range s.events {
		report, err := s.reconciler.ReconcileEvent(ctx, eventID)
		if err != nil {
			s.logger.Printf("scheduled reconcile failed: event=%s err=%v", eventID, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports
}
