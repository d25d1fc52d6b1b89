package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"appointment-service/internal/config"
	"appointment-service/internal/logging"
	"appointment-service/internal/models"
)

const sweepBatch = 200

// Service sweeps due reminders into a queue drained by a worker pool. A
// worker claims each reminder before dispatching it, so a reminder queued
// twice or already sent by the eager path is delivered once.
type Service struct {
	store      ReminderStore
	dispatcher *Dispatcher
	logger     *logging.Logger
	config     config.Config
	tasks      chan models.ScheduledReminder
	ctx        context.Context
	cancel     context.CancelFunc
	wg         *sync.WaitGroup
	cron       *cron.Cron
	now        func() time.Time
}

// New constructs a services Service
func New(store ReminderStore, dispatcher *Dispatcher, logger *logging.Logger, cfg config.Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	queueSize := cfg.Notification.QueueSize
	if queueSize <= 0 {
		queueSize = sweepBatch
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		config:     cfg,
		tasks:      make(chan models.ScheduledReminder, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
	}
}

// Start launches the worker pool and, when a schedule is configured, the
// periodic sweep.
func (s *Service) Start(wg *sync.WaitGroup) error {
	s.wg = wg
	workers := s.config.Notification.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	if s.config.Notification.SweepCron == "" {
		return nil
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.config.Notification.SweepCron, func() {
		if _, err := s.Sweep(s.ctx); err != nil {
			s.logger.Errorf("Reminder sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Infof("Reminder sweeper scheduled: %s", s.config.Notification.SweepCron)
	return nil
}

// Stop halts the sweep schedule and the workers.
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.cancel()
}

// Sweep queues every due pending reminder and returns how many were queued.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	due, err := s.store.DuePendingReminders(ctx, s.now(), sweepBatch)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, r := range due {
		if s.QueueTask(r) {
			queued++
		}
	}
	if len(due) > 0 {
		s.logger.Infof("Sweep found %d due reminders, queued %d", len(due), queued)
	}
	return queued, nil
}

// QueueTask enqueues a reminder. It is dropped when the queue is full and
// stays pending for the next sweep.
func (s *Service) QueueTask(r models.ScheduledReminder) bool {
	select {
	case s.tasks <- r:
		s.logger.Debugf("Queued reminder %s", r.ID)
		return true
	default:
		s.logger.Warnf("Queue full, leaving reminder %s for next sweep", r.ID)
		return false
	}
}

// worker processes reminders until the context is cancelled
func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Worker %d stopped", id)
			return
		case r := <-s.tasks:
			s.handleTask(r)
		}
	}
}

func (s *Service) handleTask(r models.ScheduledReminder) {
	claimed, err := s.store.ClaimScheduledReminder(s.ctx, r.ID, s.now())
	if errors.Is(err, models.ErrAlreadyClaimed) {
		s.logger.Debugf("Reminder %s already processed", r.ID)
		return
	}
	if err != nil {
		s.logger.Errorf("Claiming reminder %s failed: %v", r.ID, err)
		return
	}
	s.dispatcher.DispatchReminder(s.ctx, claimed)
}
