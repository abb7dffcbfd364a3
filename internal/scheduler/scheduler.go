package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/config"
	"github.com/mcmanager/milkledger/internal/service/reporting"
)

// Flusher persists pending ledger edits.
type Flusher interface {
	FlushDirty(ctx context.Context) (int, error)
}

// SummaryReporter renders the daily collection summary.
type SummaryReporter interface {
	DailySummary(ctx context.Context, day time.Time) (string, error)
}

// Notifier delivers text to the manager.
type Notifier interface {
	NotifyManager(ctx context.Context, text string) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	cfg       config.Config
	flusher   Flusher
	reporting SummaryReporter
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a new scheduler instance. notifier may be nil, in which
// case the daily summary is not scheduled.
func NewScheduler(cfg config.Config, flusher Flusher, reportingSvc SummaryReporter, notifier Notifier, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(cfg.Location())),
		cfg:       cfg,
		flusher:   flusher,
		reporting: reportingSvc,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	if _, err := s.cron.AddFunc(s.cfg.Autosave.Schedule, s.autosave); err != nil {
		return fmt.Errorf("schedule autosave %q: %w", s.cfg.Autosave.Schedule, err)
	}

	if s.notifier != nil {
		if _, err := s.cron.AddFunc(s.cfg.Reporting.CronSchedule, s.sendDailySummary); err != nil {
			return fmt.Errorf("schedule daily summary %q: %w", s.cfg.Reporting.CronSchedule, err)
		}
	} else {
		s.logger.Warn("whatsapp delivery disabled, daily summary not scheduled")
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// autosave flushes every dirty ledger buffer. It races manual saves: the
// later write wins and a stale one fails with a conflict that stays dirty
// for the next tick.
func (s *Scheduler) autosave() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	saved, err := s.flusher.FlushDirty(ctx)
	if err != nil {
		s.logger.Error("autosave failed", zap.Int("saved", saved), zap.Error(err))
		return
	}
	if saved > 0 {
		s.logger.Info("autosave completed", zap.Int("saved", saved))
	}
}

func (s *Scheduler) sendDailySummary() {
	s.logger.Info("generating daily summary")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	summary, err := s.reporting.DailySummary(ctx, s.now().In(s.cfg.Location()))
	if errors.Is(err, reporting.ErrNoData) {
		s.logger.Info("no collection recorded today, summary skipped")
		return
	}
	if err != nil {
		s.logger.Error("failed to generate daily summary", zap.Error(err))
		return
	}

	if err := s.notifier.NotifyManager(ctx, summary); err != nil {
		s.logger.Error("failed to send daily summary", zap.Error(err))
	} else {
		s.logger.Info("daily summary sent successfully")
	}
}
