// Package scheduler reconciles the prediction ledger on a cron schedule.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/insighthub/internal/notify"
	"github.com/Alias1177/insighthub/internal/tracking"
)

// Reconciler resolves matured predictions
type Reconciler interface {
	Reconcile(ctx context.Context) (tracking.ReconcileReport, error)
}

// Scheduler manages the cron tasks
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	notifier   notify.Notifier
	ctx        context.Context
	logger     zerolog.Logger
}

// New creates a scheduler whose jobs run under ctx
func New(ctx context.Context, reconciler Reconciler, notifier notify.Notifier) *Scheduler {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		reconciler: reconciler,
		notifier:   notifier,
		ctx:        ctx,
		logger:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds the reconcile job on spec (six fields, seconds first)
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunReconcileNow); err != nil {
		return fmt.Errorf("register reconcile task: %w", err)
	}
	s.logger.Info().Str("spec", spec).Msg("reconcile task registered")
	return nil
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop waits for running jobs and stops the scheduler
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// RunReconcileNow executes the reconcile task immediately
func (s *Scheduler) RunReconcileNow() {
	report, err := s.reconciler.Reconcile(s.ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled reconcile failed")
		s.trySend(fmt.Sprintf("Prediction reconcile failed: %v", err))
		return
	}
	if report.Completed+report.Errored == 0 {
		return
	}
	s.trySend(FormatReport(report))
}

// FormatReport renders a reconcile report for a chat message
func FormatReport(r tracking.ReconcileReport) string {
	return fmt.Sprintf("Predictions reconciled: %d checked, %d completed, %d without price, %d still pending",
		r.Checked, r.Completed, r.Errored, r.StillPending)
}

func (s *Scheduler) trySend(text string) {
	if err := s.notifier.Notify(s.ctx, text); err != nil {
		s.logger.Warn().Err(err).Msg("notification failed")
	}
}
