package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/half-paul/donations2.0-sub001/internal/processor"
	"github.com/half-paul/donations2.0-sub001/internal/repository"
)

// Scheduler runs the background reconciliation jobs.
type Scheduler struct {
	cron     *cron.Cron
	registry *processor.Registry
	retryer  *processor.Retryer
	repos    *CronRepos
	logger   *zap.Logger
}

// CronRepos bundles repositories needed by cron jobs.
type CronRepos struct {
	Donation *repository.DonationRepository
	Plan     *repository.RecurringPlanRepository
}

// New creates a new cron scheduler.
func New(registry *processor.Registry, retryer *processor.Retryer, repos *CronRepos, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		registry: registry,
		retryer:  retryer,
		repos:    repos,
		logger:   logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Reconcile pending donations against the vendor - every 5 minutes.
	// Catches webhooks that never arrived.
	s.cron.AddFunc("0 */5 * * * *", func() {
		s.logger.Debug("Running: reconcile pending donations")
		s.reconcilePendingDonations()
	})

	// Advance overdue recurring plan charge dates - hourly.
	s.cron.AddFunc("0 0 * * * *", func() {
		s.logger.Debug("Running: advance recurring plan schedules")
		s.advancePlanSchedules()
	})

	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// reconcilePendingDonations re-reads each pending donation's intent from the
// vendor and applies the authoritative status. Transient vendor failures
// leave the record pending for the next run.
func (s *Scheduler) reconcilePendingDonations() {
	donations, err := s.repos.Donation.FindPending(100)
	if err != nil {
		s.logger.Error("Failed to load pending donations", zap.Error(err))
		return
	}

	for _, donation := range donations {
		proc, err := s.registry.Get(donation.Processor)
		if err != nil {
			s.logger.Warn("Pending donation references unconfigured processor",
				zap.String("order_id", donation.OrderID),
				zap.String("processor", donation.Processor))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		var intent *processor.PaymentIntent
		err = s.retryer.Do(ctx, "reconcile_payment", func(ctx context.Context) error {
			var opErr error
			intent, opErr = proc.ConfirmPayment(ctx, donation.PaymentIntentID)
			return opErr
		})
		cancel()
		if err != nil {
			s.logger.Warn("Donation reconciliation failed",
				zap.String("order_id", donation.OrderID), zap.Error(err))
			continue
		}

		if string(intent.Status) == donation.Status {
			continue
		}
		if err := s.repos.Donation.UpdateStatus(donation.OrderID, string(intent.Status)); err != nil {
			s.logger.Error("Failed to update reconciled donation",
				zap.String("order_id", donation.OrderID), zap.Error(err))
			continue
		}
		s.logger.Info("Donation status reconciled",
			zap.String("order_id", donation.OrderID),
			zap.String("status", string(intent.Status)))
	}
}

// advancePlanSchedules moves overdue next-charge dates forward by the plan's
// own cadence. The vendor-reported date from webhooks stays authoritative;
// this only keeps the local projection from going stale when notifications
// are missed.
func (s *Scheduler) advancePlanSchedules() {
	plans, err := s.repos.Plan.FindActive(time.Now(), 200)
	if err != nil {
		s.logger.Error("Failed to load overdue recurring plans", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, plan := range plans {
		freq := processor.Frequency(plan.Frequency)
		if !freq.Valid() {
			s.logger.Warn("Recurring plan has unknown frequency",
				zap.String("mandate_id", plan.MandateID),
				zap.String("frequency", plan.Frequency))
			continue
		}

		next := plan.NextChargeDate
		if next.IsZero() {
			next = now
		}
		for !next.After(now) {
			next = freq.NextChargeDate(next)
		}
		if err := s.repos.Plan.UpdateNextChargeDate(plan.Processor, plan.MandateID, next); err != nil {
			s.logger.Error("Failed to advance plan schedule",
				zap.String("mandate_id", plan.MandateID), zap.Error(err))
			continue
		}
		s.logger.Debug("Recurring plan schedule advanced",
			zap.String("mandate_id", plan.MandateID),
			zap.Time("next_charge_date", next))
	}
}
