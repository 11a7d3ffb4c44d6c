package service

import (
	"context"
	"time"

	"papercrumpler/internal/constants"
	"papercrumpler/internal/metrics"

	"github.com/sirupsen/logrus"
)

// JournalPruner deletes journal history past a retention window.
type JournalPruner interface {
	Prune(ctx context.Context, retentionDays int) (int64, error)
}

// Scheduler prunes the print journal on a fixed interval.
type Scheduler struct {
	journal       JournalPruner
	retentionDays int
	interval      time.Duration
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewScheduler(journal JournalPruner, retentionDays, intervalHours int, logger *logrus.Logger) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = constants.CleanupSchedulerIntervalHours
	}
	if retentionDays <= 0 {
		retentionDays = constants.DefaultRetentionDays
	}
	return &Scheduler{
		journal:       journal,
		retentionDays: retentionDays,
		interval:      time.Duration(intervalHours) * time.Hour,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Start prunes once immediately, then on every tick until ctx ends or Stop.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		LogFieldComponent: "journal_scheduler",
		"retention_days":  s.retentionDays,
		"interval":        s.interval,
	}).Info("Starting journal cleanup scheduler")

	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	removed, err := s.journal.Prune(ctx, s.retentionDays)
	if err != nil {
		s.logger.WithError(err).Error("Failed to prune print journal")
		return
	}
	metrics.GetRegistry().AddToCounter(metrics.JournalEntriesPruned, float64(removed), nil, "Journal rows removed by retention")
	s.logger.WithField(LogFieldCount, removed).Info("Pruned print journal")
}
