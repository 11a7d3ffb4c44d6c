package service

import (
	"context"
	"time"

	"papercrumpler/internal/metrics"
	"papercrumpler/internal/models"

	"github.com/sirupsen/logrus"
)

// ReasonCounter counts items whose latest attempts failed with a reason.
type ReasonCounter interface {
	CountUnresolvedSince(ctx context.Context, reason models.FailureReason, since time.Time) (int, error)
}

// AnomalyMonitor watches the journal for items printed but never archived.
type AnomalyMonitor struct {
	journal       ReasonCounter
	checkInterval time.Duration
	window        time.Duration
	gauges        *metrics.Registry
	logger        *logrus.Logger
	now           func() time.Time
	stopCh        chan struct{}
}

func NewAnomalyMonitor(journal ReasonCounter, checkInterval, window time.Duration, logger *logrus.Logger) *AnomalyMonitor {
	return &AnomalyMonitor{
		journal:       journal,
		checkInterval: checkInterval,
		window:        window,
		gauges:        metrics.GetRegistry(),
		logger:        logger,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

func (m *AnomalyMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	m.logger.WithFields(logrus.Fields{
		LogFieldComponent: "anomaly_monitor",
		"check_interval":  m.checkInterval,
		"window":          m.window,
	}).Info("Starting anomaly monitor")

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *AnomalyMonitor) Stop() {
	close(m.stopCh)
}

func (m *AnomalyMonitor) check(ctx context.Context) {
	count, err := m.journal.CountUnresolvedSince(ctx, models.ReasonBookkeeping, m.now().Add(-m.window))
	if err != nil {
		m.logger.WithError(err).Error("Failed to count unarchived items")
		return
	}
	m.gauges.SetGauge(metrics.PrintedNotArchived, float64(count), nil, "Items printed but not archived by any later attempt inside the window")
	if count > 0 {
		m.logger.WithFields(logrus.Fields{
			LogFieldCount:     count,
			LogFieldAnomaly:   AnomalyPrintedNotArchived,
			LogFieldComponent: "anomaly_monitor",
			"window":          m.window,
		}).Warn("Printed items were not archived and may print again")
	}
}
