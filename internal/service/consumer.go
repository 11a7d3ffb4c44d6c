package service

import (
	"context"
	"sync"
	"time"

	"papercrumpler/internal/constants"
	apperrors "papercrumpler/internal/errors"
	"papercrumpler/internal/journal"
	"papercrumpler/internal/mailbox"
	"papercrumpler/internal/metrics"
	"papercrumpler/internal/models"
	"papercrumpler/internal/printer"
	"papercrumpler/internal/tracing"

	"github.com/sirupsen/logrus"
)

// JournalRecorder stores per-item outcomes. Implemented by *journal.Journal.
type JournalRecorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// ItemFailure is one item that did not complete the pipeline.
type ItemFailure struct {
	ID     string
	Reason models.FailureReason
	Err    error
}

// BatchResult folds the outcomes of one notification. Printed lists items
// that were printed, archived and removed. Items printed but not archived
// are in Failed with ReasonBookkeeping.
type BatchResult struct {
	Printed []string
	Failed  []ItemFailure
}

func (r *BatchResult) add(o itemOutcome) {
	if o.failure != nil {
		r.Failed = append(r.Failed, *o.failure)
		return
	}
	r.Printed = append(r.Printed, o.id)
}

type itemOutcome struct {
	id      string
	failure *ItemFailure
}

// Consumer drains pendingMessages into the print sink, one item at a time.
type Consumer struct {
	store     mailbox.Store
	sink      printer.Sink
	journal   JournalRecorder
	metrics   metrics.Recorder
	logger    *logrus.Logger
	errLogger *apperrors.Logger

	pendingCollection string
	printedCollection string

	mu sync.Mutex
}

type ConsumerOption func(*Consumer)

// WithJournal records every item outcome to j.
func WithJournal(j JournalRecorder) ConsumerOption {
	return func(c *Consumer) { c.journal = j }
}

// WithMetrics overrides the metrics recorder.
func WithMetrics(m metrics.Recorder) ConsumerOption {
	return func(c *Consumer) { c.metrics = m }
}

// WithCollections overrides the pending and archive collection names.
func WithCollections(pending, printed string) ConsumerOption {
	return func(c *Consumer) {
		c.pendingCollection = pending
		c.printedCollection = printed
	}
}

// NewConsumer creates a consumer. The caller owns sink and closes it.
func NewConsumer(store mailbox.Store, sink printer.Sink, logger *logrus.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		store:             store,
		sink:              sink,
		logger:            logger,
		errLogger:         apperrors.WrapLogger(logger),
		metrics:           metrics.NewPipelineRecorder(nil),
		pendingCollection: constants.PendingCollection,
		printedCollection: constants.PrintedCollection,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run opens one subscription to the pending collection and blocks until ctx
// ends or the subscription fails for good.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.WithField("collection", c.pendingCollection).Info("Starting queue consumer")
	err := c.store.Subscribe(ctx, c.pendingCollection, func(ctx context.Context, n mailbox.Notification) {
		c.HandleNotification(ctx, n)
	})
	if err != nil {
		return apperrors.NewConnectivityError("pending subscription", err)
	}
	c.logger.Info("Queue consumer stopped")
	return nil
}

// HandleNotification runs every item carried by n through the pipeline and
// returns the folded outcomes. One item's failure never stops the others.
func (c *Consumer) HandleNotification(ctx context.Context, n mailbox.Notification) BatchResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.NotificationReceived(n.Kind.String())

	var result BatchResult
	entries := n.Entries()
	if len(entries) == 0 {
		c.logger.WithFields(logrus.Fields{
			LogFieldKind: n.Kind.String(),
			"id":         n.ID,
		}).Debug("Skipping notification without data")
		return result
	}

	ctx, span := tracing.StartSpan(ctx, "notification.handle",
		tracing.AttrNotifyKind.String(n.Kind.String()))
	defer span.End()

	for _, entry := range entries {
		if ctx.Err() != nil {
			c.logger.WithField(LogFieldCount, len(entries)-len(result.Printed)-len(result.Failed)).
				Info("Shutting down, remaining items stay pending")
			break
		}
		result.add(c.processItem(ctx, entry))
	}

	c.logger.WithFields(logrus.Fields{
		LogFieldKind: n.Kind.String(),
		"printed":    len(result.Printed),
		"failed":     len(result.Failed),
	}).Debug("Notification handled")
	return result
}

func (c *Consumer) processItem(ctx context.Context, entry mailbox.Entry) itemOutcome {
	ctx, span := tracing.StartItemSpan(ctx, "process", entry.ID)
	defer span.End()

	c.metrics.ItemReceived()

	item, err := DecodeItem(entry.ID, entry.Raw)
	if err != nil {
		c.errLogger.LogWarn(err, "Failed to decode pending item, leaving it in place", logrus.Fields{
			LogFieldItemID: entry.ID,
			LogFieldState:  models.StateFailed.String(),
			LogFieldReason: string(models.ReasonDecode),
			LogFieldRaw:    SanitizeRaw(ctx, entry.Raw),
		})
		return c.fail(ctx, journal.Entry{ItemID: entry.ID}, models.ReasonDecode, err)
	}
	tracing.AddSpanAttributes(ctx, tracing.AttrItemSender.String(item.Sender), tracing.AttrItemSource.String(item.Source))

	line := item.Line()
	record := journal.Entry{ItemID: item.ID, Sender: item.Sender, Source: item.Source, Line: line}

	start := time.Now()
	if err := c.sink.Print(ctx, line); err != nil {
		fault := apperrors.NewPrintFault(item.ID, err)
		c.errLogger.LogError(fault, "Failed to print item, leaving it pending", itemFields(ctx, item, models.StateFailed))
		return c.fail(ctx, record, models.ReasonPrint, fault)
	}
	elapsed := time.Since(start)
	c.metrics.ItemPrinted(elapsed)
	printedFields := itemFields(ctx, item, models.StatePrinted)
	printedFields[LogFieldDuration] = elapsed.Milliseconds()
	c.logger.WithFields(printedFields).Info("Printed item")

	// The paper is out; shutdown must not cut off the bookkeeping.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultArchiveTimeoutSec*time.Second)
	defer cancel()

	if err := c.archive(ctx, item); err != nil {
		fields := itemFields(ctx, item, models.StatePrinted)
		fields[LogFieldAnomaly] = AnomalyPrintedNotArchived
		c.errLogger.LogError(err, "Item printed but not archived, it may print again", fields)

		record.State = models.StatePrinted.String()
		record.Reason = models.ReasonBookkeeping
		record.Error = err.Error()
		c.writeJournal(ctx, record)
		tracing.RecordError(ctx, err)
		c.metrics.ItemFailed(models.ReasonBookkeeping)
		return itemOutcome{id: item.ID, failure: &ItemFailure{ID: item.ID, Reason: models.ReasonBookkeeping, Err: err}}
	}

	c.logger.WithFields(itemFields(ctx, item, models.StateArchived)).Debug("Archived item")
	record.State = models.StateArchived.String()
	c.writeJournal(ctx, record)
	return itemOutcome{id: item.ID}
}

// archive writes the printed record and only then removes the pending item.
func (c *Consumer) archive(ctx context.Context, item *models.PendingItem) error {
	if err := c.store.Write(ctx, mailbox.Child(c.printedCollection, item.ID), models.NewPrintedRecord(item)); err != nil {
		return apperrors.NewBookkeepingError(item.ID, "archive", err)
	}
	if err := c.store.Delete(ctx, mailbox.Child(c.pendingCollection, item.ID)); err != nil {
		return apperrors.NewBookkeepingError(item.ID, "delete", err)
	}
	return nil
}

func (c *Consumer) fail(ctx context.Context, record journal.Entry, reason models.FailureReason, err error) itemOutcome {
	record.State = models.StateFailed.String()
	record.Reason = reason
	record.Error = err.Error()
	c.writeJournal(ctx, record)

	tracing.RecordError(ctx, err)
	c.metrics.ItemFailed(reason)
	return itemOutcome{id: record.ItemID, failure: &ItemFailure{ID: record.ItemID, Reason: reason, Err: err}}
}

func (c *Consumer) writeJournal(ctx context.Context, e journal.Entry) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(ctx, e); err != nil {
		c.errLogger.LogWarn(apperrors.NewJournalError("record", err), "Failed to journal item outcome",
			logrus.Fields{LogFieldItemID: e.ItemID})
	}
}
