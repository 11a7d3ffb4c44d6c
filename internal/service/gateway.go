package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"papercrumpler/internal/constants"
	apperrors "papercrumpler/internal/errors"
	"papercrumpler/internal/mailbox"
	"papercrumpler/internal/metrics"
	"papercrumpler/internal/models"

	"github.com/sirupsen/logrus"
)

// Ack confirms a submission was queued. It says nothing about printing.
type Ack struct {
	Key    string
	Sender string
	Source string
	Text   string
}

// String renders the acknowledgment shown to the submitter.
func (a Ack) String() string {
	return fmt.Sprintf("Printing message: `%s`", models.FormatLine(a.Sender, a.Source, a.Text))
}

// Gateway accepts text submissions and enqueues them as pending items.
type Gateway struct {
	store      mailbox.Store
	source     string
	collection string
	logger     *logrus.Logger
	errLogger  *apperrors.Logger
}

// NewGateway creates a gateway that tags every submission with source.
func NewGateway(store mailbox.Store, source string, logger *logrus.Logger) *Gateway {
	if source == "" {
		source = constants.DefaultGatewaySource
	}
	return &Gateway{
		store:      store,
		source:     source,
		collection: constants.PendingCollection,
		logger:     logger,
		errLogger:  apperrors.WrapLogger(logger),
	}
}

// Submit validates text, defaults an empty sender and enqueues the item. The
// store's durability is relied on once the enqueue succeeds; failures are
// returned without retry.
func (g *Gateway) Submit(ctx context.Context, text, sender string) (*Ack, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		g.recordSubmission("invalid")
		return nil, apperrors.NewValidationError("text", "must not be empty")
	}
	if n := utf8.RuneCountInString(text); n > constants.MaxMessageRunes {
		g.recordSubmission("invalid")
		return nil, apperrors.NewValidationError("text",
			fmt.Sprintf("must be at most %d characters, got %d", constants.MaxMessageRunes, n))
	}

	sender = strings.TrimSpace(sender)
	if sender == "" {
		sender = constants.DefaultSenderHandle
	}

	key, err := g.store.Enqueue(ctx, g.collection, models.PendingRecord{
		Message:   text,
		CreatedAt: models.ServerTimestamp,
		Source:    g.source,
		Sender:    sender,
	})
	if err != nil {
		appErr := apperrors.NewEnqueueError(err)
		g.errLogger.LogError(appErr, "Failed to enqueue submission", logrus.Fields{
			LogFieldSender: sender,
			LogFieldSource: g.source,
		})
		g.recordSubmission("failed")
		return nil, appErr
	}

	g.logger.WithFields(logrus.Fields{
		LogFieldItemID: key,
		LogFieldSender: sender,
		LogFieldSource: g.source,
		LogFieldText:   SanitizeContent(ctx, text),
	}).Info("Queued submission")
	g.recordSubmission("queued")

	return &Ack{Key: key, Sender: sender, Source: g.source, Text: text}, nil
}

func (g *Gateway) recordSubmission(outcome string) {
	metrics.IncrementCounter(metrics.GatewaySubmissions, map[string]string{"outcome": outcome}, "Submissions seen by the gateway")
}
