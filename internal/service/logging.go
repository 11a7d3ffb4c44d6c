package service

import (
	"context"

	"papercrumpler/internal/models"
	"papercrumpler/internal/tracing"

	"github.com/sirupsen/logrus"
)

// Standard log field names used across the pipeline.
const (
	LogFieldItemID    = "item_id"
	LogFieldState     = "state"
	LogFieldReason    = "reason"
	LogFieldSender    = "sender"
	LogFieldSource    = "source"
	LogFieldText      = "text"
	LogFieldRaw       = "raw"
	LogFieldKind      = "kind"
	LogFieldCount     = "count"
	LogFieldDuration  = "duration_ms"
	LogFieldComponent = "component"
	LogFieldAnomaly   = "anomaly"
	LogFieldTraceID   = "trace_id"
)

// AnomalyPrintedNotArchived tags logs for items printed but still pending.
const AnomalyPrintedNotArchived = "printed_not_archived"

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey marks contexts where message text may be logged.
const VerboseContextKey ContextKey = "verbose"

// WithVerbose returns a context that enables or disables text logging.
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// IsVerboseLogging reports whether ctx allows text logging.
func IsVerboseLogging(ctx context.Context) bool {
	verbose, _ := ctx.Value(VerboseContextKey).(bool)
	return verbose
}

// SanitizeContent hides message text unless verbose logging is on.
func SanitizeContent(ctx context.Context, content string) string {
	if content == "" || IsVerboseLogging(ctx) {
		return content
	}
	return "[hidden]"
}

// SanitizeRaw hides the message inside an undecoded item unless verbose
// logging is on. The other fields are kept for diagnosis.
func SanitizeRaw(ctx context.Context, raw any) any {
	if IsVerboseLogging(ctx) {
		return raw
	}
	switch v := raw.(type) {
	case string:
		return SanitizeContent(ctx, v)
	case map[string]any:
		text, ok := v[models.FieldMessage]
		if !ok || text == nil {
			return raw
		}
		out := make(map[string]any, len(v))
		for k, field := range v {
			out[k] = field
		}
		if s, isString := text.(string); isString {
			out[models.FieldMessage] = SanitizeContent(ctx, s)
		} else {
			out[models.FieldMessage] = "[hidden]"
		}
		return out
	default:
		return raw
	}
}

func itemFields(ctx context.Context, item *models.PendingItem, state models.ItemState) logrus.Fields {
	fields := logrus.Fields{
		LogFieldItemID: item.ID,
		LogFieldState:  state.String(),
		LogFieldSender: item.Sender,
		LogFieldSource: item.Source,
		LogFieldText:   SanitizeContent(ctx, item.Text),
	}
	if traceID := tracing.TraceID(ctx); traceID != "" {
		fields[LogFieldTraceID] = traceID
	}
	return fields
}
