package service

import (
	"fmt"
	"strings"

	apperrors "papercrumpler/internal/errors"
	"papercrumpler/internal/models"
)

var requiredFields = []string{
	models.FieldMessage,
	models.FieldCreatedAt,
	models.FieldSender,
	models.FieldSource,
}

// DecodeItem validates the raw fields of pendingMessages/{id}. createdAt is
// kept opaque; the text fields must be strings.
func DecodeItem(id string, raw any) (*models.PendingItem, error) {
	fields, ok := raw.(map[string]any)
	if !ok {
		return nil, apperrors.NewDecodeError(id, nil, fmt.Sprintf("item holds %T, want object", raw))
	}

	var missing []string
	for _, name := range requiredFields {
		if v, ok := fields[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewDecodeError(id, missing, "")
	}

	var mistyped []string
	text := stringField(fields, models.FieldMessage, &mistyped)
	sender := stringField(fields, models.FieldSender, &mistyped)
	source := stringField(fields, models.FieldSource, &mistyped)
	if len(mistyped) > 0 {
		return nil, apperrors.NewDecodeError(id, nil,
			fmt.Sprintf("fields must be strings: %s", strings.Join(mistyped, ", ")))
	}

	return &models.PendingItem{
		ID:        id,
		Text:      text,
		Sender:    sender,
		Source:    source,
		CreatedAt: fields[models.FieldCreatedAt],
	}, nil
}

func stringField(fields map[string]any, name string, mistyped *[]string) string {
	s, ok := fields[name].(string)
	if !ok {
		*mistyped = append(*mistyped, name)
	}
	return s
}
