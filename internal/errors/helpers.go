package errors

import (
	"fmt"
	"strings"
)

// NewValidationError creates a validation error for submitted input
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeInvalidInput, message).
		WithContext("field", field).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewMissingConfigError creates an error for a required setting left empty
func NewMissingConfigError(key string) *AppError {
	return New(ErrCodeMissingConfig, fmt.Sprintf("%s is required", key)).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewConnectivityError creates an error for an unreachable store or device
func NewConnectivityError(target string, err error) *AppError {
	return WrapRetryable(err, ErrCodeConnectivity, fmt.Sprintf("%s unreachable", target)).
		WithContext("target", target)
}

// NewDecodeError creates an error for a malformed pending item
func NewDecodeError(itemID string, missing []string, reason string) *AppError {
	msg := reason
	if len(missing) > 0 {
		msg = fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))
	}
	appErr := New(ErrCodeDecodeFailed, msg).WithContext("item_id", itemID)
	if len(missing) > 0 {
		appErr = appErr.WithContext("missing_fields", missing)
	}
	return appErr
}

// NewPrintFault creates an error for a failed print call
func NewPrintFault(itemID string, err error) *AppError {
	return Wrap(err, ErrCodePrintFault, "print sink rejected item").
		WithContext("item_id", itemID)
}

// NewBookkeepingError creates an error for a failed archive or delete after a
// successful print. The item stays pending although it was printed.
func NewBookkeepingError(itemID, step string, err error) *AppError {
	return Wrap(err, ErrCodeBookkeeping, fmt.Sprintf("%s failed after print", step)).
		WithContext("item_id", itemID).
		WithContext("step", step)
}

// NewEnqueueError creates an error for a submission the store did not accept
func NewEnqueueError(err error) *AppError {
	return Wrap(err, ErrCodeEnqueueFailed, "failed to enqueue submission").
		WithUserMessage("Could not queue your message, please try again later")
}

// NewJournalError creates a journal storage error
func NewJournalError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeJournal, fmt.Sprintf("journal %s failed", operation)).
		WithContext("operation", operation)
}
