package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeInvalidConfig,
				Message: "configuration is invalid",
			},
			expected: "INVALID_CONFIG: configuration is invalid",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodePrintFault,
				Message: "print sink rejected item",
				Cause:   errors.New("out of paper"),
			},
			expected: "PRINT_FAULT: print sink rejected item: out of paper",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternalError, "something went wrong")

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestAppError_WithContext(t *testing.T) {
	err := New(ErrCodeDecodeFailed, "bad item")

	result := err.WithContext("item_id", "-N1").WithContext("step", "decode")

	assert.Same(t, err, result)
	assert.Len(t, err.Context, 2)
	assert.Equal(t, "-N1", err.Context["item_id"])
}

func TestGetCode_ThroughWrapping(t *testing.T) {
	appErr := NewPrintFault("-N1", errors.New("usb: no device"))
	wrapped := fmt.Errorf("processing item: %w", appErr)

	assert.Equal(t, ErrCodePrintFault, GetCode(wrapped))
	assert.True(t, HasCode(wrapped, ErrCodePrintFault))
	assert.False(t, HasCode(nil, ErrCodePrintFault))
	assert.Equal(t, ErrCodeInternalError, GetCode(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewConnectivityError("store", errors.New("dial tcp"))))
	assert.False(t, IsRetryable(NewDecodeError("-N1", []string{"sender"}, "")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestGetUserMessage(t *testing.T) {
	assert.Equal(t, "Could not queue your message, please try again later",
		GetUserMessage(NewEnqueueError(errors.New("unavailable"))))
	assert.Equal(t, "Invalid text: must not be empty",
		GetUserMessage(NewValidationError("text", "must not be empty")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(errors.New("plain")))
}

func TestNewDecodeError(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		err := NewDecodeError("-N1", []string{"message", "sender"}, "")

		assert.Equal(t, ErrCodeDecodeFailed, err.Code)
		assert.Equal(t, "missing required fields: message, sender", err.Message)
		assert.Equal(t, []string{"message", "sender"}, err.Context["missing_fields"])
	})

	t.Run("reason only", func(t *testing.T) {
		err := NewDecodeError("-N1", nil, "payload is not an object")

		assert.Equal(t, "payload is not an object", err.Message)
		assert.NotContains(t, err.Context, "missing_fields")
	})
}

func TestNewBookkeepingError(t *testing.T) {
	err := NewBookkeepingError("-N1", "archive", errors.New("permission denied"))

	assert.Equal(t, ErrCodeBookkeeping, err.Code)
	assert.Equal(t, "archive", err.Context["step"])
	assert.Contains(t, err.Error(), "archive failed after print")
}

func TestNewMissingConfigError(t *testing.T) {
	err := NewMissingConfigError("discord.guild_id")

	assert.Equal(t, ErrCodeMissingConfig, err.Code)
	assert.Equal(t, "discord.guild_id", err.Context["config_key"])
	assert.Equal(t, "discord.guild_id is required", err.Error())
}
