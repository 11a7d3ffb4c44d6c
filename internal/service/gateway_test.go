package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "papercrumpler/internal/errors"
	"papercrumpler/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_Submit(t *testing.T) {
	store := newMemStore()
	logger, _ := newTestLogger()
	gateway := NewGateway(store, "discord", logger)

	ack, err := gateway.Submit(context.Background(), "  hello world \n", " alice ")

	require.NoError(t, err)
	assert.Equal(t, "alice", ack.Sender)
	assert.Equal(t, "hello world", ack.Text)
	assert.Equal(t, "discord", ack.Source)
	assert.Equal(t, "Printing message: `[alice@discord] hello world`", ack.String())

	record, ok := store.get(pending, ack.Key)
	require.True(t, ok)
	assert.Equal(t, "hello world", record[models.FieldMessage])
	assert.NotNil(t, record[models.FieldCreatedAt])
}

func TestGateway_WritesServerTimestampSentinel(t *testing.T) {
	store := &recordingStore{}
	logger, _ := newTestLogger()
	gateway := NewGateway(store, "discord", logger)

	_, err := gateway.Submit(context.Background(), "hi", "bob")

	require.NoError(t, err)
	require.Len(t, store.records, 1)
	rec := store.records[0].(models.PendingRecord)
	assert.Equal(t, models.ServerTimestamp, rec.CreatedAt)
	assert.Equal(t, pending, store.collections[0])
}

type recordingStore struct {
	memStore
	collections []string
	records     []any
}

func (r *recordingStore) Enqueue(ctx context.Context, collection string, record any) (string, error) {
	r.collections = append(r.collections, collection)
	r.records = append(r.records, record)
	return "-K1", nil
}

func TestGateway_DefaultSender(t *testing.T) {
	store := newMemStore()
	logger, _ := newTestLogger()

	ack, err := NewGateway(store, "", logger).Submit(context.Background(), "hi", "   ")

	require.NoError(t, err)
	assert.Equal(t, "anonymous", ack.Sender)
	assert.Equal(t, "discord", ack.Source)
}

func TestGateway_RejectsInvalidText(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", " \t\n "},
		{"too long", strings.Repeat("ä", 2001)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			logger, _ := newTestLogger()

			ack, err := NewGateway(store, "discord", logger).Submit(context.Background(), tt.text, "alice")

			assert.Nil(t, ack)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
			assert.Empty(t, store.keys(pending))
		})
	}
}

func TestGateway_AcceptsMaxLength(t *testing.T) {
	store := newMemStore()
	logger, _ := newTestLogger()

	_, err := NewGateway(store, "discord", logger).Submit(context.Background(), strings.Repeat("ä", 2000), "alice")

	assert.NoError(t, err)
}

func TestGateway_EnqueueFailure(t *testing.T) {
	store := newMemStore()
	store.enqueueErr = errors.New("unreachable")
	logger, hook := newTestLogger()

	ack, err := NewGateway(store, "discord", logger).Submit(context.Background(), "hi", "alice")

	assert.Nil(t, ack)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEnqueueFailed))
	assert.Equal(t, "Could not queue your message, please try again later", apperrors.GetUserMessage(err))
	assert.Len(t, entriesAt(hook, logrus.ErrorLevel), 1)
}
