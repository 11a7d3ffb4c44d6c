package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"papercrumpler/internal/journal"
	"papercrumpler/internal/metrics"
	"papercrumpler/internal/middleware"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockJournalReader struct {
	mock.Mock
}

func (m *mockJournalReader) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]journal.Entry)
	return entries, args.Error(1)
}

func (m *mockJournalReader) ForItem(ctx context.Context, itemID string) ([]journal.Entry, error) {
	args := m.Called(ctx, itemID)
	entries, _ := args.Get(0).([]journal.Entry)
	return entries, args.Error(1)
}

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewServer(nil, logger)

	rec := serve(t, s, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestServer_Metrics(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewServer(nil, logger)
	metrics.IncrementCounter(metrics.ItemsPrinted, nil, "Items printed")

	rec := serve(t, s, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Contains(t, snap.Counters, metrics.ItemsPrinted)
}

func TestServer_JournalDisabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewServer(nil, logger)

	rec := serve(t, s, "/journal")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Journal(t *testing.T) {
	recorded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []journal.Entry{
		{ItemID: "-N2", Sender: "bob", Source: "discord", Line: "[bob@discord] yo", State: "archived", RecordedAt: recorded},
		{ItemID: "-N1", State: "failed", Reason: "print_error", Error: "usb write", RecordedAt: recorded},
	}

	tests := []struct {
		name      string
		target    string
		wantLimit int
	}{
		{"default page", "/journal", 50},
		{"explicit limit", "/journal?limit=5", 5},
		{"capped limit", "/journal?limit=100000", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			reader := &mockJournalReader{}
			reader.On("Recent", mock.Anything, tt.wantLimit).Return(entries, nil).Once()
			s := NewServer(reader, logger)

			rec := serve(t, s, tt.target)

			require.Equal(t, http.StatusOK, rec.Code)
			var got []journal.Entry
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			require.Len(t, got, 2)
			assert.Equal(t, "-N2", got[0].ItemID)
			assert.Equal(t, "print_error", string(got[1].Reason))
			reader.AssertExpectations(t)
		})
	}
}

func TestServer_JournalEmptyIsArray(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reader := &mockJournalReader{}
	reader.On("Recent", mock.Anything, 50).Return(nil, nil)
	s := NewServer(reader, logger)

	rec := serve(t, s, "/journal")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestServer_JournalErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	reader := &mockJournalReader{}
	reader.On("Recent", mock.Anything, 50).Return(nil, errors.New("database is locked"))
	s := NewServer(reader, logger)

	rec := serve(t, s, "/journal?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, s, "/journal?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, s, "/journal")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Failed to read print journal" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestServer_JournalItem(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reader := &mockJournalReader{}
	reader.On("ForItem", mock.Anything, "-N1").Return([]journal.Entry{
		{ItemID: "-N1", State: "failed", Reason: "print_error"},
		{ItemID: "-N1", State: "archived"},
	}, nil)
	reader.On("ForItem", mock.Anything, "-N404").Return(nil, nil)
	s := NewServer(reader, logger)

	rec := serve(t, s, "/journal/-N1")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []journal.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "archived", got[1].State)

	rec = serve(t, s, "/journal/-N404")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewServer(nil, logger)

	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestServer_MethodNotAllowed(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewServer(nil, logger)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
