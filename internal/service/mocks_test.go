package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"papercrumpler/internal/journal"
	"papercrumpler/internal/mailbox"
	"papercrumpler/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
)

const resolvedTimestamp = "1700000000000"

// memStore is an in-memory mailbox.Store that resolves server timestamps the
// way the realtime database does.
type memStore struct {
	mu      sync.Mutex
	data    map[string]map[string]any
	nextKey int

	enqueueErr error
	writeErr   error
	deleteErr  error

	writes  []string
	deletes []string

	notifications []mailbox.Notification
	subscribeErr  error
	subscribed    []string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]map[string]any)}
}

func (s *memStore) Enqueue(ctx context.Context, collection string, record any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return "", s.enqueueErr
	}
	s.nextKey++
	key := fmt.Sprintf("-N%04d", s.nextKey)
	s.put(collection, key, resolve(record))
	return key, nil
}

func (s *memStore) Write(ctx context.Context, path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, path)
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	collection, id := split(path)
	s.put(collection, id, resolve(value))
	return nil
}

func (s *memStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, path)
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.deleteErr != nil {
		return s.deleteErr
	}
	collection, id := split(path)
	delete(s.data[collection], id)
	return nil
}

func (s *memStore) Subscribe(ctx context.Context, collection string, handler mailbox.Handler) error {
	s.mu.Lock()
	s.subscribed = append(s.subscribed, collection)
	queued := append([]mailbox.Notification(nil), s.notifications...)
	err := s.subscribeErr
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, n := range queued {
		handler(ctx, n)
	}
	<-ctx.Done()
	return nil
}

func (s *memStore) put(collection, id string, value any) {
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]any)
	}
	s.data[collection][id] = value
}

// snapshot returns what a fresh subscription to collection would deliver.
func (s *memStore) snapshot(collection string) mailbox.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make(map[string]any, len(s.data[collection]))
	for k, v := range s.data[collection] {
		items[k] = v
	}
	return mailbox.Snapshot(items)
}

func (s *memStore) get(collection, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[collection][id]
	if !ok {
		return nil, false
	}
	m, _ := v.(map[string]any)
	return m, true
}

func (s *memStore) keys(collection string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.data[collection] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *memStore) deleteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deletes)
}

func split(path string) (string, string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return "", path
}

// resolve round-trips v through JSON and replaces timestamp sentinels.
func resolve(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		panic(err)
	}
	if m, ok := out.(map[string]any); ok {
		for k, field := range m {
			if sv, ok := field.(map[string]any); ok && sv[".sv"] == "timestamp" {
				m[k] = json.Number(resolvedTimestamp)
			}
		}
	}
	return out
}

// fakeSink records printed lines and fails lines listed in faults. onPrint
// runs after a line is accepted.
type fakeSink struct {
	mu      sync.Mutex
	lines   []string
	faults  map[string]error
	onPrint func(line string)
}

func newFakeSink() *fakeSink {
	return &fakeSink{faults: make(map[string]error)}
}

func (f *fakeSink) Print(ctx context.Context, line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.faults[line]; ok {
		return err
	}
	f.lines = append(f.lines, line)
	if f.onPrint != nil {
		f.onPrint(line)
	}
	return nil
}

func (f *fakeSink) printed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) Record(ctx context.Context, e journal.Entry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockJournal) Prune(ctx context.Context, retentionDays int) (int64, error) {
	args := m.Called(ctx, retentionDays)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockJournal) CountUnresolvedSince(ctx context.Context, reason models.FailureReason, since time.Time) (int, error) {
	args := m.Called(ctx, reason, since)
	return args.Int(0), args.Error(1)
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func entriesAt(hook *test.Hook, level logrus.Level) []logrus.Entry {
	var out []logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			out = append(out, *e)
		}
	}
	return out
}

func pendingRaw(text, sender string) map[string]any {
	return map[string]any{
		models.FieldMessage:   text,
		models.FieldCreatedAt: json.Number(resolvedTimestamp),
		models.FieldSender:    sender,
		models.FieldSource:    "discord",
	}
}
