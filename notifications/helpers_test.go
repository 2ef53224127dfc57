package notifications

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-hookgate/core"
)

type memoryNotificationStore struct {
	mu      sync.Mutex
	records []core.NotificationRecord
	keys    map[string]bool
	err     error
}

func newMemoryNotificationStore() *memoryNotificationStore {
	return &memoryNotificationStore{keys: map[string]bool{}}
}

func (s *memoryNotificationStore) Create(_ context.Context, record core.NotificationRecord) (core.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return core.NotificationRecord{}, s.err
	}
	key := record.ProjectID + "|" + record.EventID + "|" + string(record.Type) + "|" + record.RecipientUserID
	if s.keys[key] {
		return core.NotificationRecord{}, core.ErrNotificationExists
	}
	s.keys[key] = true
	s.records = append(s.records, record)
	return record, nil
}

func (s *memoryNotificationStore) all() []core.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.NotificationRecord(nil), s.records...)
}

type memoryLedger struct {
	mu      sync.Mutex
	records map[string]core.NotificationDispatchRecord
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{records: map[string]core.NotificationDispatchRecord{}}
}

func (l *memoryLedger) Seen(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[key]
	return ok, nil
}

func (l *memoryLedger) Record(_ context.Context, record core.NotificationDispatchRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[record.IdempotencyKey] = record
	return nil
}

type notifyCall struct {
	kind      core.EventKind
	projectID string
	payload   any
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *recordingNotifier) Notify(_ context.Context, kind core.EventKind, projectID string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{kind: kind, projectID: projectID, payload: payload})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type recordingSink struct {
	mu      sync.Mutex
	records []core.NotificationRecord
	err     error
}

func (s *recordingSink) Publish(_ context.Context, record core.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return s.err
}

// inlineScheduler processes on Submit so tests stay deterministic.
type inlineScheduler struct {
	processor Processor
	submitted []Request
}

func (s *inlineScheduler) Submit(ctx context.Context, req Request) error {
	s.submitted = append(s.submitted, req)
	if s.processor == nil {
		return nil
	}
	return s.processor.Process(ctx, req)
}

type rejectingScheduler struct{}

func (rejectingScheduler) Submit(context.Context, Request) error {
	return errors.New("scheduler unavailable")
}
