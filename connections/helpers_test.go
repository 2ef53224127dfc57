package connections

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/notifications"
)

type memoryConnectionStore struct {
	mu     sync.Mutex
	seq    int
	rows   map[string]core.Connection
	byPair map[string]string
	now    time.Time
}

func newMemoryConnectionStore() *memoryConnectionStore {
	return &memoryConnectionStore{
		rows:   map[string]core.Connection{},
		byPair: map[string]string{},
		now:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func pairKey(projectID string, a string, b string) string {
	pair := core.NewConnectionPair(a, b)
	return projectID + "|" + pair.Low + "|" + pair.High
}

func (s *memoryConnectionStore) Create(_ context.Context, in core.CreateConnectionInput) (core.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(in.ProjectID, in.RequesterID, in.ReceiverID)
	if _, ok := s.byPair[key]; ok {
		return core.Connection{}, core.ErrConnectionExists
	}
	s.seq++
	s.now = s.now.Add(time.Minute)
	conn := core.Connection{
		ID:          fmt.Sprintf("c%d", s.seq),
		ProjectID:   in.ProjectID,
		RequesterID: in.RequesterID,
		ReceiverID:  in.ReceiverID,
		Status:      core.ConnectionStatusPending,
		Message:     in.Message,
		CreatedAt:   s.now,
	}
	s.rows[conn.ID] = conn
	s.byPair[key] = conn.ID
	return conn, nil
}

func (s *memoryConnectionStore) Get(_ context.Context, projectID string, id string) (core.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.rows[id]
	if !ok || conn.ProjectID != projectID {
		return core.Connection{}, core.ErrConnectionNotFound
	}
	return conn, nil
}

func (s *memoryConnectionStore) FindByPair(_ context.Context, projectID string, a string, b string) (core.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPair[pairKey(projectID, a, b)]
	if !ok {
		return core.Connection{}, core.ErrConnectionNotFound
	}
	return s.rows[id], nil
}

func (s *memoryConnectionStore) TransitionStatus(
	_ context.Context,
	projectID string,
	id string,
	from core.ConnectionStatus,
	to core.ConnectionStatus,
	respondedAt time.Time,
) (core.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.rows[id]
	if !ok || conn.ProjectID != projectID || conn.Status != from {
		return core.Connection{}, core.ErrConnectionNotFound
	}
	conn.Status = to
	conn.RespondedAt = &respondedAt
	s.rows[id] = conn
	return conn, nil
}

func (s *memoryConnectionStore) DeleteIfStatus(_ context.Context, projectID string, id string, status core.ConnectionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.rows[id]
	if !ok || conn.ProjectID != projectID || conn.Status != status {
		return core.ErrConnectionNotFound
	}
	delete(s.rows, id)
	delete(s.byPair, pairKey(projectID, conn.RequesterID, conn.ReceiverID))
	return nil
}

func (s *memoryConnectionStore) CountByStatus(_ context.Context, projectID string, userID string, status core.ConnectionStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, conn := range s.rows {
		if conn.ProjectID == projectID && conn.Status == status && conn.Involves(userID) {
			count++
		}
	}
	return count, nil
}

func (s *memoryConnectionStore) ListPendingReceived(_ context.Context, projectID string, receiverID string, limit int, offset int) ([]core.Connection, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []core.Connection
	for _, conn := range s.rows {
		if conn.ProjectID == projectID && conn.ReceiverID == receiverID && conn.Status == core.ConnectionStatusPending {
			matches = append(matches, conn)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	total := len(matches)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

func (s *memoryConnectionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type memoryUsers map[string]core.User

func (u memoryUsers) GetUser(_ context.Context, projectID string, userID string) (core.User, error) {
	user, ok := u[userID]
	if !ok || user.ProjectID != projectID {
		return core.User{}, core.ErrUserNotFound
	}
	return user, nil
}

type recordingEnqueuer struct {
	requests []notifications.Request
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, req notifications.Request) {
	e.requests = append(e.requests, req)
}
