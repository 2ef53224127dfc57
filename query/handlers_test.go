package query

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-hookgate/connections"
	"github.com/goliatone/go-hookgate/core"
)

func TestConnectionStatusQuery_QueryDelegates(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	called := false
	reader := stubConnectionReader{
		statusFn: func(_ context.Context, projectID string, actorID string, otherUserID string) (connections.StatusView, error) {
			called = true
			if projectID != "p1" || actorID != "alice" || otherUserID != "bob" {
				t.Fatalf("unexpected status request: %q %q %q", projectID, actorID, otherUserID)
			}
			return connections.StatusView{
				Status:       connections.StatusPending,
				Direction:    connections.DirectionSent,
				ConnectionID: "c1",
				CreatedAt:    &created,
			}, nil
		},
	}

	view, err := NewConnectionStatusQuery(reader).Query(context.Background(), ConnectionStatusMessage{
		ProjectID:   "p1",
		ActorID:     "alice",
		OtherUserID: "bob",
	})
	if err != nil {
		t.Fatalf("query status: %v", err)
	}
	if !called {
		t.Fatalf("expected status reader invocation")
	}
	if view.Status != connections.StatusPending || view.Direction != connections.DirectionSent {
		t.Fatalf("unexpected status view: %#v", view)
	}
}

func TestCountConnectionsQuery_QueryDelegates(t *testing.T) {
	reader := stubConnectionReader{
		countFn: func(_ context.Context, projectID string, userID string) (int, error) {
			if projectID != "p1" || userID != "alice" {
				t.Fatalf("unexpected count request: %q %q", projectID, userID)
			}
			return 3, nil
		},
	}
	count, err := NewCountConnectionsQuery(reader).Query(context.Background(), CountConnectionsMessage{ProjectID: "p1", UserID: "alice"})
	if err != nil {
		t.Fatalf("query count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 connections, got %d", count)
	}
}

func TestListPendingReceivedQuery_QueryDelegates(t *testing.T) {
	reader := stubConnectionReader{
		listFn: func(_ context.Context, projectID string, actorID string, limit int, offset int) (connections.PendingPage, error) {
			if limit != 10 || offset != 20 {
				t.Fatalf("unexpected paging: limit=%d offset=%d", limit, offset)
			}
			return connections.PendingPage{
				Items: []connections.PendingRequest{{
					Connection: core.Connection{ID: "c1", RequesterID: "bob", ReceiverID: actorID},
					Requester:  core.User{ID: "bob", Name: "Bob"},
				}},
				Total:  21,
				Limit:  limit,
				Offset: offset,
			}, nil
		},
	}
	page, err := NewListPendingReceivedQuery(reader).Query(context.Background(), ListPendingReceivedMessage{
		ProjectID: "p1",
		ActorID:   "alice",
		Limit:     10,
		Offset:    20,
	})
	if err != nil {
		t.Fatalf("query pending: %v", err)
	}
	if page.Total != 21 || len(page.Items) != 1 || page.Items[0].Requester.Name != "Bob" {
		t.Fatalf("unexpected pending page: %#v", page)
	}
}

func TestMessages_ValidatePaging(t *testing.T) {
	if err := (ListPendingReceivedMessage{ProjectID: "p1", ActorID: "alice", Limit: -1}).Validate(); err == nil {
		t.Fatalf("expected negative limit to fail")
	}
	if err := (ListPendingReceivedMessage{ProjectID: "p1", ActorID: "alice", Offset: -1}).Validate(); err == nil {
		t.Fatalf("expected negative offset to fail")
	}
	if err := (ListPendingReceivedMessage{ProjectID: "p1", ActorID: "alice"}).Validate(); err != nil {
		t.Fatalf("expected zero paging to use defaults, got %v", err)
	}
	if err := (CountConnectionsMessage{ProjectID: "p1"}).Validate(); err == nil {
		t.Fatalf("expected missing user id to fail")
	}
}

type stubConnectionReader struct {
	statusFn func(context.Context, string, string, string) (connections.StatusView, error)
	countFn  func(context.Context, string, string) (int, error)
	listFn   func(context.Context, string, string, int, int) (connections.PendingPage, error)
}

func (s stubConnectionReader) Status(ctx context.Context, projectID string, actorID string, otherUserID string) (connections.StatusView, error) {
	if s.statusFn == nil {
		return connections.StatusView{Status: connections.StatusNone}, nil
	}
	return s.statusFn(ctx, projectID, actorID, otherUserID)
}

func (s stubConnectionReader) Count(ctx context.Context, projectID string, userID string) (int, error) {
	if s.countFn == nil {
		return 0, nil
	}
	return s.countFn(ctx, projectID, userID)
}

func (s stubConnectionReader) ListPendingReceived(ctx context.Context, projectID string, actorID string, limit int, offset int) (connections.PendingPage, error) {
	if s.listFn == nil {
		return connections.PendingPage{}, nil
	}
	return s.listFn(ctx, projectID, actorID, limit, offset)
}
