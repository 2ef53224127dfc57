package query

import (
	"context"

	"github.com/goliatone/go-hookgate/connections"
)

type ConnectionReader interface {
	Status(ctx context.Context, projectID string, actorID string, otherUserID string) (connections.StatusView, error)
	Count(ctx context.Context, projectID string, userID string) (int, error)
	ListPendingReceived(ctx context.Context, projectID string, actorID string, limit int, offset int) (connections.PendingPage, error)
}

type ConnectionStatusQuery struct {
	reader ConnectionReader
}

func NewConnectionStatusQuery(reader ConnectionReader) *ConnectionStatusQuery {
	return &ConnectionStatusQuery{reader: reader}
}

func (q *ConnectionStatusQuery) Query(ctx context.Context, msg ConnectionStatusMessage) (connections.StatusView, error) {
	if q == nil || q.reader == nil {
		return connections.StatusView{}, queryDependencyError("query: connection reader is required")
	}
	return q.reader.Status(ctx, msg.ProjectID, msg.ActorID, msg.OtherUserID)
}

type CountConnectionsQuery struct {
	reader ConnectionReader
}

func NewCountConnectionsQuery(reader ConnectionReader) *CountConnectionsQuery {
	return &CountConnectionsQuery{reader: reader}
}

func (q *CountConnectionsQuery) Query(ctx context.Context, msg CountConnectionsMessage) (int, error) {
	if q == nil || q.reader == nil {
		return 0, queryDependencyError("query: connection reader is required")
	}
	return q.reader.Count(ctx, msg.ProjectID, msg.UserID)
}

type ListPendingReceivedQuery struct {
	reader ConnectionReader
}

func NewListPendingReceivedQuery(reader ConnectionReader) *ListPendingReceivedQuery {
	return &ListPendingReceivedQuery{reader: reader}
}

func (q *ListPendingReceivedQuery) Query(
	ctx context.Context,
	msg ListPendingReceivedMessage,
) (connections.PendingPage, error) {
	if q == nil || q.reader == nil {
		return connections.PendingPage{}, queryDependencyError("query: connection reader is required")
	}
	return q.reader.ListPendingReceived(ctx, msg.ProjectID, msg.ActorID, msg.Limit, msg.Offset)
}
