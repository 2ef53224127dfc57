package query

import "strings"

const (
	TypeConnectionStatus    = "hookgate.query.connection.status"
	TypeCountConnections    = "hookgate.query.connection.count"
	TypeListPendingReceived = "hookgate.query.connection.pending_received"
)

type ConnectionStatusMessage struct {
	ProjectID   string
	ActorID     string
	OtherUserID string
}

func (ConnectionStatusMessage) Type() string { return TypeConnectionStatus }

func (m ConnectionStatusMessage) Validate() error {
	if err := validateActor(m.ProjectID, m.ActorID); err != nil {
		return err
	}
	if strings.TrimSpace(m.OtherUserID) == "" {
		return queryValidationError("other_user_id", "other user id is required")
	}
	return nil
}

type CountConnectionsMessage struct {
	ProjectID string
	UserID    string
}

func (CountConnectionsMessage) Type() string { return TypeCountConnections }

func (m CountConnectionsMessage) Validate() error {
	if strings.TrimSpace(m.ProjectID) == "" {
		return queryValidationError("project_id", "project id is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}

// ListPendingReceivedMessage pages the actor's incoming requests. A zero
// Limit uses the service default.
type ListPendingReceivedMessage struct {
	ProjectID string
	ActorID   string
	Limit     int
	Offset    int
}

func (ListPendingReceivedMessage) Type() string { return TypeListPendingReceived }

func (m ListPendingReceivedMessage) Validate() error {
	if err := validateActor(m.ProjectID, m.ActorID); err != nil {
		return err
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if m.Offset < 0 {
		return queryValidationError("offset", "offset must be >= 0")
	}
	return nil
}

func validateActor(projectID string, actorID string) error {
	if strings.TrimSpace(projectID) == "" {
		return queryValidationError("project_id", "project id is required")
	}
	if strings.TrimSpace(actorID) == "" {
		return queryValidationError("actor_id", "actor id is required")
	}
	return nil
}
