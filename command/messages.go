package command

import (
	"strings"

	"github.com/goliatone/go-hookgate/notifications"
)

const (
	TypeRequestConnection      = "hookgate.command.connection.request"
	TypeAcceptConnection       = "hookgate.command.connection.accept"
	TypeDeclineConnection      = "hookgate.command.connection.decline"
	TypeRemoveConnection       = "hookgate.command.connection.remove"
	TypeRemoveConnectionByUser = "hookgate.command.connection.remove_by_user"
	TypeEnqueueNotification    = "hookgate.command.notification.enqueue"
)

type RequestConnectionMessage struct {
	ProjectID  string
	ActorID    string
	ReceiverID string
	Message    string
}

func (RequestConnectionMessage) Type() string { return TypeRequestConnection }

func (m RequestConnectionMessage) Validate() error {
	if err := validateActor(m.ProjectID, m.ActorID); err != nil {
		return err
	}
	if strings.TrimSpace(m.ReceiverID) == "" {
		return commandValidationError("receiver_id", "receiver id is required")
	}
	return nil
}

// ConnectionActionMessage targets one connection row by id.
type ConnectionActionMessage struct {
	ProjectID    string
	ActorID      string
	ConnectionID string
}

func (m ConnectionActionMessage) validate() error {
	if err := validateActor(m.ProjectID, m.ActorID); err != nil {
		return err
	}
	if strings.TrimSpace(m.ConnectionID) == "" {
		return commandValidationError("connection_id", "connection id is required")
	}
	return nil
}

type AcceptConnectionMessage struct {
	ConnectionActionMessage
}

func (AcceptConnectionMessage) Type() string { return TypeAcceptConnection }

func (m AcceptConnectionMessage) Validate() error { return m.validate() }

type DeclineConnectionMessage struct {
	ConnectionActionMessage
}

func (DeclineConnectionMessage) Type() string { return TypeDeclineConnection }

func (m DeclineConnectionMessage) Validate() error { return m.validate() }

type RemoveConnectionMessage struct {
	ConnectionActionMessage
}

func (RemoveConnectionMessage) Type() string { return TypeRemoveConnection }

func (m RemoveConnectionMessage) Validate() error { return m.validate() }

type RemoveConnectionByUserMessage struct {
	ProjectID   string
	ActorID     string
	OtherUserID string
}

func (RemoveConnectionByUserMessage) Type() string { return TypeRemoveConnectionByUser }

func (m RemoveConnectionByUserMessage) Validate() error {
	if err := validateActor(m.ProjectID, m.ActorID); err != nil {
		return err
	}
	if strings.TrimSpace(m.OtherUserID) == "" {
		return commandValidationError("other_user_id", "other user id is required")
	}
	return nil
}

type EnqueueNotificationMessage struct {
	Request notifications.Request
}

func (EnqueueNotificationMessage) Type() string { return TypeEnqueueNotification }

func (m EnqueueNotificationMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProjectID) == "" {
		return commandValidationError("project_id", "project id is required")
	}
	if strings.TrimSpace(m.Request.RecipientUserID) == "" {
		return commandValidationError("recipient_user_id", "recipient user id is required")
	}
	if m.Request.Metadata == nil {
		return commandValidationError("metadata", "metadata is required")
	}
	return commandWrapValidation(m.Request.Metadata.Validate(), "command: invalid notification metadata")
}

func validateActor(projectID string, actorID string) error {
	if strings.TrimSpace(projectID) == "" {
		return commandValidationError("project_id", "project id is required")
	}
	if strings.TrimSpace(actorID) == "" {
		return commandValidationError("actor_id", "actor id is required")
	}
	return nil
}
