package sqlstore

import (
	"time"

	"github.com/goliatone/go-hookgate/core"
)

func newConnectionRecord(id string, in core.CreateConnectionInput, now time.Time) *connectionRecord {
	pair := core.NewConnectionPair(in.RequesterID, in.ReceiverID)
	return &connectionRecord{
		ID:          id,
		ProjectID:   in.ProjectID,
		RequesterID: in.RequesterID,
		ReceiverID:  in.ReceiverID,
		PairLow:     pair.Low,
		PairHigh:    pair.High,
		Status:      string(core.ConnectionStatusPending),
		Message:     in.Message,
		CreatedAt:   now,
	}
}

func (r *connectionRecord) toDomain() core.Connection {
	if r == nil {
		return core.Connection{}
	}
	return core.Connection{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		RequesterID: r.RequesterID,
		ReceiverID:  r.ReceiverID,
		Status:      core.ConnectionStatus(r.Status),
		Message:     r.Message,
		CreatedAt:   r.CreatedAt.UTC(),
		RespondedAt: copyTimePointer(r.RespondedAt),
	}
}

func newNotificationRecord(in core.NotificationRecord) *notificationRecord {
	return &notificationRecord{
		ID:        in.ID,
		EventID:   in.EventID,
		ProjectID: in.ProjectID,
		UserID:    in.RecipientUserID,
		Type:      string(in.Type),
		Action:    in.Action,
		Metadata:  copyAnyMap(in.Metadata),
		IsRead:    in.IsRead,
		CreatedAt: in.CreatedAt,
	}
}

func (r *notificationRecord) toDomain() core.NotificationRecord {
	if r == nil {
		return core.NotificationRecord{}
	}
	return core.NotificationRecord{
		ID:              r.ID,
		EventID:         r.EventID,
		ProjectID:       r.ProjectID,
		RecipientUserID: r.UserID,
		Type:            core.NotificationType(r.Type),
		Action:          r.Action,
		Metadata:        copyAnyMap(r.Metadata),
		IsRead:          r.IsRead,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	return core.User{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Name:      r.Name,
		Username:  r.Username,
		Avatar:    r.Avatar,
	}
}

func copyAnyMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
