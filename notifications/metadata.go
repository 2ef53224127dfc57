package notifications

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hookgate/core"
)

const entityContentPreviewRunes = 200

// Metadata is the typed payload of a notification. Each NotificationType has
// exactly one implementation; the type of a Request is derived from it.
type Metadata interface {
	Type() core.NotificationType
	Initiator() string
	Validate() error
}

// Display carries optional presentation fields copied into the record.
type Display struct {
	InitiatorName     string `json:"initiatorName,omitempty"`
	InitiatorUsername string `json:"initiatorUsername,omitempty"`
	InitiatorAvatar   string `json:"initiatorAvatar,omitempty"`
	EntityShortID     string `json:"entityShortId,omitempty"`
	EntityTitle       string `json:"entityTitle,omitempty"`
	EntityContent     string `json:"entityContent,omitempty"`
}

// InitiatorDisplay fills the initiator profile fields from a user.
func InitiatorDisplay(user core.User) Display {
	return Display{
		InitiatorName:     user.Name,
		InitiatorUsername: user.Username,
		InitiatorAvatar:   user.Avatar,
	}
}

// WithEntityPreview adds entity fields, truncating content to 200 runes.
func (d Display) WithEntityPreview(shortID string, title string, content string) Display {
	d.EntityShortID = shortID
	d.EntityTitle = title
	d.EntityContent = truncateRunes(content, entityContentPreviewRunes)
	return d
}

type EntityComment struct {
	EntityID    string `json:"entityId"`
	CommentID   string `json:"commentId"`
	InitiatorID string `json:"initiatorId"`
	Display
}

func (EntityComment) Type() core.NotificationType { return core.NotificationEntityComment }
func (m EntityComment) Initiator() string         { return m.InitiatorID }
func (m EntityComment) Validate() error {
	return requireFields(m.Type(), "entityId", m.EntityID, "commentId", m.CommentID, "initiatorId", m.InitiatorID)
}

type CommentReply struct {
	EntityID    string `json:"entityId"`
	CommentID   string `json:"commentId"`
	ReplyID     string `json:"replyId"`
	InitiatorID string `json:"initiatorId"`
	Display
}

func (CommentReply) Type() core.NotificationType { return core.NotificationCommentReply }
func (m CommentReply) Initiator() string         { return m.InitiatorID }
func (m CommentReply) Validate() error {
	return requireFields(m.Type(),
		"entityId", m.EntityID,
		"commentId", m.CommentID,
		"replyId", m.ReplyID,
		"initiatorId", m.InitiatorID,
	)
}

type EntityMention struct {
	EntityID    string `json:"entityId"`
	InitiatorID string `json:"initiatorId"`
	Display
}

func (EntityMention) Type() core.NotificationType { return core.NotificationEntityMention }
func (m EntityMention) Initiator() string         { return m.InitiatorID }
func (m EntityMention) Validate() error {
	return requireFields(m.Type(), "entityId", m.EntityID, "initiatorId", m.InitiatorID)
}

type CommentMention struct {
	EntityID    string `json:"entityId"`
	CommentID   string `json:"commentId"`
	InitiatorID string `json:"initiatorId"`
	Display
}

func (CommentMention) Type() core.NotificationType { return core.NotificationCommentMention }
func (m CommentMention) Initiator() string         { return m.InitiatorID }
func (m CommentMention) Validate() error {
	return requireFields(m.Type(), "entityId", m.EntityID, "commentId", m.CommentID, "initiatorId", m.InitiatorID)
}

type EntityUpvote struct {
	EntityID    string `json:"entityId"`
	InitiatorID string `json:"initiatorId"`
	Display
}

func (EntityUpvote) Type() core.NotificationType { return core.NotificationEntityUpvote }
func (m EntityUpvote) Initiator() string         { return m.InitiatorID }
func (m EntityUpvote) Validate() error {
	return requireFields(m.Type(), "entityId", m.EntityID, "initiatorId", m.InitiatorID)
}

type CommentUpvote struct {
	EntityID    string `json:"entityId"`
	CommentID   string `json:"commentId"`
	InitiatorID string `json:"initiatorId"`
	Display
}

func (CommentUpvote) Type() core.NotificationType { return core.NotificationCommentUpvote }
func (m CommentUpvote) Initiator() string         { return m.InitiatorID }
func (m CommentUpvote) Validate() error {
	return requireFields(m.Type(), "entityId", m.EntityID, "commentId", m.CommentID, "initiatorId", m.InitiatorID)
}

type NewFollow struct {
	InitiatorID string `json:"initiatorId"`
	Display
}

func (NewFollow) Type() core.NotificationType { return core.NotificationNewFollow }
func (m NewFollow) Initiator() string         { return m.InitiatorID }
func (m NewFollow) Validate() error {
	return requireFields(m.Type(), "initiatorId", m.InitiatorID)
}

type ConnectionRequest struct {
	ConnectionID string `json:"connectionId"`
	InitiatorID  string `json:"initiatorId"`
	Display
}

func (ConnectionRequest) Type() core.NotificationType { return core.NotificationConnectionRequest }
func (m ConnectionRequest) Initiator() string         { return m.InitiatorID }
func (m ConnectionRequest) Validate() error {
	return requireFields(m.Type(), "connectionId", m.ConnectionID, "initiatorId", m.InitiatorID)
}

type ConnectionAccepted struct {
	ConnectionID string `json:"connectionId"`
	InitiatorID  string `json:"initiatorId"`
	Display
}

func (ConnectionAccepted) Type() core.NotificationType { return core.NotificationConnectionAccepted }
func (m ConnectionAccepted) Initiator() string         { return m.InitiatorID }
func (m ConnectionAccepted) Validate() error {
	return requireFields(m.Type(), "connectionId", m.ConnectionID, "initiatorId", m.InitiatorID)
}

// SpaceMembershipApproved has no initiator, so it is never self-suppressed.
type SpaceMembershipApproved struct {
	SpaceID      string `json:"spaceId"`
	SpaceName    string `json:"spaceName"`
	SpaceShortID string `json:"spaceShortId"`
	Display
}

func (SpaceMembershipApproved) Type() core.NotificationType {
	return core.NotificationSpaceMembershipApproved
}
func (SpaceMembershipApproved) Initiator() string { return "" }
func (m SpaceMembershipApproved) Validate() error {
	return requireFields(m.Type(), "spaceId", m.SpaceID, "spaceName", m.SpaceName, "spaceShortId", m.SpaceShortID)
}

// DecodeMetadata rebuilds the variant for notificationType from a stored or
// queued map.
func DecodeMetadata(notificationType core.NotificationType, raw map[string]any) (Metadata, error) {
	var target Metadata
	switch notificationType {
	case core.NotificationEntityComment:
		target = &EntityComment{}
	case core.NotificationCommentReply:
		target = &CommentReply{}
	case core.NotificationEntityMention:
		target = &EntityMention{}
	case core.NotificationCommentMention:
		target = &CommentMention{}
	case core.NotificationEntityUpvote:
		target = &EntityUpvote{}
	case core.NotificationCommentUpvote:
		target = &CommentUpvote{}
	case core.NotificationNewFollow:
		target = &NewFollow{}
	case core.NotificationConnectionRequest:
		target = &ConnectionRequest{}
	case core.NotificationConnectionAccepted:
		target = &ConnectionAccepted{}
	case core.NotificationSpaceMembershipApproved:
		target = &SpaceMembershipApproved{}
	default:
		return nil, goerrors.New(
			fmt.Sprintf("notifications: unsupported notification type %q", notificationType),
			goerrors.CategoryBadInput,
		).WithTextCode(core.HookgateErrorBadInput)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "notifications: encode metadata")
	}
	if err := json.Unmarshal(encoded, target); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "notifications: decode metadata").
			WithTextCode(core.HookgateErrorBadInput)
	}
	return derefMetadata(target), nil
}

func derefMetadata(m Metadata) Metadata {
	switch typed := m.(type) {
	case *EntityComment:
		return *typed
	case *CommentReply:
		return *typed
	case *EntityMention:
		return *typed
	case *CommentMention:
		return *typed
	case *EntityUpvote:
		return *typed
	case *CommentUpvote:
		return *typed
	case *NewFollow:
		return *typed
	case *ConnectionRequest:
		return *typed
	case *ConnectionAccepted:
		return *typed
	case *SpaceMembershipApproved:
		return *typed
	default:
		return m
	}
}

// MetadataMap flattens a variant into the persisted metadata shape.
func MetadataMap(m Metadata) (map[string]any, error) {
	if isNilMetadata(m) {
		return map[string]any{}, nil
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("notifications: encode metadata: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("notifications: decode metadata: %w", err)
	}
	return out, nil
}

func requireFields(notificationType core.NotificationType, pairs ...string) error {
	var missing []goerrors.FieldError
	for index := 0; index+1 < len(pairs); index += 2 {
		if strings.TrimSpace(pairs[index+1]) == "" {
			missing = append(missing, goerrors.FieldError{
				Field:   pairs[index],
				Message: "is required",
			})
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return goerrors.NewValidation(
		fmt.Sprintf("Invalid notification data for type: %s", notificationType),
		missing...,
	).WithTextCode(core.HookgateErrorBadInput)
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}

// isNilMetadata also reports typed nil pointers such as (*EntityComment)(nil),
// whose value-receiver methods would panic.
func isNilMetadata(m Metadata) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
