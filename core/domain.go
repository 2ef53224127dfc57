package core

import (
	"fmt"
	"strings"
	"time"
)

type EventKind string

const (
	EventUserCreatedBefore   EventKind = "userCreated.before"
	EventUserCreatedAfter    EventKind = "userCreated.after"
	EventUserUpdated         EventKind = "userUpdated"
	EventEntityCreated       EventKind = "entityCreated"
	EventEntityUpdated       EventKind = "entityUpdated"
	EventNotificationCreated EventKind = "notificationCreated"
)

var eventKinds = []EventKind{
	EventUserCreatedBefore,
	EventUserCreatedAfter,
	EventUserUpdated,
	EventEntityCreated,
	EventEntityUpdated,
	EventNotificationCreated,
}

// EventKinds returns every webhook event kind a project can subscribe to.
func EventKinds() []EventKind {
	return append([]EventKind(nil), eventKinds...)
}

func (k EventKind) Valid() bool {
	for _, known := range eventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Subject names the record an event kind gates, used in generic rejection
// messages ("Invalid user data").
func (k EventKind) Subject() string {
	switch k {
	case EventUserCreatedBefore, EventUserCreatedAfter, EventUserUpdated:
		return "user"
	case EventEntityCreated, EventEntityUpdated:
		return "entity"
	case EventNotificationCreated:
		return "notification"
	default:
		return ""
	}
}

// WebhookEndpoint is usable only when both URL and SharedSecret are set.
// An empty URL means the project has no opinion on the event.
type WebhookEndpoint struct {
	URL          string `koanf:"url" mapstructure:"url" json:"url,omitempty"`
	SharedSecret string `koanf:"shared_secret" mapstructure:"shared_secret" json:"-"`
}

func (e WebhookEndpoint) Configured() bool {
	return strings.TrimSpace(e.URL) != ""
}

func (e WebhookEndpoint) Keyed() bool {
	return strings.TrimSpace(e.SharedSecret) != ""
}

type ProjectWebhooks struct {
	ProjectID string
	Endpoints map[EventKind]WebhookEndpoint
}

func (p ProjectWebhooks) Endpoint(kind EventKind) WebhookEndpoint {
	if len(p.Endpoints) == 0 {
		return WebhookEndpoint{}
	}
	return p.Endpoints[kind]
}

type NotificationType string

const (
	NotificationEntityComment           NotificationType = "entity-comment"
	NotificationCommentReply            NotificationType = "comment-reply"
	NotificationEntityMention           NotificationType = "entity-mention"
	NotificationCommentMention          NotificationType = "comment-mention"
	NotificationEntityUpvote            NotificationType = "entity-upvote"
	NotificationCommentUpvote           NotificationType = "comment-upvote"
	NotificationNewFollow               NotificationType = "new-follow"
	NotificationConnectionRequest       NotificationType = "connection-request"
	NotificationConnectionAccepted      NotificationType = "connection-accepted"
	NotificationSpaceMembershipApproved NotificationType = "space-membership-approved"
)

var notificationTypes = []NotificationType{
	NotificationEntityComment,
	NotificationCommentReply,
	NotificationEntityMention,
	NotificationCommentMention,
	NotificationEntityUpvote,
	NotificationCommentUpvote,
	NotificationNewFollow,
	NotificationConnectionRequest,
	NotificationConnectionAccepted,
	NotificationSpaceMembershipApproved,
}

func NotificationTypes() []NotificationType {
	return append([]NotificationType(nil), notificationTypes...)
}

func (t NotificationType) Valid() bool {
	for _, known := range notificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

const (
	NotificationActionOpenEntity  = "open-entity"
	NotificationActionOpenComment = "open-comment"
	NotificationActionOpenProfile = "open-profile"
	NotificationActionOpenSpace   = "open-space"
)

// NotificationRecord is created by the notification pipeline and never
// mutated by it afterwards; read state belongs to the CRUD layer.
type NotificationRecord struct {
	ID              string           `json:"id"`
	EventID         string           `json:"eventId,omitempty"`
	ProjectID       string           `json:"projectId"`
	RecipientUserID string           `json:"userId"`
	Type            NotificationType `json:"type"`
	Action          string           `json:"action"`
	Metadata        map[string]any   `json:"metadata"`
	IsRead          bool             `json:"isRead"`
	CreatedAt       time.Time        `json:"createdAt"`
}

type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusAccepted ConnectionStatus = "accepted"
	ConnectionStatusDeclined ConnectionStatus = "declined"
)

func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionStatusPending, ConnectionStatusAccepted, ConnectionStatusDeclined:
		return true
	default:
		return false
	}
}

type Connection struct {
	ID          string           `json:"id"`
	ProjectID   string           `json:"projectId"`
	RequesterID string           `json:"requesterId"`
	ReceiverID  string           `json:"receiverId"`
	Status      ConnectionStatus `json:"status"`
	Message     string           `json:"message,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	RespondedAt *time.Time       `json:"respondedAt,omitempty"`
}

// Involves reports whether userID is one side of the connection.
func (c Connection) Involves(userID string) bool {
	return userID != "" && (c.RequesterID == userID || c.ReceiverID == userID)
}

// Counterpart returns the other side of the connection for userID.
func (c Connection) Counterpart(userID string) string {
	if c.RequesterID == userID {
		return c.ReceiverID
	}
	return c.RequesterID
}

// ConnectionPair is the unordered pair key used for the storage uniqueness guard.
type ConnectionPair struct {
	Low  string
	High string
}

func NewConnectionPair(a string, b string) ConnectionPair {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a > b {
		a, b = b, a
	}
	return ConnectionPair{Low: a, High: b}
}

type CreateConnectionInput struct {
	ProjectID   string
	RequesterID string
	ReceiverID  string
	Message     string
}

func (in CreateConnectionInput) Validate() error {
	if strings.TrimSpace(in.ProjectID) == "" {
		return fmt.Errorf("core: project id is required")
	}
	if strings.TrimSpace(in.RequesterID) == "" || strings.TrimSpace(in.ReceiverID) == "" {
		return fmt.Errorf("core: requester id and receiver id are required")
	}
	return nil
}

// User is the read-only projection of an account the pipeline needs for
// existence checks and initiator enrichment.
type User struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name,omitempty"`
	Username  string `json:"username,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}
