package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type connectionRecord struct {
	bun.BaseModel `bun:"table:hookgate_connections,alias:hc"`

	ID          string     `bun:"id,pk"`
	ProjectID   string     `bun:"project_id,notnull"`
	RequesterID string     `bun:"requester_id,notnull"`
	ReceiverID  string     `bun:"receiver_id,notnull"`
	PairLow     string     `bun:"pair_low,notnull"`
	PairHigh    string     `bun:"pair_high,notnull"`
	Status      string     `bun:"status,notnull"`
	Message     string     `bun:"message"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	RespondedAt *time.Time `bun:"responded_at,nullzero"`
}

func (r *connectionRecord) identifier() *string { return &r.ID }

type notificationRecord struct {
	bun.BaseModel `bun:"table:hookgate_notifications,alias:hn"`

	ID        string         `bun:"id,pk"`
	EventID   string         `bun:"event_id,notnull"`
	ProjectID string         `bun:"project_id,notnull"`
	UserID    string         `bun:"user_id,notnull"`
	Type      string         `bun:"type,notnull"`
	Action    string         `bun:"action,notnull"`
	Metadata  map[string]any `bun:"metadata,type:jsonb,notnull"`
	IsRead    bool           `bun:"is_read,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *notificationRecord) identifier() *string { return &r.ID }

type notificationDispatchRecord struct {
	bun.BaseModel `bun:"table:hookgate_notification_dispatches,alias:hnd"`

	ID           string         `bun:"id,pk"`
	EventID      string         `bun:"event_id,notnull"`
	ProjectID    string         `bun:"project_id,notnull"`
	RecipientKey string         `bun:"recipient_key,notnull"`
	Type         string         `bun:"notification_type,notnull"`
	Idempotency  string         `bun:"idempotency_key,notnull"`
	Status       string         `bun:"status,notnull"`
	Error        string         `bun:"error"`
	Metadata     map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *notificationDispatchRecord) identifier() *string { return &r.ID }

type projectWebhookRecord struct {
	bun.BaseModel `bun:"table:hookgate_project_webhooks,alias:hpw"`

	ID              string    `bun:"id,pk"`
	ProjectID       string    `bun:"project_id,notnull"`
	EventKind       string    `bun:"event_kind,notnull"`
	URL             string    `bun:"url,notnull"`
	EncryptedSecret []byte    `bun:"encrypted_secret"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *projectWebhookRecord) identifier() *string { return &r.ID }

type userRecord struct {
	bun.BaseModel `bun:"table:hookgate_users,alias:hu"`

	ID        string    `bun:"id,pk"`
	ProjectID string    `bun:"project_id,notnull"`
	Name      string    `bun:"name"`
	Username  string    `bun:"username"`
	Avatar    string    `bun:"avatar"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
