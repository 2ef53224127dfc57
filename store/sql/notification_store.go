package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hookgate/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NotificationStore persists pipeline output. A second record for the same
// (project, event, type, recipient) violates the unique index and is
// reported as core.ErrNotificationExists.
type NotificationStore struct {
	repo repository.Repository[*notificationRecord]
}

func NewNotificationStore(db *bun.DB) (*NotificationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*notificationRecord](db, notificationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid notification repository wiring: %w", err)
		}
	}
	return &NotificationStore{repo: repo}, nil
}

func (s *NotificationStore) Create(ctx context.Context, in core.NotificationRecord) (core.NotificationRecord, error) {
	if s == nil || s.repo == nil {
		return core.NotificationRecord{}, fmt.Errorf("sqlstore: notification store is not configured")
	}
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.RecipientUserID = strings.TrimSpace(in.RecipientUserID)
	in.EventID = strings.TrimSpace(in.EventID)
	if in.ProjectID == "" || in.RecipientUserID == "" {
		return core.NotificationRecord{}, fmt.Errorf("sqlstore: project id and recipient user id are required")
	}
	if !in.Type.Valid() {
		return core.NotificationRecord{}, fmt.Errorf("sqlstore: invalid notification type %q", in.Type)
	}
	if strings.TrimSpace(in.ID) == "" {
		in.ID = uuid.NewString()
	}
	if in.EventID == "" {
		in.EventID = in.ID
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	in.IsRead = false

	created, err := s.repo.Create(ctx, newNotificationRecord(in))
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.NotificationRecord{}, core.ErrNotificationExists
		}
		return core.NotificationRecord{}, err
	}
	return created.toDomain(), nil
}

// ListForRecipient returns a recipient's notifications, newest first.
func (s *NotificationStore) ListForRecipient(
	ctx context.Context,
	projectID string,
	userID string,
	limit int,
	offset int,
) ([]core.NotificationRecord, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: notification store is not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	records, total, err := s.repo.List(ctx,
		repository.SelectBy("project_id", "=", strings.TrimSpace(projectID)),
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, offset),
	)
	if err != nil {
		return nil, 0, err
	}
	out := make([]core.NotificationRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, total, nil
}
