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

const dispatchStatusCreated = "created"

// NotificationDispatchStore is the dispatch ledger. One row per idempotency
// key; a second Record for the same key is a no-op.
type NotificationDispatchStore struct {
	repo repository.Repository[*notificationDispatchRecord]
	now  func() time.Time
}

func NewNotificationDispatchStore(db *bun.DB) (*NotificationDispatchStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*notificationDispatchRecord](db, notificationDispatchHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid notification dispatch repository wiring: %w", err)
		}
	}
	return &NotificationDispatchStore{repo: repo, now: time.Now}, nil
}

func (s *NotificationDispatchStore) Seen(ctx context.Context, idempotencyKey string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return false, fmt.Errorf("sqlstore: idempotency key is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("idempotency_key", "=", key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return false, fmt.Errorf("sqlstore: check dispatch ledger: %w", err)
	}
	return len(records) > 0, nil
}

func (s *NotificationDispatchStore) Record(ctx context.Context, input core.NotificationDispatchRecord) error {
	if err := s.ready(); err != nil {
		return err
	}
	record, err := s.toRecord(input)
	if err != nil {
		return err
	}
	if _, err := s.repo.Create(ctx, record); err != nil && !isUniqueConstraintError(err) {
		return fmt.Errorf("sqlstore: record dispatch %s: %w", record.Idempotency, err)
	}
	return nil
}

// ListForEvent returns the ledger rows written for one source event, oldest
// first.
func (s *NotificationDispatchStore) ListForEvent(ctx context.Context, projectID string, eventID string) ([]core.NotificationDispatchRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("project_id", "=", strings.TrimSpace(projectID)),
		repository.SelectBy("event_id", "=", strings.TrimSpace(eventID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list dispatches: %w", err)
	}
	out := make([]core.NotificationDispatchRecord, 0, len(records))
	for _, record := range records {
		out = append(out, core.NotificationDispatchRecord{
			EventID:        record.EventID,
			ProjectID:      record.ProjectID,
			RecipientKey:   record.RecipientKey,
			Type:           core.NotificationType(record.Type),
			IdempotencyKey: record.Idempotency,
			Status:         record.Status,
			Error:          record.Error,
			Metadata:       record.Metadata,
		})
	}
	return out, nil
}

func (s *NotificationDispatchStore) ready() error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: notification dispatch store is not configured")
	}
	return nil
}

func (s *NotificationDispatchStore) toRecord(input core.NotificationDispatchRecord) (*notificationDispatchRecord, error) {
	for _, required := range [][2]string{
		{"event id", input.EventID},
		{"project id", input.ProjectID},
		{"recipient key", input.RecipientKey},
		{"idempotency key", input.IdempotencyKey},
	} {
		if strings.TrimSpace(required[1]) == "" {
			return nil, fmt.Errorf("sqlstore: %s is required", required[0])
		}
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = dispatchStatusCreated
	}
	return &notificationDispatchRecord{
		ID:           uuid.NewString(),
		EventID:      strings.TrimSpace(input.EventID),
		ProjectID:    strings.TrimSpace(input.ProjectID),
		RecipientKey: strings.TrimSpace(input.RecipientKey),
		Type:         string(input.Type),
		Idempotency:  strings.TrimSpace(input.IdempotencyKey),
		Status:       status,
		Error:        strings.TrimSpace(input.Error),
		Metadata:     core.RedactSensitiveMap(input.Metadata),
		CreatedAt:    s.now().UTC(),
	}, nil
}
