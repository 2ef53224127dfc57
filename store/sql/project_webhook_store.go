package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hookgate/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProjectWebhookStore keeps one endpoint per (project, event kind). Shared
// secrets are sealed with the secret provider before they reach the table.
type ProjectWebhookStore struct {
	db      *bun.DB
	repo    repository.Repository[*projectWebhookRecord]
	secrets core.SecretProvider
}

func NewProjectWebhookStore(db *bun.DB, secrets core.SecretProvider) (*ProjectWebhookStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	repo := repository.NewRepository[*projectWebhookRecord](db, projectWebhookHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid project webhook repository wiring: %w", err)
		}
	}
	return &ProjectWebhookStore{db: db, repo: repo, secrets: secrets}, nil
}

// Get returns every endpoint configured for projectID. A project without
// rows yields an empty configuration, which the gate treats as approve.
func (s *ProjectWebhookStore) Get(ctx context.Context, projectID string) (core.ProjectWebhooks, error) {
	if s == nil || s.repo == nil {
		return core.ProjectWebhooks{}, fmt.Errorf("sqlstore: project webhook store is not configured")
	}
	projectID = strings.TrimSpace(projectID)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("project_id", "=", projectID),
	)
	if err != nil {
		return core.ProjectWebhooks{}, err
	}
	out := core.ProjectWebhooks{
		ProjectID: projectID,
		Endpoints: make(map[core.EventKind]core.WebhookEndpoint, len(records)),
	}
	for _, record := range records {
		endpoint := core.WebhookEndpoint{URL: record.URL}
		if len(record.EncryptedSecret) > 0 {
			plaintext, err := s.secrets.Decrypt(ctx, record.EncryptedSecret)
			if err != nil {
				return core.ProjectWebhooks{}, fmt.Errorf("sqlstore: decrypt %s webhook secret: %w", record.EventKind, err)
			}
			endpoint.SharedSecret = string(plaintext)
		}
		out.Endpoints[core.EventKind(record.EventKind)] = endpoint
	}
	return out, nil
}

func (s *ProjectWebhookStore) ResolveEndpoint(ctx context.Context, projectID string, kind core.EventKind) (core.WebhookEndpoint, error) {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return core.WebhookEndpoint{}, err
	}
	return project.Endpoint(kind), nil
}

// Upsert replaces the endpoint for (projectID, kind). An empty secret is
// stored as NULL so the gate reports the endpoint as misconfigured.
func (s *ProjectWebhookStore) Upsert(ctx context.Context, projectID string, kind core.EventKind, endpoint core.WebhookEndpoint) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: project webhook store is not configured")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("sqlstore: project id is required")
	}
	if !kind.Valid() {
		return fmt.Errorf("sqlstore: invalid webhook event kind %q", kind)
	}

	var sealed []byte
	if secret := strings.TrimSpace(endpoint.SharedSecret); secret != "" {
		encrypted, err := s.secrets.Encrypt(ctx, []byte(secret))
		if err != nil {
			return fmt.Errorf("sqlstore: encrypt webhook secret: %w", err)
		}
		sealed = encrypted
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &projectWebhookRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.project_id = ?", projectID).
			Where("?TableAlias.event_kind = ?", string(kind)).
			Limit(1).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		created := errors.Is(err, sql.ErrNoRows)
		if created {
			record = &projectWebhookRecord{
				ID:        uuid.NewString(),
				ProjectID: projectID,
				EventKind: string(kind),
				CreatedAt: now,
			}
		}
		record.URL = strings.TrimSpace(endpoint.URL)
		record.EncryptedSecret = sealed
		record.UpdatedAt = now

		if created {
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		}
		_, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return updateErr
	})
}
