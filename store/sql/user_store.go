package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hookgate/core"
	"github.com/uptrace/bun"
)

// UserStore is the read projection of product accounts used for existence
// checks and initiator enrichment. Upsert exists for syncing the projection.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &UserStore{db: db}, nil
}

func (s *UserStore) GetUser(ctx context.Context, projectID string, userID string) (core.User, error) {
	if s == nil || s.db == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	record := &userRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.project_id = ?", strings.TrimSpace(projectID)).
		Where("?TableAlias.id = ?", strings.TrimSpace(userID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.ErrUserNotFound
		}
		return core.User{}, err
	}
	return record.toDomain(), nil
}

func (s *UserStore) Upsert(ctx context.Context, user core.User) (core.User, error) {
	if s == nil || s.db == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	user.ID = strings.TrimSpace(user.ID)
	user.ProjectID = strings.TrimSpace(user.ProjectID)
	if user.ID == "" || user.ProjectID == "" {
		return core.User{}, fmt.Errorf("sqlstore: user id and project id are required")
	}
	record := &userRecord{
		ID:        user.ID,
		ProjectID: user.ProjectID,
		Name:      strings.TrimSpace(user.Name),
		Username:  strings.TrimSpace(user.Username),
		Avatar:    strings.TrimSpace(user.Avatar),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("username = EXCLUDED.username").
		Set("avatar = EXCLUDED.avatar").
		Exec(ctx)
	if err != nil {
		return core.User{}, err
	}
	return record.toDomain(), nil
}
