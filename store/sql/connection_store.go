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

// ConnectionStore keeps one row per unordered user pair per project. The
// (project_id, pair_low, pair_high) unique index is the race guard for
// concurrent requests; status changes are compare-and-set updates.
type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*connectionRecord]
}

func NewConnectionStore(db *bun.DB) (*ConnectionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*connectionRecord](db, connectionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}
	return &ConnectionStore{db: db, repo: repo}, nil
}

func (s *ConnectionStore) Create(ctx context.Context, in core.CreateConnectionInput) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.RequesterID = strings.TrimSpace(in.RequesterID)
	in.ReceiverID = strings.TrimSpace(in.ReceiverID)
	if err := in.Validate(); err != nil {
		return core.Connection{}, err
	}

	record := newConnectionRecord(uuid.NewString(), in, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.Connection{}, core.ErrConnectionExists
		}
		return core.Connection{}, err
	}
	return created.toDomain(), nil
}

func (s *ConnectionStore) Get(ctx context.Context, projectID string, id string) (core.Connection, error) {
	if s == nil || s.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	record := &connectionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.project_id = ?", strings.TrimSpace(projectID)).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Connection{}, core.ErrConnectionNotFound
		}
		return core.Connection{}, err
	}
	return record.toDomain(), nil
}

func (s *ConnectionStore) FindByPair(ctx context.Context, projectID string, userA string, userB string) (core.Connection, error) {
	if s == nil || s.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	pair := core.NewConnectionPair(userA, userB)
	record := &connectionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.project_id = ?", strings.TrimSpace(projectID)).
		Where("?TableAlias.pair_low = ?", pair.Low).
		Where("?TableAlias.pair_high = ?", pair.High).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Connection{}, core.ErrConnectionNotFound
		}
		return core.Connection{}, err
	}
	return record.toDomain(), nil
}

func (s *ConnectionStore) TransitionStatus(
	ctx context.Context,
	projectID string,
	id string,
	from core.ConnectionStatus,
	to core.ConnectionStatus,
	respondedAt time.Time,
) (core.Connection, error) {
	if s == nil || s.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if !to.Valid() {
		return core.Connection{}, fmt.Errorf("sqlstore: invalid connection status %q", to)
	}
	res, err := s.db.NewUpdate().
		Model((*connectionRecord)(nil)).
		Set("status = ?", string(to)).
		Set("responded_at = ?", respondedAt.UTC()).
		Where("project_id = ?", strings.TrimSpace(projectID)).
		Where("id = ?", strings.TrimSpace(id)).
		Where("status = ?", string(from)).
		Exec(ctx)
	if err != nil {
		return core.Connection{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.Connection{}, core.ErrConnectionNotFound
	}
	return s.Get(ctx, projectID, id)
}

func (s *ConnectionStore) DeleteIfStatus(ctx context.Context, projectID string, id string, status core.ConnectionStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*connectionRecord)(nil)).
		Where("project_id = ?", strings.TrimSpace(projectID)).
		Where("id = ?", strings.TrimSpace(id)).
		Where("status = ?", string(status)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.ErrConnectionNotFound
	}
	return nil
}

func (s *ConnectionStore) CountByStatus(ctx context.Context, projectID string, userID string, status core.ConnectionStatus) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: connection store is not configured")
	}
	userID = strings.TrimSpace(userID)
	return s.db.NewSelect().
		Model((*connectionRecord)(nil)).
		Where("?TableAlias.project_id = ?", strings.TrimSpace(projectID)).
		Where("?TableAlias.status = ?", string(status)).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.requester_id = ?", userID).
				WhereOr("?TableAlias.receiver_id = ?", userID)
		}).
		Count(ctx)
}

func (s *ConnectionStore) ListPendingReceived(
	ctx context.Context,
	projectID string,
	receiverID string,
	limit int,
	offset int,
) ([]core.Connection, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: connection store is not configured")
	}
	records, total, err := s.repo.List(ctx,
		repository.SelectBy("project_id", "=", strings.TrimSpace(projectID)),
		repository.SelectBy("receiver_id", "=", strings.TrimSpace(receiverID)),
		repository.SelectBy("status", "=", string(core.ConnectionStatusPending)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, offset),
	)
	if err != nil {
		return nil, 0, err
	}
	out := make([]core.Connection, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, total, nil
}
