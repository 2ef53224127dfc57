// Package writeflow runs the validation gate in front of persisted writes.
//
// The gate is a network round trip, so it always runs before a transaction
// is opened and before any field is applied to an in-memory record. A
// rejection leaves the caller's state untouched.
package writeflow

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/webhooks"
	"github.com/uptrace/bun"
)

type Gate interface {
	Check(ctx context.Context, kind core.EventKind, projectID string, payload any) webhooks.GateResult
	Notify(ctx context.Context, kind core.EventKind, projectID string, payload any)
}

// TxRunner is satisfied by *bun.DB.
type TxRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

type GateRequest struct {
	Kind        core.EventKind
	ProjectID   string
	InitiatorID string
	Data        any
}

func (r GateRequest) payload() webhooks.GatePayload {
	return webhooks.GatePayload{ProjectID: r.ProjectID, Data: r.Data, InitiatorID: r.InitiatorID}
}

type Runner struct {
	gate     Gate
	db       TxRunner
	observer *core.Observer
}

type Option func(*Runner)

func WithObserver(observer *core.Observer) Option {
	return func(r *Runner) {
		r.observer = observer
	}
}

func NewRunner(gate Gate, db TxRunner, opts ...Option) (*Runner, error) {
	if gate == nil {
		return nil, errors.New("writeflow: gate is required")
	}
	r := &Runner{gate: gate, db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Create gates req and, once approved, runs commit inside a transaction.
func (r *Runner) Create(ctx context.Context, req GateRequest, commit func(ctx context.Context, tx bun.Tx) error) (err error) {
	startedAt := time.Now()
	defer func() {
		r.observe(ctx, startedAt, "create", req, err)
	}()

	if err := r.check(ctx, req); err != nil {
		return err
	}
	return r.inTx(ctx, commit)
}

// Update gates req before apply mutates the in-memory record, then persists
// it with save.
func (r *Runner) Update(ctx context.Context, req GateRequest, apply func() error, save func(ctx context.Context) error) (err error) {
	startedAt := time.Now()
	defer func() {
		r.observe(ctx, startedAt, "update", req, err)
	}()

	if err := r.check(ctx, req); err != nil {
		return err
	}
	if apply != nil {
		if err := apply(); err != nil {
			return err
		}
	}
	if save == nil {
		return nil
	}
	return save(ctx)
}

// CreateUser runs the two-stage user flow: userCreated.before can block the
// insert, userCreated.after is informational and cannot undo it. commit
// returns the created record sent with the after event.
func (r *Runner) CreateUser(
	ctx context.Context,
	projectID string,
	user any,
	commit func(ctx context.Context, tx bun.Tx) (any, error),
) (created any, err error) {
	req := GateRequest{Kind: core.EventUserCreatedBefore, ProjectID: projectID, Data: user}
	startedAt := time.Now()
	defer func() {
		r.observe(ctx, startedAt, "create_user", req, err)
	}()

	if err := r.check(ctx, req); err != nil {
		return nil, err
	}
	err = r.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		record, commitErr := commit(ctx, tx)
		if commitErr != nil {
			return commitErr
		}
		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	after := GateRequest{Kind: core.EventUserCreatedAfter, ProjectID: projectID, Data: created}
	r.gate.Notify(ctx, after.Kind, projectID, after.payload())
	return created, nil
}

func (r *Runner) check(ctx context.Context, req GateRequest) error {
	return r.gate.Check(ctx, req.Kind, req.ProjectID, req.payload()).Err()
}

func (r *Runner) inTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	if fn == nil {
		return nil
	}
	if r.db == nil {
		return errors.New("writeflow: transaction runner is required")
	}
	return r.db.RunInTx(ctx, nil, fn)
}

func (r *Runner) observe(ctx context.Context, startedAt time.Time, operation string, req GateRequest, err error) {
	r.observer.Observe(ctx, startedAt, "writeflow_"+operation, err, map[string]any{
		"project_id": req.ProjectID,
		"event_kind": string(req.Kind),
	}, "event_kind")
}
