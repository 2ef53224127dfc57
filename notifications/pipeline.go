package notifications

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/webhooks"
	"github.com/google/uuid"
)

// Request asks the pipeline to notify one recipient. EventID identifies the
// originating mutation; requests sharing it are delivered at most once per
// recipient and type.
type Request struct {
	EventID         string
	ProjectID       string
	RecipientUserID string
	Action          string
	Metadata        Metadata
}

func (r Request) Type() core.NotificationType {
	if isNilMetadata(r.Metadata) {
		return ""
	}
	return r.Metadata.Type()
}

// Scheduler defers processing off the caller's path. Submit must not block on
// I/O; implementations give no ordering and no retry.
type Scheduler interface {
	Submit(ctx context.Context, req Request) error
}

// Processor runs a single request to completion.
type Processor interface {
	Process(ctx context.Context, req Request) error
}

// Notifier receives the informational notificationCreated event.
type Notifier interface {
	Notify(ctx context.Context, kind core.EventKind, projectID string, payload any)
}

// Sink receives every persisted notification after the webhook fired.
type Sink interface {
	Publish(ctx context.Context, record core.NotificationRecord) error
}

type Dependencies struct {
	Store    core.NotificationStore
	Ledger   core.NotificationDispatchLedger
	Notifier Notifier
	Sinks    []Sink
	Observer *core.Observer
}

type Pipeline struct {
	store     core.NotificationStore
	ledger    core.NotificationDispatchLedger
	notifier  Notifier
	sinks     []Sink
	observer  *core.Observer
	scheduler Scheduler
	queueCfg  TaskQueueConfig
	ownsQueue *TaskQueue
	now       func() time.Time
	newID     func() string
}

type Option func(*Pipeline)

// WithScheduler replaces the in-process task queue.
func WithScheduler(scheduler Scheduler) Option {
	return func(p *Pipeline) {
		if scheduler != nil {
			p.scheduler = scheduler
		}
	}
}

func WithQueueConfig(cfg core.NotificationsConfig) Option {
	return func(p *Pipeline) {
		p.queueCfg = TaskQueueConfig{
			Workers:      cfg.Workers,
			QueueSize:    cfg.QueueSize,
			DrainTimeout: cfg.DrainTimeout,
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(p *Pipeline) {
		if newID != nil {
			p.newID = newID
		}
	}
}

func NewPipeline(deps Dependencies, opts ...Option) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("notifications: notification store is required")
	}
	p := &Pipeline{
		store:    deps.Store,
		ledger:   deps.Ledger,
		notifier: deps.Notifier,
		sinks:    append([]Sink(nil), deps.Sinks...),
		observer: deps.Observer,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.scheduler == nil {
		p.ownsQueue = NewTaskQueue(p, p.queueCfg, p.observer)
		p.scheduler = p.ownsQueue
	}
	return p, nil
}

// Enqueue hands req to the scheduler and returns immediately. Scheduling
// failures are logged; the caller's write is never affected.
func (p *Pipeline) Enqueue(ctx context.Context, req Request) {
	if p == nil || p.scheduler == nil {
		return
	}
	if strings.TrimSpace(req.EventID) == "" {
		req.EventID = p.newID()
	}
	if err := p.scheduler.Submit(detach(ctx), req); err != nil {
		p.observer.Warn(ctx, "notification dropped", map[string]any{
			"project_id":        req.ProjectID,
			"recipient_user_id": req.RecipientUserID,
			"type":              string(req.Type()),
			"error":             err.Error(),
		})
	}
}

// EnqueueMany schedules several notifications from one mutation. They share an
// event id unless set individually and succeed or fail independently.
func (p *Pipeline) EnqueueMany(ctx context.Context, reqs ...Request) {
	if p == nil {
		return
	}
	shared := p.newID()
	for _, req := range reqs {
		if strings.TrimSpace(req.EventID) == "" {
			req.EventID = shared
		}
		p.Enqueue(ctx, req)
	}
}

// Process validates, dedupes, persists and announces one notification. Shape
// errors and self-notifications are discarded without error.
func (p *Pipeline) Process(ctx context.Context, req Request) error {
	startedAt := time.Now()
	fields := map[string]any{
		"project_id":        req.ProjectID,
		"recipient_user_id": req.RecipientUserID,
		"type":              string(req.Type()),
		"event_id":          req.EventID,
	}

	if err := validateRequest(req); err != nil {
		fields["error"] = err.Error()
		p.observer.Error(ctx, fmt.Sprintf("Invalid notification data for type: %s", req.Type()), fields)
		return nil
	}
	if initiator := req.Metadata.Initiator(); initiator != "" && initiator == req.RecipientUserID {
		p.observer.Debug(ctx, "self notification suppressed", fields)
		return nil
	}

	key := IdempotencyKey(req)
	fields["idempotency_key"] = key
	if p.ledger != nil {
		seen, err := p.ledger.Seen(ctx, key)
		if err != nil {
			p.observer.Observe(ctx, startedAt, "notification", err, fields, "type")
			return err
		}
		if seen {
			p.observer.Debug(ctx, "duplicate notification skipped", fields)
			return nil
		}
	}

	metadata, err := MetadataMap(req.Metadata)
	if err != nil {
		p.observer.Observe(ctx, startedAt, "notification", err, fields, "type")
		return err
	}
	record, err := p.store.Create(ctx, core.NotificationRecord{
		ID:              p.newID(),
		EventID:         req.EventID,
		ProjectID:       req.ProjectID,
		RecipientUserID: req.RecipientUserID,
		Type:            req.Type(),
		Action:          req.Action,
		Metadata:        metadata,
		IsRead:          false,
		CreatedAt:       p.now().UTC(),
	})
	if errors.Is(err, core.ErrNotificationExists) {
		p.observer.Debug(ctx, "duplicate notification skipped", fields)
		return nil
	}
	if err != nil {
		p.observer.Observe(ctx, startedAt, "notification", err, fields, "type")
		return err
	}
	if p.ledger != nil {
		if err := p.ledger.Record(ctx, core.NotificationDispatchRecord{
			EventID:        req.EventID,
			ProjectID:      req.ProjectID,
			RecipientKey:   req.RecipientUserID,
			Type:           req.Type(),
			IdempotencyKey: key,
			Status:         "created",
			Metadata:       map[string]any{"notification_id": record.ID},
		}); err != nil {
			fields["ledger_error"] = err.Error()
		}
	}

	if p.notifier != nil {
		p.notifier.Notify(ctx, core.EventNotificationCreated, req.ProjectID, webhooks.GatePayload{
			ProjectID: req.ProjectID,
			Data:      record,
		})
	}
	for _, sink := range p.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, record); err != nil {
			p.observer.Warn(ctx, "notification sink publish failed", map[string]any{
				"notification_id": record.ID,
				"error":           err.Error(),
			})
		}
	}
	fields["notification_id"] = record.ID
	p.observer.Observe(ctx, startedAt, "notification", nil, fields, "type")
	return nil
}

// Close drains the owned task queue, if any.
func (p *Pipeline) Close(ctx context.Context) error {
	if p == nil || p.ownsQueue == nil {
		return nil
	}
	return p.ownsQueue.Close(ctx)
}

// IdempotencyKey is sha256(project|event|type|recipient) in hex.
func IdempotencyKey(req Request) string {
	raw := strings.Join([]string{
		strings.TrimSpace(req.ProjectID),
		strings.TrimSpace(req.EventID),
		string(req.Type()),
		strings.TrimSpace(req.RecipientUserID),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func validateRequest(req Request) error {
	if isNilMetadata(req.Metadata) {
		return fmt.Errorf("notifications: metadata is required")
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		return fmt.Errorf("notifications: project id is required")
	}
	if strings.TrimSpace(req.RecipientUserID) == "" {
		return fmt.Errorf("notifications: recipient user id is required")
	}
	return req.Metadata.Validate()
}

// detach keeps request-scoped values but drops cancellation so deferred work
// outlives the request that scheduled it.
func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
