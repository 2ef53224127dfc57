package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/notifications"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDNotificationProcess = "hookgate.notification.process"

	paramEventID         = "event_id"
	paramProjectID       = "project_id"
	paramRecipientUserID = "recipient_user_id"
	paramAction          = "action"
	paramType            = "type"
	paramMetadata        = "metadata"
)

var errNotificationJob = errors.New("gojob: message is not a notification job")

// ToExecutionMessage maps a notification request to a go-job message. The
// idempotency key matches the pipeline's dispatch ledger key.
func ToExecutionMessage(req notifications.Request) (*job.ExecutionMessage, error) {
	metadata, err := notifications.MetadataMap(req.Metadata)
	if err != nil {
		return nil, err
	}
	return &job.ExecutionMessage{
		JobID:      JobIDNotificationProcess,
		ScriptPath: JobIDNotificationProcess,
		Parameters: map[string]any{
			paramEventID:         strings.TrimSpace(req.EventID),
			paramProjectID:       strings.TrimSpace(req.ProjectID),
			paramRecipientUserID: strings.TrimSpace(req.RecipientUserID),
			paramAction:          strings.TrimSpace(req.Action),
			paramType:            string(req.Type()),
			paramMetadata:        metadata,
		},
		IdempotencyKey: notifications.IdempotencyKey(req),
	}, nil
}

// FromExecutionMessage rebuilds the request, including its typed metadata.
func FromExecutionMessage(msg *job.ExecutionMessage) (notifications.Request, error) {
	if msg == nil {
		return notifications.Request{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDNotificationProcess {
		return notifications.Request{}, fmt.Errorf("%w: %q", errNotificationJob, msg.JobID)
	}
	params := msg.Parameters
	metadata, err := notifications.DecodeMetadata(
		core.NotificationType(stringParam(params, paramType)),
		mapParam(params, paramMetadata),
	)
	if err != nil {
		return notifications.Request{}, err
	}
	return notifications.Request{
		EventID:         stringParam(params, paramEventID),
		ProjectID:       stringParam(params, paramProjectID),
		RecipientUserID: stringParam(params, paramRecipientUserID),
		Action:          stringParam(params, paramAction),
		Metadata:        metadata,
	}, nil
}

// Scheduler hands notification requests to a go-job queue instead of the
// in-process task queue.
type Scheduler struct {
	enqueuer queue.Enqueuer
	observer *core.Observer
}

type SchedulerOption func(*Scheduler)

func WithSchedulerObserver(observer *core.Observer) SchedulerOption {
	return func(s *Scheduler) {
		s.observer = observer
	}
}

func NewScheduler(enqueuer queue.Enqueuer, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{enqueuer: enqueuer}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Scheduler) Submit(ctx context.Context, req notifications.Request) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := ToExecutionMessage(req)
	if err != nil {
		return err
	}
	receipt, err := s.enqueuer.Enqueue(ctx, msg)
	if err != nil {
		return fmt.Errorf("gojob: enqueue notification %s: %w", msg.IdempotencyKey, err)
	}
	s.observer.Debug(ctx, "notification job enqueued", map[string]any{
		"event_id":        strings.TrimSpace(req.EventID),
		"idempotency_key": msg.IdempotencyKey,
		"dispatch_id":     receipt.DispatchID,
	})
	return nil
}

// Consumer drains notification jobs into a processor. Every delivery is
// acked: processing failures are logged and never retried.
type Consumer struct {
	dequeuer  queue.Dequeuer
	processor notifications.Processor
	observer  *core.Observer
	idle      time.Duration
}

type ConsumerOption func(*Consumer)

func WithObserver(observer *core.Observer) ConsumerOption {
	return func(c *Consumer) {
		c.observer = observer
	}
}

// WithIdleDelay sets the pause after a failed dequeue in Run.
func WithIdleDelay(delay time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if delay > 0 {
			c.idle = delay
		}
	}
}

func NewConsumer(dequeuer queue.Dequeuer, processor notifications.Processor, opts ...ConsumerOption) *Consumer {
	c := &Consumer{dequeuer: dequeuer, processor: processor, idle: time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// ProcessNext handles one delivery. The returned error only reports queue
// failures (dequeue or ack), never processing failures.
func (c *Consumer) ProcessNext(ctx context.Context) error {
	if c == nil || c.dequeuer == nil || c.processor == nil {
		return fmt.Errorf("gojob: consumer is not configured")
	}
	delivery, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	c.handle(ctx, delivery.Message())
	return delivery.Ack(ctx)
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := c.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.observer.Warn(ctx, "notification job dequeue failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.idle):
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg *job.ExecutionMessage) {
	defer func() {
		if recovered := recover(); recovered != nil {
			c.observer.Error(ctx, "notification job panicked", map[string]any{"panic": fmt.Sprint(recovered)})
		}
	}()
	req, err := FromExecutionMessage(msg)
	if err != nil {
		c.observer.Warn(ctx, "notification job discarded", map[string]any{"error": err.Error()})
		return
	}
	if err := c.processor.Process(ctx, req); err != nil {
		c.observer.Warn(ctx, "notification job failed", map[string]any{
			"event_id":          req.EventID,
			"project_id":        req.ProjectID,
			"recipient_user_id": req.RecipientUserID,
			"error":             err.Error(),
		})
	}
}

// ObserverHook reports go-job worker lifecycle events through the observer.
type ObserverHook struct {
	observer *core.Observer
}

func NewObserverHook(observer *core.Observer) *ObserverHook {
	return &ObserverHook{observer: observer}
}

func (h *ObserverHook) OnStart(ctx context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.observer.Debug(ctx, "notification job started", eventFields(event))
}

func (h *ObserverHook) OnSuccess(ctx context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.observer.Observe(ctx, event.StartedAt, "gojob_notification", nil, eventFields(event))
}

func (h *ObserverHook) OnFailure(ctx context.Context, event worker.Event) {
	if h == nil {
		return
	}
	h.observer.Observe(ctx, event.StartedAt, "gojob_notification", event.Err, eventFields(event))
}

func (h *ObserverHook) OnRetry(ctx context.Context, event worker.Event) {
	if h == nil {
		return
	}
	fields := eventFields(event)
	fields["delay"] = event.Delay.String()
	h.observer.Warn(ctx, "notification job retry requested", fields)
}

func eventFields(event worker.Event) map[string]any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	fields := map[string]any{"attempt": event.Attempt}
	if event.Duration > 0 {
		fields["duration_ms"] = event.Duration.Milliseconds()
	}
	if message != nil {
		fields["job_id"] = message.JobID
		fields["idempotency_key"] = message.IdempotencyKey
		if eventID := stringParam(message.Parameters, paramEventID); eventID != "" {
			fields["event_id"] = eventID
		}
	}
	return fields
}

func stringParam(params map[string]any, key string) string {
	if len(params) == 0 {
		return ""
	}
	value, ok := params[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func mapParam(params map[string]any, key string) map[string]any {
	if len(params) == 0 {
		return map[string]any{}
	}
	value, ok := params[key].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return value
}

var (
	_ notifications.Scheduler = (*Scheduler)(nil)
	_ worker.Hook             = (*ObserverHook)(nil)
)
