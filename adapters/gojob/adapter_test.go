package gojob

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/notifications"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	original := notifications.Request{
		EventID:         "evt-1",
		ProjectID:       "p1",
		RecipientUserID: "bob",
		Action:          core.NotificationActionOpenComment,
		Metadata: notifications.CommentReply{
			EntityID:    "e1",
			CommentID:   "c1",
			ReplyID:     "r1",
			InitiatorID: "alice",
		},
	}

	msg, err := ToExecutionMessage(original)
	if err != nil {
		t.Fatalf("to execution message: %v", err)
	}
	if msg.JobID != JobIDNotificationProcess {
		t.Fatalf("expected job id %q, got %q", JobIDNotificationProcess, msg.JobID)
	}
	if msg.IdempotencyKey != notifications.IdempotencyKey(original) {
		t.Fatalf("expected idempotency key to match the dispatch ledger key")
	}

	roundTrip, err := FromExecutionMessage(msg)
	if err != nil {
		t.Fatalf("from execution message: %v", err)
	}
	if roundTrip.EventID != "evt-1" || roundTrip.ProjectID != "p1" || roundTrip.RecipientUserID != "bob" {
		t.Fatalf("unexpected request: %#v", roundTrip)
	}
	reply, ok := roundTrip.Metadata.(notifications.CommentReply)
	if !ok {
		t.Fatalf("expected comment reply metadata, got %T", roundTrip.Metadata)
	}
	if reply.ReplyID != "r1" || reply.InitiatorID != "alice" {
		t.Fatalf("unexpected metadata: %#v", reply)
	}
}

func TestFromExecutionMessage_RejectsForeignJobs(t *testing.T) {
	_, err := FromExecutionMessage(&job.ExecutionMessage{JobID: "reports.nightly"})
	if !errors.Is(err, errNotificationJob) {
		t.Fatalf("expected foreign job error, got %v", err)
	}
	if _, err := FromExecutionMessage(nil); err == nil {
		t.Fatalf("expected nil message error")
	}
}

func TestScheduler_EnqueuesMappedMessage(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	scheduler := NewScheduler(enqueuer)

	err := scheduler.Submit(context.Background(), notifications.Request{
		EventID:         "evt-2",
		ProjectID:       "p1",
		RecipientUserID: "bob",
		Action:          core.NotificationActionOpenProfile,
		Metadata:        notifications.NewFollow{InitiatorID: "alice"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if enqueuer.last == nil {
		t.Fatalf("expected message to be enqueued")
	}
	if enqueuer.last.Parameters[paramType] != string(core.NotificationNewFollow) {
		t.Fatalf("expected notification type parameter, got %#v", enqueuer.last.Parameters)
	}

	var missing *Scheduler
	if err := missing.Submit(context.Background(), notifications.Request{}); err == nil {
		t.Fatalf("expected unconfigured scheduler error")
	}
}

func TestScheduler_TypedNilMetadataDoesNotPanic(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	err := NewScheduler(enqueuer).Submit(context.Background(), notifications.Request{
		EventID:         "evt-6",
		ProjectID:       "p1",
		RecipientUserID: "bob",
		Metadata:        (*notifications.EntityComment)(nil),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if enqueuer.last.Parameters[paramType] != "" {
		t.Fatalf("expected empty type parameter, got %#v", enqueuer.last.Parameters[paramType])
	}
}

func TestScheduler_SurfacesEnqueueFailure(t *testing.T) {
	enqueueErr := errors.New("queue unavailable")
	scheduler := NewScheduler(
		&stubQueueEnqueuer{err: enqueueErr},
		WithSchedulerObserver(core.NewObserver("hookgate", nil, nil)),
	)
	err := scheduler.Submit(context.Background(), notifications.Request{
		EventID:         "evt-5",
		ProjectID:       "p1",
		RecipientUserID: "bob",
		Action:          core.NotificationActionOpenProfile,
		Metadata:        notifications.NewFollow{InitiatorID: "alice"},
	})
	if !errors.Is(err, enqueueErr) {
		t.Fatalf("expected wrapped enqueue error, got %v", err)
	}
}

func TestConsumer_ProcessesAndAlwaysAcks(t *testing.T) {
	ctx := context.Background()
	msg, err := ToExecutionMessage(notifications.Request{
		EventID:         "evt-3",
		ProjectID:       "p1",
		RecipientUserID: "bob",
		Action:          core.NotificationActionOpenEntity,
		Metadata:        notifications.EntityUpvote{EntityID: "e1", InitiatorID: "alice"},
	})
	if err != nil {
		t.Fatalf("to execution message: %v", err)
	}

	t.Run("success", func(t *testing.T) {
		delivery := &stubQueueDelivery{msg: msg}
		processor := &recordingProcessor{}
		consumer := NewConsumer(&stubQueueDequeuer{delivery: delivery}, processor)
		if err := consumer.ProcessNext(ctx); err != nil {
			t.Fatalf("process next: %v", err)
		}
		if processor.count() != 1 {
			t.Fatalf("expected one processed request, got %d", processor.count())
		}
		if !delivery.acked || delivery.nacked {
			t.Fatalf("expected ack without nack")
		}
	})

	t.Run("processing failure", func(t *testing.T) {
		delivery := &stubQueueDelivery{msg: msg}
		processor := &recordingProcessor{err: errors.New("store down")}
		consumer := NewConsumer(&stubQueueDequeuer{delivery: delivery}, processor)
		if err := consumer.ProcessNext(ctx); err != nil {
			t.Fatalf("processing failures must not surface: %v", err)
		}
		if !delivery.acked || delivery.nacked {
			t.Fatalf("expected failed job to be acked and never requeued")
		}
	})

	t.Run("panic", func(t *testing.T) {
		delivery := &stubQueueDelivery{msg: msg}
		processor := &recordingProcessor{panicWith: "boom"}
		consumer := NewConsumer(&stubQueueDequeuer{delivery: delivery}, processor)
		if err := consumer.ProcessNext(ctx); err != nil {
			t.Fatalf("process next: %v", err)
		}
		if !delivery.acked {
			t.Fatalf("expected panicking job to be acked")
		}
	})

	t.Run("undecodable", func(t *testing.T) {
		delivery := &stubQueueDelivery{msg: &job.ExecutionMessage{
			JobID:      JobIDNotificationProcess,
			Parameters: map[string]any{paramType: "poke"},
		}}
		processor := &recordingProcessor{}
		consumer := NewConsumer(&stubQueueDequeuer{delivery: delivery}, processor)
		if err := consumer.ProcessNext(ctx); err != nil {
			t.Fatalf("process next: %v", err)
		}
		if processor.count() != 0 {
			t.Fatalf("expected undecodable job to be discarded")
		}
		if !delivery.acked {
			t.Fatalf("expected undecodable job to be acked")
		}
	})
}

func TestConsumer_DequeueErrorSurfaces(t *testing.T) {
	consumer := NewConsumer(&stubQueueDequeuer{err: errors.New("redis down")}, &recordingProcessor{})
	if err := consumer.ProcessNext(context.Background()); err == nil {
		t.Fatalf("expected dequeue error")
	}
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := NewConsumer(
		&stubQueueDequeuer{err: errors.New("empty")},
		&recordingProcessor{},
		WithIdleDelay(5*time.Millisecond),
	)
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("consumer did not stop after cancel")
	}
}

func TestObserverHook_RecordsOutcomeMetrics(t *testing.T) {
	metrics := &capturingMetrics{}
	hook := NewObserverHook(core.NewObserver("hookgate", nil, metrics))
	evt := worker.Event{
		Message: &job.ExecutionMessage{
			JobID:          JobIDNotificationProcess,
			IdempotencyKey: "idem-1",
			Parameters:     map[string]any{paramEventID: "evt-4"},
		},
		Attempt:   1,
		StartedAt: time.Now().Add(-time.Second),
		Duration:  250 * time.Millisecond,
	}

	hook.OnStart(context.Background(), evt)
	hook.OnSuccess(context.Background(), evt)
	evt.Err = errors.New("boom")
	hook.OnFailure(context.Background(), evt)
	hook.OnRetry(context.Background(), evt)

	if got := metrics.counter("hookgate.gojob_notification.total", "success"); got != 1 {
		t.Fatalf("expected one success count, got %d", got)
	}
	if got := metrics.counter("hookgate.gojob_notification.total", "failure"); got != 1 {
		t.Fatalf("expected one failure count, got %d", got)
	}

	var nilHook *ObserverHook
	nilHook.OnFailure(context.Background(), evt)
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
	err  error
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	if s.err != nil {
		return queue.EnqueueReceipt{}, s.err
	}
	s.last = msg
	return queue.EnqueueReceipt{DispatchID: "dispatch-" + msg.IdempotencyKey, EnqueuedAt: time.Now()}, nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
	err      error
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg    *job.ExecutionMessage
	acked  bool
	nacked bool
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(context.Context, queue.NackOptions) error {
	s.nacked = true
	return nil
}

type recordingProcessor struct {
	mu        sync.Mutex
	requests  []notifications.Request
	err       error
	panicWith string
}

func (p *recordingProcessor) Process(_ context.Context, req notifications.Request) error {
	if p.panicWith != "" {
		panic(p.panicWith)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return p.err
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type capturingMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (m *capturingMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[name+"|"+tags["status"]] += value
}

func (m *capturingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *capturingMetrics) counter(name string, status string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name+"|"+status]
}
