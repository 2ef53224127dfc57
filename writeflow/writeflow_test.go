package writeflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/webhooks"
	"github.com/uptrace/bun"
)

type fakeTx struct {
	calls int
	err   error
}

func (f *fakeTx) RunInTx(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	f.calls++
	if err := fn(ctx, bun.Tx{}); err != nil {
		return err
	}
	return f.err
}

type stubGate struct {
	mu       sync.Mutex
	verdicts map[core.EventKind]webhooks.GateResult
	checked  []core.EventKind
	notified []core.EventKind
	payloads []any
}

func (g *stubGate) Check(_ context.Context, kind core.EventKind, _ string, payload any) webhooks.GateResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checked = append(g.checked, kind)
	g.payloads = append(g.payloads, payload)
	if verdict, ok := g.verdicts[kind]; ok {
		return verdict
	}
	return webhooks.GateResult{Valid: true}
}

func (g *stubGate) Notify(_ context.Context, kind core.EventKind, _ string, payload any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notified = append(g.notified, kind)
	g.payloads = append(g.payloads, payload)
}

type entity struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// signedValidator answers every gate call with body and a valid response signature.
func signedValidator(t *testing.T, secret string, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		signature, err := webhooks.SignResponse(json.RawMessage(body), secret)
		if err != nil {
			t.Errorf("sign response: %v", err)
		}
		w.Header().Set(webhooks.HeaderResponseSignature, signature)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func rejectionMessage(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Message
	}
	return ""
}

func TestUpdate_RejectedByValidatorLeavesRecordUnchanged(t *testing.T) {
	server := signedValidator(t, "s3cret", `{"message":"bad title","valid":false}`)
	resolver := core.NewStaticEndpointResolver(core.ProjectWebhooks{
		ProjectID: "p1",
		Endpoints: map[core.EventKind]core.WebhookEndpoint{
			core.EventEntityUpdated: {URL: server.URL, SharedSecret: "s3cret"},
		},
	})
	gate := webhooks.NewGate(resolver, webhooks.NewDispatcher(), nil)
	tx := &fakeTx{}
	runner, err := NewRunner(gate, tx)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	record := entity{ID: "e1", Title: "original"}
	saved := false
	err = runner.Update(context.Background(),
		GateRequest{Kind: core.EventEntityUpdated, ProjectID: "p1", InitiatorID: "u1", Data: entity{ID: "e1", Title: "new"}},
		func() error {
			record.Title = "new"
			return nil
		},
		func(context.Context) error {
			saved = true
			return nil
		},
	)
	if err == nil {
		t.Fatalf("expected rejection")
	}
	if rejectionMessage(err) != "bad title" {
		t.Fatalf("expected rejection reason bad title, got %q", rejectionMessage(err))
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.HookgateErrorWebhookRejected {
		t.Fatalf("expected rejected text code, got %#v", err)
	}
	if record.Title != "original" || saved {
		t.Fatalf("expected record untouched, got %#v saved=%v", record, saved)
	}
}

func TestUpdate_AppliesAndSavesWhenApproved(t *testing.T) {
	gate := &stubGate{}
	runner, _ := NewRunner(gate, nil)
	record := entity{ID: "e1", Title: "original"}
	saved := false

	err := runner.Update(context.Background(), GateRequest{Kind: core.EventEntityUpdated, ProjectID: "p1"},
		func() error { record.Title = "new"; return nil },
		func(context.Context) error { saved = true; return nil },
	)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if record.Title != "new" || !saved {
		t.Fatalf("expected applied and saved, got %#v saved=%v", record, saved)
	}
	payload, ok := gate.payloads[0].(webhooks.GatePayload)
	if !ok || payload.ProjectID != "p1" {
		t.Fatalf("expected gate payload envelope, got %#v", gate.payloads[0])
	}
}

func TestCreate_GateRunsBeforeTransaction(t *testing.T) {
	gate := &stubGate{verdicts: map[core.EventKind]webhooks.GateResult{
		core.EventEntityCreated: {Valid: false, Error: "Invalid entity data"},
	}}
	tx := &fakeTx{}
	runner, _ := NewRunner(gate, tx)

	err := runner.Create(context.Background(), GateRequest{Kind: core.EventEntityCreated, ProjectID: "p1"},
		func(context.Context, bun.Tx) error { t.Fatalf("commit must not run"); return nil })
	if rejectionMessage(err) != "Invalid entity data" {
		t.Fatalf("expected rejection, got %v", err)
	}
	if tx.calls != 0 {
		t.Fatalf("expected no transaction, got %d", tx.calls)
	}

	gate.verdicts = nil
	committed := false
	err = runner.Create(context.Background(), GateRequest{Kind: core.EventEntityCreated, ProjectID: "p1"},
		func(context.Context, bun.Tx) error { committed = true; return nil })
	if err != nil || !committed || tx.calls != 1 {
		t.Fatalf("expected commit in transaction, err=%v committed=%v calls=%d", err, committed, tx.calls)
	}
}

func TestCreate_MisconfiguredEndpointFailsClosed(t *testing.T) {
	resolver := core.NewStaticEndpointResolver(core.ProjectWebhooks{
		ProjectID: "p1",
		Endpoints: map[core.EventKind]core.WebhookEndpoint{
			core.EventEntityCreated: {URL: "https://validator.example/hook"},
		},
	})
	tx := &fakeTx{}
	runner, _ := NewRunner(webhooks.NewGate(resolver, webhooks.NewDispatcher(), nil), tx)

	err := runner.Create(context.Background(), GateRequest{Kind: core.EventEntityCreated, ProjectID: "p1"},
		func(context.Context, bun.Tx) error { return nil })
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.HookgateErrorWebhookMisconfigured {
		t.Fatalf("expected misconfigured error, got %v", err)
	}
	if tx.calls != 0 {
		t.Fatalf("expected no transaction")
	}
}

func TestCreateUser_AfterEventIsNotifyOnly(t *testing.T) {
	gate := &stubGate{verdicts: map[core.EventKind]webhooks.GateResult{
		core.EventUserCreatedAfter: {Valid: false, Error: "ignored"},
	}}
	tx := &fakeTx{}
	runner, _ := NewRunner(gate, tx)

	created, err := runner.CreateUser(context.Background(), "p1", map[string]any{"email": "a@example.com"},
		func(context.Context, bun.Tx) (any, error) {
			return map[string]any{"id": "u1", "email": "a@example.com"}, nil
		})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.(map[string]any)["id"] != "u1" {
		t.Fatalf("unexpected created record %#v", created)
	}
	if len(gate.checked) != 1 || gate.checked[0] != core.EventUserCreatedBefore {
		t.Fatalf("expected only before check, got %#v", gate.checked)
	}
	if len(gate.notified) != 1 || gate.notified[0] != core.EventUserCreatedAfter {
		t.Fatalf("expected after notify, got %#v", gate.notified)
	}
	after := gate.payloads[1].(webhooks.GatePayload)
	if after.Data.(map[string]any)["id"] != "u1" {
		t.Fatalf("expected created record in after payload, got %#v", after)
	}
}

func TestCreateUser_BeforeRejectionAndCommitFailure(t *testing.T) {
	gate := &stubGate{verdicts: map[core.EventKind]webhooks.GateResult{
		core.EventUserCreatedBefore: {Valid: false, Error: "Invalid user data"},
	}}
	tx := &fakeTx{}
	runner, _ := NewRunner(gate, tx)

	_, err := runner.CreateUser(context.Background(), "p1", nil, func(context.Context, bun.Tx) (any, error) {
		t.Fatalf("commit must not run")
		return nil, nil
	})
	if rejectionMessage(err) != "Invalid user data" || tx.calls != 0 {
		t.Fatalf("expected before rejection without transaction, err=%v calls=%d", err, tx.calls)
	}

	gate.verdicts = nil
	boom := errors.New("duplicate email")
	_, err = runner.CreateUser(context.Background(), "p1", nil, func(context.Context, bun.Tx) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if len(gate.notified) != 0 {
		t.Fatalf("expected no after notify on failed commit")
	}
}
