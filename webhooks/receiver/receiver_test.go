package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/webhooks"
)

func newReceiverServer(t *testing.T, rc *Receiver) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(rc.Routes())
	t.Cleanup(server.Close)
	return server
}

func TestReceiver_RoundTripWithGate(t *testing.T) {
	rc := &Receiver{
		Secret: "k",
		Approvers: map[core.EventKind]Approver{
			core.EventEntityUpdated: func(_ context.Context, _ core.EventKind, payload json.RawMessage) (Decision, error) {
				var body struct {
					Data struct {
						Title string `json:"title"`
					} `json:"data"`
				}
				if err := json.Unmarshal(payload, &body); err != nil {
					return Decision{}, err
				}
				if body.Data.Title == "" {
					return Decision{Valid: false, Message: "bad title"}, nil
				}
				return Decision{Valid: true}, nil
			},
		},
	}
	server := newReceiverServer(t, rc)
	resolver := core.NewStaticEndpointResolver(core.ProjectWebhooks{
		ProjectID: "p1",
		Endpoints: map[core.EventKind]core.WebhookEndpoint{
			core.EventEntityUpdated:     {URL: server.URL + "/entityUpdated", SharedSecret: "k"},
			core.EventUserCreatedBefore: {URL: server.URL + "/userCreated.before", SharedSecret: "k"},
		},
	})
	gate := webhooks.NewGate(resolver, nil, nil)

	rejected := gate.Check(context.Background(), core.EventEntityUpdated, "p1", webhooks.GatePayload{
		ProjectID: "p1",
		Data:      map[string]any{"title": ""},
	})
	if rejected.Valid || rejected.Error != "bad title" {
		t.Fatalf("expected bad title, got %#v", rejected)
	}

	approved := gate.Check(context.Background(), core.EventEntityUpdated, "p1", webhooks.GatePayload{
		ProjectID: "p1",
		Data:      map[string]any{"title": "ok"},
	})
	if !approved.Valid {
		t.Fatalf("expected approval, got %#v", approved)
	}

	defaulted := gate.Check(context.Background(), core.EventUserCreatedBefore, "p1", webhooks.GatePayload{ProjectID: "p1"})
	if !defaulted.Valid {
		t.Fatalf("expected kinds without approver to pass, got %#v", defaulted)
	}
}

func TestReceiver_RejectsBadSignature(t *testing.T) {
	server := newReceiverServer(t, &Receiver{Secret: "k"})

	gate := webhooks.NewGate(core.NewStaticEndpointResolver(core.ProjectWebhooks{
		ProjectID: "p1",
		Endpoints: map[core.EventKind]core.WebhookEndpoint{
			core.EventEntityCreated: {URL: server.URL + "/entityCreated", SharedSecret: "wrong"},
		},
	}), nil, nil)
	result := gate.Check(context.Background(), core.EventEntityCreated, "p1", webhooks.GatePayload{ProjectID: "p1"})
	if result.Valid || result.Error != "invalid signature" {
		t.Fatalf("expected receiver error surfaced, got %#v", result)
	}
}

func TestReceiver_StaleTimestamp(t *testing.T) {
	rc := &Receiver{
		Secret:  "k",
		MaxSkew: time.Minute,
		Now:     func() time.Time { return time.UnixMilli(1700000000000).Add(time.Hour) },
	}
	server := newReceiverServer(t, rc)
	dispatcher := webhooks.NewDispatcher(webhooks.WithDispatchClock(func() time.Time {
		return time.UnixMilli(1700000000000)
	}))
	result := dispatcher.SendAndValidate(context.Background(), server.URL+"/entityCreated", map[string]any{}, "k")
	if result.Success || result.Error != "stale timestamp" {
		t.Fatalf("expected stale timestamp, got %#v", result)
	}
}

func TestReceiver_UnknownKindAndApproverFailure(t *testing.T) {
	rc := &Receiver{
		Secret: "k",
		Approvers: map[core.EventKind]Approver{
			core.EventUserUpdated: func(context.Context, core.EventKind, json.RawMessage) (Decision, error) {
				return Decision{}, errors.New("directory offline")
			},
		},
	}
	server := newReceiverServer(t, rc)

	res, err := http.Post(server.URL+"/entityDeleted", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown kind, got %d", res.StatusCode)
	}

	result := webhooks.NewDispatcher().SendAndValidate(context.Background(), server.URL+"/userUpdated", map[string]any{}, "k")
	if result.Success || result.Error != "directory offline" {
		t.Fatalf("expected approver error surfaced, got %#v", result)
	}
}
