package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hookgate/core"
)

// GatePayload is the envelope write flows send to a validator.
type GatePayload struct {
	ProjectID   string `json:"projectId"`
	Data        any    `json:"data"`
	InitiatorID string `json:"initiatorId,omitempty"`
}

type GateResult struct {
	Valid bool
	Error string
}

// Err converts a rejection into a validation error callers can surface.
func (r GateResult) Err() error {
	if r.Valid {
		return nil
	}
	message := strings.TrimSpace(r.Error)
	textCode := core.HookgateErrorWebhookRejected
	if message == core.MisconfiguredEndpointMessage {
		textCode = core.HookgateErrorWebhookMisconfigured
	}
	if message == "" {
		message = "Webhook validation failed"
	}
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(core.HTTPStatus(goerrors.CategoryValidation)).
		WithTextCode(textCode)
}

type Validator interface {
	SendAndValidate(ctx context.Context, url string, payload any, secret string) DispatchResult
}

type Gate struct {
	resolver  core.EndpointResolver
	validator Validator
	observer  *core.Observer
}

func NewGate(resolver core.EndpointResolver, validator Validator, observer *core.Observer) *Gate {
	if resolver == nil {
		resolver = core.NewStaticEndpointResolver()
	}
	if validator == nil {
		validator = NewDispatcher(WithDispatchObserver(observer))
	}
	return &Gate{resolver: resolver, validator: validator, observer: observer}
}

// Check asks the project's validator to approve payload. It is synchronous
// and must run before any transaction is opened.
func (g *Gate) Check(ctx context.Context, kind core.EventKind, projectID string, payload any) GateResult {
	if g == nil {
		return GateResult{Valid: false, Error: "webhooks: gate is not configured"}
	}
	startedAt := time.Now()
	fields := map[string]any{"project_id": projectID, "event_kind": string(kind)}

	result := g.check(ctx, kind, projectID, payload)
	var outcome error
	if !result.Valid {
		outcome = errors.New(result.Error)
		g.observer.Warn(ctx, "webhook gate rejected "+kind.Subject()+" write", map[string]any{
			"project_id": projectID,
			"event_kind": string(kind),
			"reason":     result.Error,
		})
	}
	g.observer.Observe(ctx, startedAt, "gate", outcome, fields, "event_kind")
	return result
}

func (g *Gate) check(ctx context.Context, kind core.EventKind, projectID string, payload any) GateResult {
	if g == nil || g.resolver == nil || g.validator == nil {
		return GateResult{Valid: false, Error: "webhooks: gate is not configured"}
	}
	endpoint, err := g.resolver.ResolveEndpoint(ctx, projectID, kind)
	if err != nil {
		return GateResult{Valid: false, Error: err.Error()}
	}
	if !endpoint.Configured() {
		return GateResult{Valid: true}
	}
	if !endpoint.Keyed() {
		return GateResult{Valid: false, Error: core.MisconfiguredEndpointMessage}
	}

	dispatched := g.validator.SendAndValidate(ctx, strings.TrimSpace(endpoint.URL), payload, endpoint.SharedSecret)
	if !dispatched.Success {
		return GateResult{Valid: false, Error: dispatched.Error}
	}

	body, _ := dispatched.Data.(map[string]any)
	if valid, _ := body["valid"].(bool); valid {
		return GateResult{Valid: true}
	}
	if message, ok := body["message"].(string); ok && strings.TrimSpace(message) != "" {
		return GateResult{Valid: false, Error: message}
	}
	return GateResult{Valid: false, Error: fmt.Sprintf("Invalid %s data", subjectOrDefault(kind))}
}

// Notify delivers an informational event. The validator's verdict is logged
// and otherwise ignored.
func (g *Gate) Notify(ctx context.Context, kind core.EventKind, projectID string, payload any) {
	if g == nil || g.resolver == nil || g.validator == nil {
		return
	}
	fields := map[string]any{"project_id": projectID, "event_kind": string(kind)}
	endpoint, err := g.resolver.ResolveEndpoint(ctx, projectID, kind)
	if err != nil {
		fields["error"] = err.Error()
		g.observer.Warn(ctx, "webhook notify endpoint lookup failed", fields)
		return
	}
	if !endpoint.Configured() {
		return
	}
	if !endpoint.Keyed() {
		fields["error"] = core.MisconfiguredEndpointMessage
		g.observer.Warn(ctx, "webhook notify skipped", fields)
		return
	}
	dispatched := g.validator.SendAndValidate(ctx, strings.TrimSpace(endpoint.URL), payload, endpoint.SharedSecret)
	if !dispatched.Success {
		fields["error"] = dispatched.Error
		g.observer.Warn(ctx, "webhook notify failed", fields)
		return
	}
	if body, ok := dispatched.Data.(map[string]any); ok {
		if valid, _ := body["valid"].(bool); !valid {
			fields["message"] = body["message"]
			g.observer.Info(ctx, "webhook notify rejected by receiver, ignoring", fields)
		}
	}
}

func subjectOrDefault(kind core.EventKind) string {
	if subject := kind.Subject(); subject != "" {
		return subject
	}
	return "request"
}
