package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/transport"
)

const (
	ErrorMissingResponseSignature = "Missing response signature"
	ErrorInvalidResponseSignature = "Invalid response signature"
	ErrorWebhookRequestFailed     = "Webhook request failed"
)

type Poster interface {
	Post(ctx context.Context, req transport.Request) (transport.Response, error)
}

// DispatchResult is the only outcome SendAndValidate reports. Data holds the
// decoded JSON body, Body the raw bytes the signature was checked against.
type DispatchResult struct {
	Success    bool
	Data       any
	Body       json.RawMessage
	StatusCode int
	Error      string
}

type Dispatcher struct {
	poster   Poster
	observer *core.Observer
	now      func() time.Time
	maxBody  int64
}

type DispatcherOption func(*Dispatcher)

func WithPoster(poster Poster) DispatcherOption {
	return func(d *Dispatcher) {
		if poster != nil {
			d.poster = poster
		}
	}
}

func WithDispatchObserver(observer *core.Observer) DispatcherOption {
	return func(d *Dispatcher) {
		d.observer = observer
	}
}

func WithDispatchClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func WithMaxResponseBodyBytes(limit int64) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxBody = limit
	}
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		poster: transport.NewRESTAdapter(nil),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Send performs one signed POST. It does not retry; non-2xx responses are
// returned together with a *transport.StatusError.
func (d *Dispatcher) Send(ctx context.Context, url string, payload any, secret string) (transport.Response, error) {
	if d == nil || d.poster == nil {
		return transport.Response{}, fmt.Errorf("webhooks: dispatcher is not configured")
	}
	body, err := Canonical(payload)
	if err != nil {
		return transport.Response{}, err
	}
	timestamp := d.now().UnixMilli()
	return d.poster.Post(ctx, transport.Request{
		URL: url,
		Headers: map[string]string{
			HeaderSignature: signBody(body, timestamp, secret),
			HeaderTimestamp: strconv.FormatInt(timestamp, 10),
		},
		Body:                 body,
		MaxResponseBodyBytes: d.maxBody,
	})
}

// SendAndValidate sends payload and checks the response signature. It never
// panics and never returns an error value.
func (d *Dispatcher) SendAndValidate(ctx context.Context, url string, payload any, secret string) (result DispatchResult) {
	startedAt := time.Now()
	fields := map[string]any{"url": url}
	defer func() {
		if recovered := recover(); recovered != nil {
			result = DispatchResult{Success: false, Error: ErrorWebhookRequestFailed}
			fields["panic"] = fmt.Sprint(recovered)
		}
		var outcome error
		if !result.Success {
			outcome = errors.New(result.Error)
		}
		fields["status_code"] = result.StatusCode
		d.observer.Observe(ctx, startedAt, "dispatch", outcome, fields, "status_code")
	}()

	res, err := d.Send(ctx, url, payload, secret)
	if err != nil {
		result = DispatchResult{Success: false, Error: transportFailureMessage(err)}
		var statusErr *transport.StatusError
		if errors.As(err, &statusErr) {
			result.StatusCode = statusErr.Response.StatusCode
			fields["response_body"] = redactedBody(statusErr.Response.Body)
		}
		return result
	}
	result.StatusCode = res.StatusCode

	signature := res.Header(HeaderResponseSignature)
	if signature == "" {
		d.observer.Warn(ctx, "webhook response missing signature", map[string]any{"url": url})
		result.Error = ErrorMissingResponseSignature
		return result
	}
	if !Verify(json.RawMessage(res.Body), signature, secret) {
		d.observer.Warn(ctx, "webhook response signature invalid", map[string]any{"url": url})
		result.Error = ErrorInvalidResponseSignature
		return result
	}

	var data any
	if len(strings.TrimSpace(string(res.Body))) > 0 {
		if err := json.Unmarshal(res.Body, &data); err != nil {
			result.Error = ErrorWebhookRequestFailed
			fields["response_body"] = string(res.Body)
			return result
		}
	}
	result.Success = true
	result.Data = data
	result.Body = append(json.RawMessage(nil), res.Body...)
	return result
}

// transportFailureMessage prefers the peer's "error" field over the generic
// failure message.
func transportFailureMessage(err error) string {
	var statusErr *transport.StatusError
	if !errors.As(err, &statusErr) {
		return ErrorWebhookRequestFailed
	}
	var body map[string]any
	if json.Unmarshal(statusErr.Response.Body, &body) != nil {
		return ErrorWebhookRequestFailed
	}
	if value, ok := body["error"].(string); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return ErrorWebhookRequestFailed
}

func redactedBody(raw []byte) any {
	var decoded map[string]any
	if json.Unmarshal(raw, &decoded) == nil {
		return core.RedactSensitiveMap(decoded)
	}
	return string(raw)
}
