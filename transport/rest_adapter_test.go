package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hookgate/core"
)

func TestRESTAdapter_PostSendsBodyAndHeaders(t *testing.T) {
	var gotBody string
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotHeaders = r.Header.Clone()
		w.Header().Set("X-Response-Signature", "abc")
		_, _ = w.Write([]byte(`{"valid":true}`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	res, err := adapter.Post(context.Background(), Request{
		URL:     server.URL,
		Headers: map[string]string{"X-Signature": "sig"},
		Body:    []byte(`{"id":1}`),
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if gotBody != `{"id":1}` {
		t.Fatalf("unexpected body sent: %q", gotBody)
	}
	if gotHeaders.Get("Content-Type") != "application/json" || gotHeaders.Get("X-Signature") != "sig" {
		t.Fatalf("unexpected headers sent: %#v", gotHeaders)
	}
	if res.Header("x-response-signature") != "abc" {
		t.Fatalf("expected case-insensitive response header lookup")
	}
	if string(res.Body) != `{"valid":true}` {
		t.Fatalf("unexpected response body %q", res.Body)
	}
}

func TestRESTAdapter_NonSuccessKeepsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"quota exceeded"}`))
	}))
	defer server.Close()

	_, err := NewRESTAdapter(server.Client()).Post(context.Background(), Request{URL: server.URL})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected status error, got %T %v", err, err)
	}
	if statusErr.Response.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", statusErr.Response.StatusCode)
	}
	if string(statusErr.Response.Body) != `{"error":"quota exceeded"}` {
		t.Fatalf("expected body kept on status error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.HookgateErrorWebhookDispatchFailed {
		t.Fatalf("expected go-errors envelope with dispatch text code")
	}
}

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Post(context.Background(), Request{URL: server.URL})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal || rich.Code != http.StatusBadGateway {
		t.Fatalf("unexpected envelope %q/%d", rich.Category, rich.Code)
	}
}

func TestRESTAdapter_RejectsRelativeURL(t *testing.T) {
	_, err := NewRESTAdapter(nil).Post(context.Background(), Request{URL: "/hooks"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryBadInput {
		t.Fatalf("expected bad input envelope, got %v", err)
	}
}
