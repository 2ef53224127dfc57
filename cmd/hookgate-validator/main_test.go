package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-config/cfgx"
	"github.com/goliatone/go-hookgate/adapters/prometheus"
	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/webhooks"
	prom "github.com/prometheus/client_golang/prometheus"
)

func TestLoadConfig(t *testing.T) {
	env := map[string]string{
		"HOOKGATE_VALIDATOR_SECRET":         "s3cret",
		"PORT":                              "9090",
		"HOOKGATE_VALIDATOR_MAX_SKEW":       "30s",
		"HOOKGATE_VALIDATOR_RESERVED_WORDS": " Admin, root ,,",
		"HOOKGATE_VALIDATOR_LOG_LEVEL":      "DEBUG",
	}
	lookup := func(key string) string { return env[key] }
	cfg, err := loadConfig(lookup)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.MaxSkew != 30*time.Second || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("expected default body limit, got %d", cfg.MaxBodyBytes)
	}
	if len(cfg.ReservedWords) != 2 || cfg.ReservedWords[0] != "admin" || cfg.ReservedWords[1] != "root" {
		t.Fatalf("unexpected reserved words %#v", cfg.ReservedWords)
	}

	env["HOOKGATE_VALIDATOR_ADDR"] = "127.0.0.1:7000"
	env["HOOKGATE_VALIDATOR_MAX_BODY_BYTES"] = "2048"
	cfg, err = loadConfig(lookup)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != "127.0.0.1:7000" || cfg.MaxBodyBytes != 2048 {
		t.Fatalf("expected explicit address and limit, got %#v", cfg)
	}

	if _, err := loadConfig(func(string) string { return "" }); !errors.Is(err, cfgx.ErrValidate) {
		t.Fatalf("expected missing secret validation error, got %v", err)
	}
	env["HOOKGATE_VALIDATOR_MAX_BODY_BYTES"] = "-1"
	if _, err := loadConfig(lookup); !errors.Is(err, cfgx.ErrValidate) {
		t.Fatalf("expected body limit validation error, got %v", err)
	}
	env["HOOKGATE_VALIDATOR_MAX_BODY_BYTES"] = "2048"
	env["HOOKGATE_VALIDATOR_MAX_SKEW"] = "soon"
	if _, err := loadConfig(lookup); !errors.Is(err, cfgx.ErrDecode) {
		t.Fatalf("expected invalid skew decode error, got %v", err)
	}
}

func TestReservedWordsApprover(t *testing.T) {
	approve := reservedWordsApprover([]string{"admin"})

	decision, err := approve(context.Background(), core.EventUserCreatedBefore, json.RawMessage(`{"projectId":"p1","data":{"username":"Admin"}}`))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if decision.Valid || !strings.Contains(decision.Message, "reserved") {
		t.Fatalf("expected reserved word rejection, got %#v", decision)
	}

	decision, _ = approve(context.Background(), core.EventEntityCreated, json.RawMessage(`{"projectId":"p1","data":{"title":"hello"}}`))
	if !decision.Valid {
		t.Fatalf("expected approval, got %#v", decision)
	}

	decision, _ = approve(context.Background(), core.EventEntityUpdated, json.RawMessage(`not json`))
	if decision.Valid || decision.Message != "Invalid entity data" {
		t.Fatalf("expected invalid data rejection, got %#v", decision)
	}
}

func TestRouter_SignedRoundTripAndMetrics(t *testing.T) {
	const secret = "s3cret"
	registry := prom.NewRegistry()
	observer := core.NewObserver("hookgate_validator", nil, prometheus.NewRecorder(registry))
	server := httptest.NewServer(newRouter(validatorConfig{
		Secret:        secret,
		MaxSkew:       time.Minute,
		ReservedWords: []string{"root"},
	}, observer, registry))
	defer server.Close()

	body, err := webhooks.Canonical(webhooks.GatePayload{ProjectID: "p1", Data: map[string]any{"username": "root"}})
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	ts := time.Now().UnixMilli()
	signature, err := webhooks.Sign(json.RawMessage(body), ts, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/webhooks/"+string(core.EventUserUpdated), bytes.NewReader(body))
	req.Header.Set(webhooks.HeaderSignature, signature)
	req.Header.Set(webhooks.HeaderTimestamp, strconv.FormatInt(ts, 10))
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	raw, _ := io.ReadAll(res.Body)
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, raw)
	}
	if !webhooks.Verify(json.RawMessage(raw), res.Header.Get(webhooks.HeaderResponseSignature), secret) {
		t.Fatalf("expected signed response")
	}
	if !strings.Contains(string(raw), `"valid":false`) {
		t.Fatalf("expected rejection body, got %s", raw)
	}

	unsigned, err := http.Post(server.URL+"/webhooks/"+string(core.EventUserUpdated), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post unsigned: %v", err)
	}
	_ = unsigned.Body.Close()
	if unsigned.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned request, got %d", unsigned.StatusCode)
	}

	metrics, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	exposition, _ := io.ReadAll(metrics.Body)
	_ = metrics.Body.Close()
	if !strings.Contains(string(exposition), "hookgate_validator_request_total") {
		t.Fatalf("expected request counter in exposition, got %s", exposition)
	}
}
