// Package receiver is the validator side of the signed round trip: it checks
// inbound request signatures and signs the verdicts it returns.
package receiver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/webhooks"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Decision is the body a validator answers with.
type Decision struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

type Approver func(ctx context.Context, kind core.EventKind, payload json.RawMessage) (Decision, error)

type Receiver struct {
	Secret       string
	Approvers    map[core.EventKind]Approver
	MaxSkew      time.Duration
	MaxBodyBytes int64
	Now          func() time.Time
	Observer     *core.Observer
}

// Routes mounts POST /{kind}. Unknown kinds without an approver are
// acknowledged with valid=true so informational events need no wiring.
func (rc *Receiver) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/{kind}", rc.handle)
	return r
}

func (rc *Receiver) handle(w http.ResponseWriter, r *http.Request) {
	kind := core.EventKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, http.StatusNotFound, "unknown event kind")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, rc.maxBodyBytes()+1))
	if err != nil || int64(len(body)) > rc.maxBodyBytes() {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	timestamp := r.Header.Get(webhooks.HeaderTimestamp)
	if !webhooks.VerifyRequest(body, timestamp, r.Header.Get(webhooks.HeaderSignature), rc.Secret) {
		rc.Observer.Warn(r.Context(), "rejected unsigned webhook request", map[string]any{
			"event_kind": string(kind),
			"request_id": middleware.GetReqID(r.Context()),
		})
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	if !rc.fresh(timestamp) {
		writeError(w, http.StatusUnauthorized, "stale timestamp")
		return
	}

	decision := Decision{Valid: true}
	if approve, ok := rc.Approvers[kind]; ok && approve != nil {
		decision, err = approve(r.Context(), kind, json.RawMessage(body))
		if err != nil {
			rc.Observer.Error(r.Context(), "approver failed", map[string]any{
				"event_kind": string(kind),
				"error":      err.Error(),
			})
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	rc.writeSigned(w, decision)
}

func (rc *Receiver) writeSigned(w http.ResponseWriter, decision Decision) {
	body, err := webhooks.Canonical(decision)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode decision")
		return
	}
	signature, err := webhooks.SignResponse(json.RawMessage(body), rc.Secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign decision")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(webhooks.HeaderResponseSignature, signature)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (rc *Receiver) fresh(timestamp string) bool {
	if rc.MaxSkew <= 0 {
		return true
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return false
	}
	now := time.Now
	if rc.Now != nil {
		now = rc.Now
	}
	skew := now().Sub(time.UnixMilli(millis))
	if skew < 0 {
		skew = -skew
	}
	return skew <= rc.MaxSkew
}

func (rc *Receiver) maxBodyBytes() int64 {
	if rc.MaxBodyBytes > 0 {
		return rc.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

// writeError answers unsigned; the dispatcher surfaces the "error" field.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
