package webhooks

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	HeaderSignature         = "X-Signature"
	HeaderTimestamp         = "X-Timestamp"
	HeaderResponseSignature = "X-Response-Signature"
)

// Canonical encodes payload the way both legs of the round trip sign it:
// compact JSON, no HTML escaping, no trailing newline. Raw JSON inputs are
// compacted rather than re-encoded so the receiver can sign the bytes it got.
func Canonical(payload any) ([]byte, error) {
	switch typed := payload.(type) {
	case json.RawMessage:
		return compactJSON(typed)
	case []byte:
		return compactJSON(typed)
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return nil, fmt.Errorf("webhooks: encode payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func compactJSON(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("webhooks: compact payload: %w", err)
	}
	return buf.Bytes(), nil
}

// Sign produces the request-leg signature: lowercase hex HMAC-SHA256 over
// "<timestampMillis>.<canonical payload>".
func Sign(payload any, timestampMillis int64, secret string) (string, error) {
	body, err := Canonical(payload)
	if err != nil {
		return "", err
	}
	return signBody(body, timestampMillis, secret), nil
}

func signBody(body []byte, timestampMillis int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(timestampMillis, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a response-leg signature: HMAC-SHA256 over the canonical
// payload only, no timestamp.
func Verify(payload any, signature string, secret string) bool {
	body, err := Canonical(payload)
	if err != nil {
		return false
	}
	return equalSignature(responseSignature(body, secret), signature)
}

// SignResponse is the receiver-side counterpart of Verify.
func SignResponse(payload any, secret string) (string, error) {
	body, err := Canonical(payload)
	if err != nil {
		return "", err
	}
	return responseSignature(body, secret), nil
}

func responseSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyRequest is the receiver-side counterpart of Sign. timestamp is the raw
// X-Timestamp header value.
func VerifyRequest(body []byte, timestamp string, signature string, secret string) bool {
	millis, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return false
	}
	canonical, err := compactJSON(body)
	if err != nil {
		return false
	}
	return equalSignature(signBody(canonical, millis, secret), signature)
}

func equalSignature(expected string, actual string) bool {
	actual = strings.TrimSpace(actual)
	if actual == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}
