package core

import "strings"

const RedactedValue = "[REDACTED]"

// sensitiveKeyFragments mask any key containing them, case-insensitively.
// Header-style keys ("X-Signature") and snake case keys ("shared_secret")
// both match.
var sensitiveKeyFragments = []string{
	"secret",
	"signature",
	"password",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"credential",
}

// traceKeys are kept even when they contain a sensitive fragment, so logs stay
// joinable across the gate, the pipeline and the dispatch ledger.
var traceKeys = map[string]struct{}{
	"project_id":        {},
	"event_id":          {},
	"event_kind":        {},
	"connection_id":     {},
	"recipient_user_id": {},
	"idempotency_key":   {},
	"request_id":        {},
}

// RedactSensitiveMap returns a deep copy of metadata with secret-looking keys
// masked. It is applied to webhook response bodies before logging and to
// dispatch ledger metadata before storage.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if sensitiveKey(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	default:
		return value
	}
}

func sensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, ok := traceKeys[key]; ok {
		return false
	}
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}
