package main

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/webhooks/receiver"
)

// reservedFields are the data fields checked against the reserved word list.
var reservedFields = []string{"username", "name", "title"}

// reservedWordsApprover rejects writes whose user-facing fields use a
// reserved word. An empty word list approves everything.
func reservedWordsApprover(words []string) receiver.Approver {
	return func(_ context.Context, kind core.EventKind, payload json.RawMessage) (receiver.Decision, error) {
		if len(words) == 0 {
			return receiver.Decision{Valid: true}, nil
		}
		var envelope struct {
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return receiver.Decision{Valid: false, Message: fmt.Sprintf("Invalid %s data", subject(kind))}, nil
		}
		for _, field := range reservedFields {
			value, _ := envelope.Data[field].(string)
			if slices.Contains(words, strings.ToLower(strings.TrimSpace(value))) {
				return receiver.Decision{
					Valid:   false,
					Message: fmt.Sprintf("%s %q is reserved", field, value),
				}, nil
			}
		}
		return receiver.Decision{Valid: true}, nil
	}
}

func approvers(words []string) map[core.EventKind]receiver.Approver {
	approve := reservedWordsApprover(words)
	return map[core.EventKind]receiver.Approver{
		core.EventUserCreatedBefore: approve,
		core.EventUserUpdated:       approve,
		core.EventEntityCreated:     approve,
		core.EventEntityUpdated:     approve,
	}
}

func subject(kind core.EventKind) string {
	if s := kind.Subject(); s != "" {
		return s
	}
	return "request"
}
