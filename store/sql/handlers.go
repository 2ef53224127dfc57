package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

type identifiedRecord interface {
	comparable
	identifier() *string
}

// recordHandlers wires the repository to records keyed by a string uuid "id" column.
func recordHandlers[T identifiedRecord](newRecord func() T) repository.ModelHandlers[T] {
	var zero T
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			if record == zero {
				return uuid.Nil
			}
			return parseUUID(*record.identifier())
		},
		SetID: func(record T, id uuid.UUID) {
			if record == zero {
				return
			}
			*record.identifier() = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record T) string {
			if record == zero {
				return ""
			}
			return strings.TrimSpace(*record.identifier())
		},
	}
}

func connectionHandlers() repository.ModelHandlers[*connectionRecord] {
	return recordHandlers(func() *connectionRecord { return &connectionRecord{} })
}

func notificationHandlers() repository.ModelHandlers[*notificationRecord] {
	return recordHandlers(func() *notificationRecord { return &notificationRecord{} })
}

func notificationDispatchHandlers() repository.ModelHandlers[*notificationDispatchRecord] {
	return recordHandlers(func() *notificationDispatchRecord { return &notificationDispatchRecord{} })
}

func projectWebhookHandlers() repository.ModelHandlers[*projectWebhookRecord] {
	return recordHandlers(func() *projectWebhookRecord { return &projectWebhookRecord{} })
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
