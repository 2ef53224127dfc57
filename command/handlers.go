package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-hookgate/connections"
	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/notifications"
)

type ConnectionService interface {
	Request(ctx context.Context, in connections.RequestInput) (core.Connection, error)
	Accept(ctx context.Context, projectID string, actorID string, connectionID string) (core.Connection, error)
	Decline(ctx context.Context, projectID string, actorID string, connectionID string) (core.Connection, error)
	Remove(ctx context.Context, projectID string, actorID string, connectionID string) (connections.RemoveResult, error)
	RemoveByUser(ctx context.Context, projectID string, actorID string, otherUserID string) (connections.RemoveResult, error)
}

type NotificationEnqueuer interface {
	Enqueue(ctx context.Context, req notifications.Request)
}

type RequestConnectionCommand struct {
	service ConnectionService
}

func NewRequestConnectionCommand(service ConnectionService) *RequestConnectionCommand {
	return &RequestConnectionCommand{service: service}
}

func (c *RequestConnectionCommand) Execute(ctx context.Context, msg RequestConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection service is required")
	}
	out, err := c.service.Request(ctx, connections.RequestInput{
		ProjectID:  msg.ProjectID,
		ActorID:    msg.ActorID,
		ReceiverID: msg.ReceiverID,
		Message:    msg.Message,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AcceptConnectionCommand struct {
	service ConnectionService
}

func NewAcceptConnectionCommand(service ConnectionService) *AcceptConnectionCommand {
	return &AcceptConnectionCommand{service: service}
}

func (c *AcceptConnectionCommand) Execute(ctx context.Context, msg AcceptConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection service is required")
	}
	out, err := c.service.Accept(ctx, msg.ProjectID, msg.ActorID, msg.ConnectionID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeclineConnectionCommand struct {
	service ConnectionService
}

func NewDeclineConnectionCommand(service ConnectionService) *DeclineConnectionCommand {
	return &DeclineConnectionCommand{service: service}
}

func (c *DeclineConnectionCommand) Execute(ctx context.Context, msg DeclineConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection service is required")
	}
	out, err := c.service.Decline(ctx, msg.ProjectID, msg.ActorID, msg.ConnectionID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RemoveConnectionCommand struct {
	service ConnectionService
}

func NewRemoveConnectionCommand(service ConnectionService) *RemoveConnectionCommand {
	return &RemoveConnectionCommand{service: service}
}

func (c *RemoveConnectionCommand) Execute(ctx context.Context, msg RemoveConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection service is required")
	}
	out, err := c.service.Remove(ctx, msg.ProjectID, msg.ActorID, msg.ConnectionID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RemoveConnectionByUserCommand struct {
	service ConnectionService
}

func NewRemoveConnectionByUserCommand(service ConnectionService) *RemoveConnectionByUserCommand {
	return &RemoveConnectionByUserCommand{service: service}
}

func (c *RemoveConnectionByUserCommand) Execute(ctx context.Context, msg RemoveConnectionByUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection service is required")
	}
	out, err := c.service.RemoveByUser(ctx, msg.ProjectID, msg.ActorID, msg.OtherUserID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// EnqueueNotificationCommand schedules a notification; it returns before the
// notification is processed.
type EnqueueNotificationCommand struct {
	enqueuer NotificationEnqueuer
}

func NewEnqueueNotificationCommand(enqueuer NotificationEnqueuer) *EnqueueNotificationCommand {
	return &EnqueueNotificationCommand{enqueuer: enqueuer}
}

func (c *EnqueueNotificationCommand) Execute(ctx context.Context, msg EnqueueNotificationMessage) error {
	if c == nil || c.enqueuer == nil {
		return commandDependencyError("command: notification enqueuer is required")
	}
	c.enqueuer.Enqueue(ctx, msg.Request)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
