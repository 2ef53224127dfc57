package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-hookgate/connections"
)

var (
	_ gocmd.Commander[RequestConnectionMessage]      = (*RequestConnectionCommand)(nil)
	_ gocmd.Commander[AcceptConnectionMessage]       = (*AcceptConnectionCommand)(nil)
	_ gocmd.Commander[DeclineConnectionMessage]      = (*DeclineConnectionCommand)(nil)
	_ gocmd.Commander[RemoveConnectionMessage]       = (*RemoveConnectionCommand)(nil)
	_ gocmd.Commander[RemoveConnectionByUserMessage] = (*RemoveConnectionByUserCommand)(nil)
	_ gocmd.Commander[EnqueueNotificationMessage]    = (*EnqueueNotificationCommand)(nil)

	_ ConnectionService = (*connections.Service)(nil)
)
