package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-hookgate/connections"
)

var (
	_ gocmd.Querier[ConnectionStatusMessage, connections.StatusView]     = (*ConnectionStatusQuery)(nil)
	_ gocmd.Querier[CountConnectionsMessage, int]                        = (*CountConnectionsQuery)(nil)
	_ gocmd.Querier[ListPendingReceivedMessage, connections.PendingPage] = (*ListPendingReceivedQuery)(nil)

	_ ConnectionReader = (*connections.Service)(nil)
)
