package sqlstore

import "github.com/goliatone/go-hookgate/core"

var (
	_ core.ConnectionStore            = (*ConnectionStore)(nil)
	_ core.NotificationStore          = (*NotificationStore)(nil)
	_ core.NotificationDispatchLedger = (*NotificationDispatchStore)(nil)
	_ core.ProjectWebhookStore        = (*ProjectWebhookStore)(nil)
	_ core.ProjectWebhookStore        = (*CachedEndpointResolver)(nil)
	_ core.EndpointResolver           = (*ProjectWebhookStore)(nil)
	_ core.EndpointResolver           = (*CachedEndpointResolver)(nil)
	_ core.UserDirectory              = (*UserStore)(nil)
)
