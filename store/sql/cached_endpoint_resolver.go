package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-hookgate/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const projectWebhooksCacheKeyPrefix = "go-hookgate::project_webhooks::v1"

// CachedEndpointResolver serves gate lookups from a cache in front of a
// ProjectWebhookStore. Writes through Upsert evict the project's entry.
type CachedEndpointResolver struct {
	base  core.ProjectWebhookStore
	cache repositorycache.CacheService
}

func NewCachedEndpointResolver(
	base core.ProjectWebhookStore,
	cacheService repositorycache.CacheService,
) (*CachedEndpointResolver, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base project webhook store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: project webhook cache service is required")
	}
	return &CachedEndpointResolver{base: base, cache: cacheService}, nil
}

// ProjectWebhooksCacheKey returns go-hookgate::project_webhooks::v1::<project>
// with the project id URL-path escaped.
func ProjectWebhooksCacheKey(projectID string) (string, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return "", fmt.Errorf("sqlstore: project id is required")
	}
	return projectWebhooksCacheKeyPrefix + "::" + url.PathEscape(projectID), nil
}

func (r *CachedEndpointResolver) Get(ctx context.Context, projectID string) (core.ProjectWebhooks, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.ProjectWebhooks{}, fmt.Errorf("sqlstore: cached endpoint resolver is not configured")
	}
	cacheKey, err := ProjectWebhooksCacheKey(projectID)
	if err != nil {
		return core.ProjectWebhooks{}, err
	}
	project, err := repositorycache.GetOrFetch(ctx, r.cache, cacheKey, func(ctx context.Context) (core.ProjectWebhooks, error) {
		fetched, fetchErr := r.base.Get(ctx, strings.TrimSpace(projectID))
		if fetchErr != nil {
			return core.ProjectWebhooks{}, fetchErr
		}
		return cloneProjectWebhooks(fetched), nil
	})
	if err != nil {
		return core.ProjectWebhooks{}, err
	}
	return cloneProjectWebhooks(project), nil
}

func (r *CachedEndpointResolver) ResolveEndpoint(ctx context.Context, projectID string, kind core.EventKind) (core.WebhookEndpoint, error) {
	project, err := r.Get(ctx, projectID)
	if err != nil {
		return core.WebhookEndpoint{}, err
	}
	return project.Endpoint(kind), nil
}

func (r *CachedEndpointResolver) Upsert(ctx context.Context, projectID string, kind core.EventKind, endpoint core.WebhookEndpoint) error {
	if r == nil || r.base == nil || r.cache == nil {
		return fmt.Errorf("sqlstore: cached endpoint resolver is not configured")
	}
	if err := r.base.Upsert(ctx, projectID, kind, endpoint); err != nil {
		return err
	}
	cacheKey, err := ProjectWebhooksCacheKey(projectID)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, cacheKey)
}

func cloneProjectWebhooks(in core.ProjectWebhooks) core.ProjectWebhooks {
	out := core.ProjectWebhooks{
		ProjectID: in.ProjectID,
		Endpoints: make(map[core.EventKind]core.WebhookEndpoint, len(in.Endpoints)),
	}
	for kind, endpoint := range in.Endpoints {
		out.Endpoints[kind] = endpoint
	}
	return out
}
