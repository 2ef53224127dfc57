package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-hookgate/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db      *bun.DB
	secrets core.SecretProvider
	cache   repositorycache.CacheService

	connectionStore           *ConnectionStore
	notificationStore         *NotificationStore
	notificationDispatchStore *NotificationDispatchStore
	projectWebhookStore       *ProjectWebhookStore
	endpointResolver          *CachedEndpointResolver
	userStore                 *UserStore
}

type FactoryOption func(*RepositoryFactory)

// WithSecretProvider enables the project webhook store.
func WithSecretProvider(secrets core.SecretProvider) FactoryOption {
	return func(f *RepositoryFactory) {
		f.secrets = secrets
	}
}

// WithEndpointCache puts a cache in front of project webhook reads.
func WithEndpointCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	f := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB, such as
// a go-persistence-bun client.
func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.connectionStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ConnectionStore() *ConnectionStore {
	if f == nil {
		return nil
	}
	return f.connectionStore
}

func (f *RepositoryFactory) NotificationStore() *NotificationStore {
	if f == nil {
		return nil
	}
	return f.notificationStore
}

func (f *RepositoryFactory) NotificationDispatchStore() *NotificationDispatchStore {
	if f == nil {
		return nil
	}
	return f.notificationDispatchStore
}

// ProjectWebhookStore is nil unless a secret provider was configured.
func (f *RepositoryFactory) ProjectWebhookStore() *ProjectWebhookStore {
	if f == nil {
		return nil
	}
	return f.projectWebhookStore
}

// EndpointResolver prefers the cached resolver, then the plain project
// webhook store. It is nil when neither is configured.
func (f *RepositoryFactory) EndpointResolver() core.EndpointResolver {
	if f == nil {
		return nil
	}
	if f.endpointResolver != nil {
		return f.endpointResolver
	}
	if f.projectWebhookStore != nil {
		return f.projectWebhookStore
	}
	return nil
}

func (f *RepositoryFactory) UserStore() *UserStore {
	if f == nil {
		return nil
	}
	return f.userStore
}

func (f *RepositoryFactory) initStores() error {
	connectionStore, err := NewConnectionStore(f.db)
	if err != nil {
		return err
	}
	f.connectionStore = connectionStore

	notificationStore, err := NewNotificationStore(f.db)
	if err != nil {
		return err
	}
	f.notificationStore = notificationStore

	notificationDispatchStore, err := NewNotificationDispatchStore(f.db)
	if err != nil {
		return err
	}
	f.notificationDispatchStore = notificationDispatchStore

	userStore, err := NewUserStore(f.db)
	if err != nil {
		return err
	}
	f.userStore = userStore

	if f.secrets == nil {
		return nil
	}
	projectWebhookStore, err := NewProjectWebhookStore(f.db, f.secrets)
	if err != nil {
		return err
	}
	f.projectWebhookStore = projectWebhookStore
	if f.cache == nil {
		return nil
	}
	endpointResolver, err := NewCachedEndpointResolver(projectWebhookStore, f.cache)
	if err != nil {
		return err
	}
	f.endpointResolver = endpointResolver
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
