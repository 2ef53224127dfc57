// Package hookgate wires the signed webhook gate, the notification pipeline
// and the connection state machine into a single Runtime.
//
// Components are built from what the caller supplies: the gate and dispatcher
// are always available; the notification pipeline needs a notification store;
// connections need a connection store and a user directory; write flows need
// a transaction runner. A repository factory or persistence client supplies
// all of them at once.
package hookgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-hookgate/adapters/gocommand"
	"github.com/goliatone/go-hookgate/adapters/gologger"
	"github.com/goliatone/go-hookgate/connections"
	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/notifications"
	sqlstore "github.com/goliatone/go-hookgate/store/sql"
	"github.com/goliatone/go-hookgate/transport"
	"github.com/goliatone/go-hookgate/webhooks"
	"github.com/goliatone/go-hookgate/writeflow"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
)

type Config = core.Config

func DefaultConfig() Config {
	return core.DefaultConfig()
}

type Option func(*builder)

type builder struct {
	logger          glog.Logger
	loggerProvider  glog.LoggerProvider
	metrics         core.MetricsRecorder
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
	errorMapper     core.ErrorMapper

	httpClient        transport.HTTPDoer
	persistenceClient *persistence.Client
	factoryOptions    []sqlstore.FactoryOption
	repositoryFactory *sqlstore.RepositoryFactory

	endpointResolver  core.EndpointResolver
	storedEndpoints   core.EndpointResolver
	notificationStore core.NotificationStore
	dispatchLedger    core.NotificationDispatchLedger
	connectionStore   core.ConnectionStore
	userDirectory     core.UserDirectory
	txRunner          writeflow.TxRunner

	scheduler notifications.Scheduler
	sinks     []notifications.Sink

	commandAdapter *gocommand.RegistryAdapter
	runnerOptions  []runner.Option
}

func WithLogger(logger glog.Logger) Option {
	return func(b *builder) { b.logger = logger }
}

func WithLoggerProvider(provider glog.LoggerProvider) Option {
	return func(b *builder) { b.loggerProvider = provider }
}

func WithMetricsRecorder(metrics core.MetricsRecorder) Option {
	return func(b *builder) { b.metrics = metrics }
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *builder) { b.configProvider = provider }
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *builder) { b.optionsResolver = resolver }
}

func WithErrorMapper(mapper core.ErrorMapper) Option {
	return func(b *builder) { b.errorMapper = mapper }
}

// WithHTTPClient sets the client used for outbound webhook calls.
func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(b *builder) { b.httpClient = client }
}

// WithPersistenceClient builds every SQL store from a go-persistence-bun
// client. factoryOpts configure secret encryption and the endpoint cache.
func WithPersistenceClient(client *persistence.Client, factoryOpts ...sqlstore.FactoryOption) Option {
	return func(b *builder) {
		b.persistenceClient = client
		b.factoryOptions = append(b.factoryOptions, factoryOpts...)
	}
}

func WithRepositoryFactory(factory *sqlstore.RepositoryFactory) Option {
	return func(b *builder) { b.repositoryFactory = factory }
}

// WithEndpointResolver takes precedence over stored and configured endpoints.
func WithEndpointResolver(resolver core.EndpointResolver) Option {
	return func(b *builder) { b.endpointResolver = resolver }
}

func WithNotificationStore(store core.NotificationStore) Option {
	return func(b *builder) { b.notificationStore = store }
}

func WithDispatchLedger(ledger core.NotificationDispatchLedger) Option {
	return func(b *builder) { b.dispatchLedger = ledger }
}

func WithConnectionStore(store core.ConnectionStore) Option {
	return func(b *builder) { b.connectionStore = store }
}

func WithUserDirectory(users core.UserDirectory) Option {
	return func(b *builder) { b.userDirectory = users }
}

func WithTxRunner(runner writeflow.TxRunner) Option {
	return func(b *builder) { b.txRunner = runner }
}

// WithNotificationScheduler replaces the in-process task queue, for example
// with the go-job scheduler.
func WithNotificationScheduler(scheduler notifications.Scheduler) Option {
	return func(b *builder) { b.scheduler = scheduler }
}

func WithNotificationSinks(sinks ...notifications.Sink) Option {
	return func(b *builder) { b.sinks = append(b.sinks, sinks...) }
}

// WithCommandRegistry registers the connection commands and queries on the
// go-command registry and global dispatcher.
func WithCommandRegistry(adapter *gocommand.RegistryAdapter, runnerOpts ...runner.Option) Option {
	return func(b *builder) {
		b.commandAdapter = adapter
		b.runnerOptions = append(b.runnerOptions, runnerOpts...)
	}
}

// Runtime holds the wired components. Fields whose dependencies were not
// supplied are nil.
type Runtime struct {
	Observer      *core.Observer
	Dispatcher    *webhooks.Dispatcher
	Gate          *webhooks.Gate
	Notifications *notifications.Pipeline
	Connections   *connections.Service
	WriteFlow     *writeflow.Runner
	Stores        *sqlstore.RepositoryFactory

	config        Config
	subscriptions gocommand.Subscriptions
	closers       []func() error
}

// Setup resolves configuration (defaults < loaded < cfg) and builds the
// runtime.
func Setup(cfg Config, opts ...Option) (*Runtime, error) {
	b := &builder{}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.configProvider == nil {
		b.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if b.optionsResolver == nil {
		b.optionsResolver = core.GoOptionsResolver{}
	}
	if b.errorMapper == nil {
		b.errorMapper = core.MapError
	}

	defaults := core.DefaultConfig()
	loaded, err := b.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, b.mapError(err)
	}
	finalConfig, err := b.optionsResolver.Resolve(defaults, loaded, cfg)
	if err != nil {
		return nil, b.mapError(err)
	}

	observer := gologger.NewObserver(finalConfig.ServiceName, b.loggerProvider, b.logger, b.metrics)
	rt := &Runtime{Observer: observer, config: finalConfig}

	if err := b.resolveStores(); err != nil {
		return nil, b.mapError(err)
	}
	rt.Stores = b.repositoryFactory

	poster := transport.NewRESTAdapter(b.httpClient)
	if agent := strings.TrimSpace(finalConfig.Dispatch.UserAgent); agent != "" {
		poster.DefaultHeaders["User-Agent"] = agent
	}
	if finalConfig.Dispatch.MaxResponseBodyBytes > 0 {
		poster.MaxResponseBodyBytes = finalConfig.Dispatch.MaxResponseBodyBytes
	}
	rt.Dispatcher = webhooks.NewDispatcher(
		webhooks.WithPoster(poster),
		webhooks.WithDispatchObserver(observer),
		webhooks.WithMaxResponseBodyBytes(finalConfig.Dispatch.MaxResponseBodyBytes),
	)
	rt.Gate = webhooks.NewGate(b.resolver(finalConfig), rt.Dispatcher, observer)

	sinks := append([]notifications.Sink(nil), b.sinks...)
	if len(finalConfig.Kafka.Brokers) > 0 {
		sink, err := notifications.NewKafkaSink(notifications.NewKafkaWriter(finalConfig.Kafka.Brokers, ""), finalConfig.Kafka.Topic)
		if err != nil {
			return nil, b.mapError(err)
		}
		sinks = append(sinks, sink)
		rt.closers = append(rt.closers, sink.Close)
	}

	if b.notificationStore != nil {
		pipelineOpts := []notifications.Option{notifications.WithQueueConfig(finalConfig.Notifications)}
		if b.scheduler != nil {
			pipelineOpts = append(pipelineOpts, notifications.WithScheduler(b.scheduler))
		}
		rt.Notifications, err = notifications.NewPipeline(notifications.Dependencies{
			Store:    b.notificationStore,
			Ledger:   b.dispatchLedger,
			Notifier: rt.Gate,
			Sinks:    sinks,
			Observer: observer,
		}, pipelineOpts...)
		if err != nil {
			rt.closeResources()
			return nil, b.mapError(err)
		}
	}

	if b.connectionStore != nil && b.userDirectory != nil {
		connectionOpts := []connections.Option{connections.WithObserver(observer)}
		if rt.Notifications != nil {
			connectionOpts = append(connectionOpts, connections.WithNotifier(rt.Notifications))
		}
		rt.Connections, err = connections.NewService(b.connectionStore, b.userDirectory, connectionOpts...)
		if err != nil {
			rt.closeResources()
			return nil, b.mapError(err)
		}
	}

	if b.txRunner != nil {
		rt.WriteFlow, err = writeflow.NewRunner(rt.Gate, b.txRunner, writeflow.WithObserver(observer))
		if err != nil {
			rt.closeResources()
			return nil, b.mapError(err)
		}
	}

	if b.commandAdapter != nil {
		if rt.Connections == nil {
			rt.closeResources()
			return nil, b.mapError(errors.New("hookgate: command registry requires a connection store and user directory"))
		}
		var enqueuer interface {
			Enqueue(ctx context.Context, req notifications.Request)
		}
		if rt.Notifications != nil {
			enqueuer = rt.Notifications
		}
		subs, err := gocommand.RegisterConnectionHandlers(b.commandAdapter, rt.Connections, enqueuer, b.runnerOptions...)
		if err != nil {
			rt.closeResources()
			return nil, b.mapError(err)
		}
		rt.subscriptions = subs
	}

	observer.Info(context.Background(), "hookgate runtime ready", map[string]any{
		"service_name":  finalConfig.ServiceName,
		"notifications": rt.Notifications != nil,
		"connections":   rt.Connections != nil,
		"writeflow":     rt.WriteFlow != nil,
		"kafka_sink":    len(finalConfig.Kafka.Brokers) > 0,
	})
	return rt, nil
}

func (b *builder) resolveStores() error {
	if b.repositoryFactory == nil && b.persistenceClient != nil {
		factory, err := sqlstore.NewRepositoryFactoryFromPersistence(b.persistenceClient, b.factoryOptions...)
		if err != nil {
			return fmt.Errorf("hookgate: build stores: %w", err)
		}
		b.repositoryFactory = factory
	}
	factory := b.repositoryFactory
	if factory == nil {
		return nil
	}
	if b.notificationStore == nil {
		if store := factory.NotificationStore(); store != nil {
			b.notificationStore = store
		}
	}
	if b.dispatchLedger == nil {
		if ledger := factory.NotificationDispatchStore(); ledger != nil {
			b.dispatchLedger = ledger
		}
	}
	if b.connectionStore == nil {
		if store := factory.ConnectionStore(); store != nil {
			b.connectionStore = store
		}
	}
	if b.userDirectory == nil {
		if users := factory.UserStore(); users != nil {
			b.userDirectory = users
		}
	}
	if b.txRunner == nil {
		if db := factory.DB(); db != nil {
			b.txRunner = db
		}
	}
	if b.storedEndpoints == nil {
		b.storedEndpoints = factory.EndpointResolver()
	}
	return nil
}

// resolver prefers an explicit resolver. Otherwise stored project webhooks
// are consulted first and configured projects fill any kind the store leaves
// without a URL.
func (b *builder) resolver(cfg Config) core.EndpointResolver {
	if b.endpointResolver != nil {
		return b.endpointResolver
	}
	configured := core.NewStaticEndpointResolver(cfg.ProjectWebhooks()...)
	if b.storedEndpoints == nil {
		return configured
	}
	return core.NewChainEndpointResolver(b.storedEndpoints, configured)
}

func (b *builder) mapError(err error) error {
	if err == nil || b.errorMapper == nil {
		return err
	}
	if mapped := b.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (r *Runtime) Config() Config {
	if r == nil {
		return Config{}
	}
	return r.config
}

// Close unsubscribes command handlers, drains the notification queue and
// closes sinks.
func (r *Runtime) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.subscriptions.Unsubscribe()
	r.subscriptions = nil
	var errs []error
	if r.Notifications != nil {
		if err := r.Notifications.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Runtime) closeResources() error {
	var errs []error
	for _, closeFn := range r.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
