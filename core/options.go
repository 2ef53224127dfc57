package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults < loaded config < runtime config.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	dispatch := map[string]any{}
	if includeZero || cfg.Dispatch.MaxResponseBodyBytes > 0 {
		dispatch["max_response_body_bytes"] = cfg.Dispatch.MaxResponseBodyBytes
	}
	if includeZero || strings.TrimSpace(cfg.Dispatch.UserAgent) != "" {
		dispatch["user_agent"] = cfg.Dispatch.UserAgent
	}
	if len(dispatch) > 0 {
		layer["dispatch"] = dispatch
	}

	notifications := map[string]any{}
	if includeZero || cfg.Notifications.Workers > 0 {
		notifications["workers"] = cfg.Notifications.Workers
	}
	if includeZero || cfg.Notifications.QueueSize > 0 {
		notifications["queue_size"] = cfg.Notifications.QueueSize
	}
	if includeZero || cfg.Notifications.DrainTimeout > 0 {
		notifications["drain_timeout"] = cfg.Notifications.DrainTimeout
	}
	if len(notifications) > 0 {
		layer["notifications"] = notifications
	}

	kafka := map[string]any{}
	if includeZero || len(cfg.Kafka.Brokers) > 0 {
		kafka["brokers"] = append([]string(nil), cfg.Kafka.Brokers...)
	}
	if includeZero || strings.TrimSpace(cfg.Kafka.Topic) != "" {
		kafka["topic"] = cfg.Kafka.Topic
	}
	if len(kafka) > 0 {
		layer["kafka"] = kafka
	}

	if includeZero || len(cfg.Projects) > 0 {
		projects := make(map[string]any, len(cfg.Projects))
		for projectID, project := range cfg.Projects {
			webhooks := make(map[string]any, len(project.Webhooks))
			for kind, endpoint := range project.Webhooks {
				webhooks[kind] = map[string]any{
					"url":           endpoint.URL,
					"shared_secret": endpoint.SharedSecret,
				}
			}
			projects[projectID] = map[string]any{"webhooks": webhooks}
		}
		layer["projects"] = projects
	}
	return layer
}
