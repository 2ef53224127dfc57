package core

import (
	"fmt"
	"strings"
	"time"
)

type DispatchConfig struct {
	MaxResponseBodyBytes int64  `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
	UserAgent            string `koanf:"user_agent" mapstructure:"user_agent"`
}

type NotificationsConfig struct {
	Workers      int           `koanf:"workers" mapstructure:"workers"`
	QueueSize    int           `koanf:"queue_size" mapstructure:"queue_size"`
	DrainTimeout time.Duration `koanf:"drain_timeout" mapstructure:"drain_timeout"`
}

// KafkaConfig enables the Kafka notification sink when Brokers is set.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers" mapstructure:"brokers"`
	Topic   string   `koanf:"topic" mapstructure:"topic"`
}

// ProjectConfig keys endpoints by event kind name ("entityUpdated").
type ProjectConfig struct {
	Webhooks map[string]WebhookEndpoint `koanf:"webhooks" mapstructure:"webhooks"`
}

type Config struct {
	ServiceName   string                   `koanf:"service_name" mapstructure:"service_name"`
	Dispatch      DispatchConfig           `koanf:"dispatch" mapstructure:"dispatch"`
	Notifications NotificationsConfig      `koanf:"notifications" mapstructure:"notifications"`
	Kafka         KafkaConfig              `koanf:"kafka" mapstructure:"kafka"`
	Projects      map[string]ProjectConfig `koanf:"projects" mapstructure:"projects"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "hookgate",
		Dispatch: DispatchConfig{
			MaxResponseBodyBytes: 1 << 20,
			UserAgent:            "go-hookgate",
		},
		Notifications: NotificationsConfig{
			Workers:      4,
			QueueSize:    256,
			DrainTimeout: 10 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Dispatch.MaxResponseBodyBytes < 0 {
		return fmt.Errorf("core: dispatch.max_response_body_bytes must not be negative")
	}
	if c.Notifications.Workers < 0 {
		return fmt.Errorf("core: notifications.workers must not be negative")
	}
	if c.Notifications.QueueSize < 0 {
		return fmt.Errorf("core: notifications.queue_size must not be negative")
	}
	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		return fmt.Errorf("core: kafka.topic is required when kafka.brokers is set")
	}
	for projectID, project := range c.Projects {
		if strings.TrimSpace(projectID) == "" {
			return fmt.Errorf("core: project id is required")
		}
		for kind := range project.Webhooks {
			if !EventKind(kind).Valid() {
				return fmt.Errorf("core: project %q has invalid webhook event kind %q", projectID, kind)
			}
		}
	}
	return nil
}

// ProjectWebhooks converts the configured projects into resolver input.
func (c Config) ProjectWebhooks() []ProjectWebhooks {
	out := make([]ProjectWebhooks, 0, len(c.Projects))
	for projectID, project := range c.Projects {
		endpoints := make(map[EventKind]WebhookEndpoint, len(project.Webhooks))
		for kind, endpoint := range project.Webhooks {
			endpoints[EventKind(kind)] = WebhookEndpoint{
				URL:          strings.TrimSpace(endpoint.URL),
				SharedSecret: strings.TrimSpace(endpoint.SharedSecret),
			}
		}
		out = append(out, ProjectWebhooks{ProjectID: strings.TrimSpace(projectID), Endpoints: endpoints})
	}
	return out
}
