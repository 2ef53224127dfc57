package core

import (
	"context"
	"errors"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

var (
	ErrConnectionNotFound = errors.New("core: connection not found")
	ErrConnectionExists   = errors.New("core: connection already exists for user pair")
	ErrUserNotFound       = errors.New("core: user not found")
	ErrProjectNotFound    = errors.New("core: project not found")
	ErrNotificationExists = errors.New("core: notification already recorded for event")
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// EndpointResolver reads the webhook configuration owned by the project.
// Implementations are read-only from the gate's point of view.
type EndpointResolver interface {
	ResolveEndpoint(ctx context.Context, projectID string, kind EventKind) (WebhookEndpoint, error)
}

// StaticEndpointResolver serves endpoints from configuration loaded at startup.
type StaticEndpointResolver struct {
	Projects map[string]ProjectWebhooks
}

func NewStaticEndpointResolver(projects ...ProjectWebhooks) StaticEndpointResolver {
	resolver := StaticEndpointResolver{Projects: make(map[string]ProjectWebhooks, len(projects))}
	for _, project := range projects {
		id := strings.TrimSpace(project.ProjectID)
		if id == "" {
			continue
		}
		resolver.Projects[id] = project
	}
	return resolver
}

func (r StaticEndpointResolver) ResolveEndpoint(_ context.Context, projectID string, kind EventKind) (WebhookEndpoint, error) {
	project, ok := r.Projects[strings.TrimSpace(projectID)]
	if !ok {
		return WebhookEndpoint{}, nil
	}
	return project.Endpoint(kind), nil
}

// ChainEndpointResolver asks each resolver in order and returns the first
// endpoint with a URL. A lookup error stops the chain so the gate fails
// closed instead of skipping to a source that may not carry the veto.
type ChainEndpointResolver []EndpointResolver

func NewChainEndpointResolver(resolvers ...EndpointResolver) ChainEndpointResolver {
	chain := make(ChainEndpointResolver, 0, len(resolvers))
	for _, resolver := range resolvers {
		if resolver != nil {
			chain = append(chain, resolver)
		}
	}
	return chain
}

func (c ChainEndpointResolver) ResolveEndpoint(ctx context.Context, projectID string, kind EventKind) (WebhookEndpoint, error) {
	for _, resolver := range c {
		endpoint, err := resolver.ResolveEndpoint(ctx, projectID, kind)
		if err != nil {
			return WebhookEndpoint{}, err
		}
		if endpoint.Configured() {
			return endpoint, nil
		}
	}
	return WebhookEndpoint{}, nil
}

type ConnectionStore interface {
	Create(ctx context.Context, in CreateConnectionInput) (Connection, error)
	Get(ctx context.Context, projectID string, id string) (Connection, error)
	FindByPair(ctx context.Context, projectID string, userA string, userB string) (Connection, error)
	// TransitionStatus moves a row from one status to another only if it is
	// still in the expected status; otherwise ErrConnectionNotFound.
	TransitionStatus(
		ctx context.Context,
		projectID string,
		id string,
		from ConnectionStatus,
		to ConnectionStatus,
		respondedAt time.Time,
	) (Connection, error)
	// DeleteIfStatus removes a row only if it is still in the expected status.
	DeleteIfStatus(ctx context.Context, projectID string, id string, status ConnectionStatus) error
	CountByStatus(ctx context.Context, projectID string, userID string, status ConnectionStatus) (int, error)
	// ListPendingReceived returns newest first plus the total pending count.
	ListPendingReceived(ctx context.Context, projectID string, receiverID string, limit int, offset int) ([]Connection, int, error)
}

type NotificationStore interface {
	Create(ctx context.Context, record NotificationRecord) (NotificationRecord, error)
}

type NotificationDispatchRecord struct {
	EventID        string
	ProjectID      string
	RecipientKey   string
	Type           NotificationType
	IdempotencyKey string
	Status         string
	Error          string
	Metadata       map[string]any
}

// NotificationDispatchLedger guards at-most-once processing per event and recipient.
type NotificationDispatchLedger interface {
	Seen(ctx context.Context, idempotencyKey string) (bool, error)
	Record(ctx context.Context, record NotificationDispatchRecord) error
}

type UserDirectory interface {
	GetUser(ctx context.Context, projectID string, userID string) (User, error)
}

type ProjectWebhookStore interface {
	Get(ctx context.Context, projectID string) (ProjectWebhooks, error)
	Upsert(ctx context.Context, projectID string, kind EventKind, endpoint WebhookEndpoint) error
}
