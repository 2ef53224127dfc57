// Package connections implements the connection request state machine:
// pending -> accepted | declined, with withdraw and disconnect deleting the
// row. Every mutation re-reads the row and applies a compare-and-set update,
// so concurrent actors cannot both win a transition.
package connections

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-hookgate/core"
	"github.com/goliatone/go-hookgate/notifications"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, req notifications.Request)
}

type RequestInput struct {
	ProjectID  string
	ActorID    string
	ReceiverID string
	Message    string
}

type RemoveAction string

const (
	RemoveActionWithdraw   RemoveAction = "withdraw"
	RemoveActionDecline    RemoveAction = "decline"
	RemoveActionDisconnect RemoveAction = "disconnect"
)

type RemoveResult struct {
	Action     RemoveAction
	Connection core.Connection
}

type StatusKind string

const (
	StatusNone      StatusKind = "none"
	StatusPending   StatusKind = "pending"
	StatusConnected StatusKind = "connected"
	StatusDeclined  StatusKind = "declined"
)

type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// StatusView describes the pair from the actor's point of view. Direction is
// set for pending and declined rows only.
type StatusView struct {
	Status       StatusKind `json:"status"`
	Direction    Direction  `json:"type,omitempty"`
	ConnectionID string     `json:"connectionId,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	RespondedAt  *time.Time `json:"respondedAt,omitempty"`
}

type PendingRequest struct {
	Connection core.Connection `json:"connection"`
	Requester  core.User       `json:"user"`
}

type PendingPage struct {
	Items  []PendingRequest `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

const (
	defaultPendingLimit = 20
	maxPendingLimit     = 100
)

type Service struct {
	store    core.ConnectionStore
	users    core.UserDirectory
	notifier Enqueuer
	observer *core.Observer
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(notifier Enqueuer) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithObserver(observer *core.Observer) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store core.ConnectionStore, users core.UserDirectory, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("connections: connection store is required")
	}
	if users == nil {
		return nil, errors.New("connections: user directory is required")
	}
	s := &Service{store: store, users: users, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Request creates a pending connection from ActorID to ReceiverID and
// notifies the receiver. Any existing row for the pair blocks the request,
// including a declined one.
func (s *Service) Request(ctx context.Context, in RequestInput) (conn core.Connection, err error) {
	startedAt := time.Now()
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.ActorID = strings.TrimSpace(in.ActorID)
	in.ReceiverID = strings.TrimSpace(in.ReceiverID)
	defer func() {
		s.observe(ctx, startedAt, "connection_request", err, in.ProjectID, conn.ID)
	}()

	if in.ReceiverID == "" {
		return core.Connection{}, badInput("connection/invalid-receiver-id", "Missing or invalid userId in request parameters")
	}
	if in.ActorID == in.ReceiverID {
		return core.Connection{}, badInput(CodeSelfRequest, "A user cannot send a connection request to themselves.")
	}

	requester, err := s.users.GetUser(ctx, in.ProjectID, in.ActorID)
	if err != nil {
		return core.Connection{}, s.userLookupError(err)
	}
	if _, err := s.users.GetUser(ctx, in.ProjectID, in.ReceiverID); err != nil {
		return core.Connection{}, s.userLookupError(err)
	}

	existing, err := s.store.FindByPair(ctx, in.ProjectID, in.ActorID, in.ReceiverID)
	switch {
	case err == nil:
		return core.Connection{}, existingPairError(existing.Status)
	case !errors.Is(err, core.ErrConnectionNotFound):
		return core.Connection{}, internal(err, "connections: lookup existing connection")
	}

	conn, err = s.store.Create(ctx, core.CreateConnectionInput{
		ProjectID:   in.ProjectID,
		RequesterID: in.ActorID,
		ReceiverID:  in.ReceiverID,
		Message:     strings.TrimSpace(in.Message),
	})
	if errors.Is(err, core.ErrConnectionExists) {
		return core.Connection{}, existingPairError(core.ConnectionStatusPending)
	}
	if err != nil {
		return core.Connection{}, internal(err, "connections: create connection")
	}

	s.enqueue(ctx, notifications.Request{
		EventID:         "connection-request:" + conn.ID,
		ProjectID:       in.ProjectID,
		RecipientUserID: in.ReceiverID,
		Action:          core.NotificationActionOpenProfile,
		Metadata: notifications.ConnectionRequest{
			ConnectionID: conn.ID,
			InitiatorID:  requester.ID,
			Display:      notifications.InitiatorDisplay(requester),
		},
	})
	return conn, nil
}

// Accept moves a pending request to accepted. Only the receiver may accept.
func (s *Service) Accept(ctx context.Context, projectID string, actorID string, connectionID string) (conn core.Connection, err error) {
	startedAt := time.Now()
	defer func() {
		s.observe(ctx, startedAt, "connection_accept", err, projectID, connectionID)
	}()

	pending, err := s.pendingForReceiver(ctx, projectID, actorID, connectionID, "accept")
	if err != nil {
		return core.Connection{}, err
	}
	conn, err = s.transition(ctx, pending, core.ConnectionStatusAccepted)
	if err != nil {
		return core.Connection{}, err
	}

	receiver, lookupErr := s.users.GetUser(ctx, conn.ProjectID, conn.ReceiverID)
	if lookupErr != nil {
		receiver = core.User{ID: conn.ReceiverID}
	}
	s.enqueue(ctx, notifications.Request{
		EventID:         "connection-accepted:" + conn.ID,
		ProjectID:       conn.ProjectID,
		RecipientUserID: conn.RequesterID,
		Action:          core.NotificationActionOpenProfile,
		Metadata: notifications.ConnectionAccepted{
			ConnectionID: conn.ID,
			InitiatorID:  conn.ReceiverID,
			Display:      notifications.InitiatorDisplay(receiver),
		},
	})
	return conn, nil
}

// Decline moves a pending request to declined. The row is kept and blocks
// further requests between the pair. No notification is sent.
func (s *Service) Decline(ctx context.Context, projectID string, actorID string, connectionID string) (conn core.Connection, err error) {
	startedAt := time.Now()
	defer func() {
		s.observe(ctx, startedAt, "connection_decline", err, projectID, connectionID)
	}()

	pending, err := s.pendingForReceiver(ctx, projectID, actorID, connectionID, "decline")
	if err != nil {
		return core.Connection{}, err
	}
	return s.transition(ctx, pending, core.ConnectionStatusDeclined)
}

// Remove withdraws a pending request (requester only) or disconnects an
// accepted one (either party). Declined rows cannot be removed.
func (s *Service) Remove(ctx context.Context, projectID string, actorID string, connectionID string) (result RemoveResult, err error) {
	startedAt := time.Now()
	defer func() {
		s.observe(ctx, startedAt, "connection_remove", err, projectID, connectionID)
	}()

	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return RemoveResult{}, badInput(CodeInvalidConnectionID, "Missing or invalid connectionId in request parameters")
	}
	conn, err := s.store.Get(ctx, projectID, connectionID)
	if errors.Is(err, core.ErrConnectionNotFound) {
		return RemoveResult{}, notFound(CodeNotFound, "Connection not found or cannot be withdrawn.")
	}
	if err != nil {
		return RemoveResult{}, internal(err, "connections: load connection")
	}

	switch conn.Status {
	case core.ConnectionStatusPending:
		if conn.RequesterID != actorID {
			return RemoveResult{}, unauthorized("Only the requester can withdraw a pending connection request.")
		}
		result.Action = RemoveActionWithdraw
	case core.ConnectionStatusAccepted:
		if !conn.Involves(actorID) {
			return RemoveResult{}, unauthorized("Only connected users can disconnect.")
		}
		result.Action = RemoveActionDisconnect
	default:
		return RemoveResult{}, notFound(CodeNotFound, "Connection not found or cannot be withdrawn.")
	}

	if err := s.delete(ctx, conn); err != nil {
		return RemoveResult{}, err
	}
	result.Connection = conn
	return result, nil
}

// RemoveByUser resolves the pair row and applies the action the actor's role
// implies: withdraw own pending request, decline a received one, or
// disconnect.
func (s *Service) RemoveByUser(ctx context.Context, projectID string, actorID string, otherUserID string) (result RemoveResult, err error) {
	startedAt := time.Now()
	defer func() {
		s.observe(ctx, startedAt, "connection_remove_by_user", err, projectID, result.Connection.ID)
	}()

	otherUserID = strings.TrimSpace(otherUserID)
	if otherUserID == "" {
		return RemoveResult{}, badInput(CodeInvalidUserID, "Missing or invalid userId in request parameters")
	}
	if actorID == otherUserID {
		return RemoveResult{}, badInput(CodeSelfDisconnect, "Cannot disconnect from yourself")
	}
	conn, err := s.store.FindByPair(ctx, projectID, actorID, otherUserID)
	if errors.Is(err, core.ErrConnectionNotFound) || (err == nil && conn.Status == core.ConnectionStatusDeclined) {
		return RemoveResult{}, notFound(CodeNotFound, "No connection found between these users that can be removed.")
	}
	if err != nil {
		return RemoveResult{}, internal(err, "connections: lookup connection")
	}

	switch {
	case conn.Status == core.ConnectionStatusPending && conn.RequesterID == actorID:
		if err := s.delete(ctx, conn); err != nil {
			return RemoveResult{}, err
		}
		return RemoveResult{Action: RemoveActionWithdraw, Connection: conn}, nil
	case conn.Status == core.ConnectionStatusPending:
		declined, err := s.transition(ctx, conn, core.ConnectionStatusDeclined)
		if err != nil {
			return RemoveResult{}, err
		}
		return RemoveResult{Action: RemoveActionDecline, Connection: declined}, nil
	default:
		if err := s.delete(ctx, conn); err != nil {
			return RemoveResult{}, err
		}
		return RemoveResult{Action: RemoveActionDisconnect, Connection: conn}, nil
	}
}

// Status reports the pair relationship from actorID's side.
func (s *Service) Status(ctx context.Context, projectID string, actorID string, otherUserID string) (StatusView, error) {
	otherUserID = strings.TrimSpace(otherUserID)
	if otherUserID == "" {
		return StatusView{}, badInput(CodeInvalidUserID, "Missing or invalid userId in request parameters")
	}
	if actorID == otherUserID {
		return StatusView{}, badInput(CodeSelfCheck, "Cannot check connection status with yourself")
	}
	conn, err := s.store.FindByPair(ctx, projectID, actorID, otherUserID)
	if errors.Is(err, core.ErrConnectionNotFound) {
		return StatusView{Status: StatusNone}, nil
	}
	if err != nil {
		return StatusView{}, internal(err, "connections: lookup connection")
	}

	direction := DirectionReceived
	if conn.RequesterID == actorID {
		direction = DirectionSent
	}
	createdAt := conn.CreatedAt
	view := StatusView{ConnectionID: conn.ID, CreatedAt: &createdAt, RespondedAt: conn.RespondedAt}
	switch conn.Status {
	case core.ConnectionStatusPending:
		view.Status = StatusPending
		view.Direction = direction
	case core.ConnectionStatusAccepted:
		view.Status = StatusConnected
	case core.ConnectionStatusDeclined:
		view.Status = StatusDeclined
		view.Direction = direction
	default:
		return StatusView{}, internal(errors.New(string(conn.Status)), "connections: unknown connection status")
	}
	return view, nil
}

// Count returns the number of accepted connections userID takes part in.
func (s *Service) Count(ctx context.Context, projectID string, userID string) (int, error) {
	count, err := s.store.CountByStatus(ctx, projectID, userID, core.ConnectionStatusAccepted)
	if err != nil {
		return 0, internal(err, "connections: count connections")
	}
	return count, nil
}

// ListPendingReceived pages through requests awaiting actorID's answer,
// newest first, with the requester's profile attached.
func (s *Service) ListPendingReceived(ctx context.Context, projectID string, actorID string, limit int, offset int) (PendingPage, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}
	if offset < 0 {
		offset = 0
	}
	conns, total, err := s.store.ListPendingReceived(ctx, projectID, actorID, limit, offset)
	if err != nil {
		return PendingPage{}, internal(err, "connections: list pending connections")
	}
	page := PendingPage{Items: make([]PendingRequest, 0, len(conns)), Total: total, Limit: limit, Offset: offset}
	for _, conn := range conns {
		requester, err := s.users.GetUser(ctx, projectID, conn.RequesterID)
		if err != nil {
			requester = core.User{ID: conn.RequesterID, ProjectID: projectID}
		}
		page.Items = append(page.Items, PendingRequest{Connection: conn, Requester: requester})
	}
	return page, nil
}

func (s *Service) pendingForReceiver(
	ctx context.Context,
	projectID string,
	actorID string,
	connectionID string,
	verb string,
) (core.Connection, error) {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return core.Connection{}, badInput(CodeInvalidConnectionID, "Missing or invalid connectionId in request parameters")
	}
	conn, err := s.store.Get(ctx, projectID, connectionID)
	if errors.Is(err, core.ErrConnectionNotFound) || (err == nil && conn.Status != core.ConnectionStatusPending) {
		return core.Connection{}, notFound(CodeNotFound, "Pending connection request not found.")
	}
	if err != nil {
		return core.Connection{}, internal(err, "connections: load connection")
	}
	if conn.ReceiverID != actorID {
		return core.Connection{}, unauthorized("Only the receiver can " + verb + " a connection request.")
	}
	return conn, nil
}

func (s *Service) transition(ctx context.Context, conn core.Connection, to core.ConnectionStatus) (core.Connection, error) {
	updated, err := s.store.TransitionStatus(ctx, conn.ProjectID, conn.ID, conn.Status, to, s.now().UTC())
	if errors.Is(err, core.ErrConnectionNotFound) {
		return core.Connection{}, notFound(CodeNotFound, "Pending connection request not found.")
	}
	if err != nil {
		return core.Connection{}, internal(err, "connections: update connection")
	}
	return updated, nil
}

func (s *Service) delete(ctx context.Context, conn core.Connection) error {
	err := s.store.DeleteIfStatus(ctx, conn.ProjectID, conn.ID, conn.Status)
	if errors.Is(err, core.ErrConnectionNotFound) {
		return notFound(CodeNotFound, "Connection not found or cannot be withdrawn.")
	}
	if err != nil {
		return internal(err, "connections: delete connection")
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, req notifications.Request) {
	if s.notifier == nil {
		return
	}
	s.notifier.Enqueue(ctx, req)
}

func (s *Service) userLookupError(err error) error {
	if errors.Is(err, core.ErrUserNotFound) {
		return notFound(CodeUserNotFound, "One or both users involved in the connection do not exist.")
	}
	return internal(err, "connections: lookup user")
}

func (s *Service) observe(ctx context.Context, startedAt time.Time, operation string, err error, projectID string, connectionID string) {
	s.observer.Observe(ctx, startedAt, operation, err, map[string]any{
		"project_id":    projectID,
		"connection_id": connectionID,
		"error_code":    Code(err),
	}, "error_code")
}

func existingPairError(status core.ConnectionStatus) error {
	switch status {
	case core.ConnectionStatusPending:
		return conflict(CodeRequestPending, "A connection request is already pending between these users.")
	case core.ConnectionStatusAccepted:
		return conflict(CodeAlreadyConnected, "Users are already connected.")
	case core.ConnectionStatusDeclined:
		return conflict(CodeRequestDeclined, "Connection request was declined.")
	default:
		return conflict("connection/already-exists", "Connection already exists between these users.")
	}
}
