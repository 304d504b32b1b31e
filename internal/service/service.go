package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"qaflow/internal/domain"
	"qaflow/internal/storage/docs"
	"qaflow/internal/storage/gitstore"
)

// Notifier delivers lifecycle events to the outbound webhook sink.
// Delivery is fire-and-forget; implementations must not block longer
// than their own timeout and must never return delivery problems to
// the workflow path.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Event describes a completed lifecycle transition.
type Event struct {
	Type      string            `json:"type"`
	Action    string            `json:"action"`
	EntityID  string            `json:"entity_id"`
	Actor     string            `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

type Service struct {
	store    docs.Store
	notifier Notifier
	logger   *slog.Logger

	// now and retryDelay are swapped out in tests.
	now        func() time.Time
	retryDelay time.Duration
}

func NewService(store docs.Store, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
		retryDelay: gitstore.DefaultBaseDelay,
	}
}

// retry wraps one read-compute-write unit with the bounded CAS retry.
func (s *Service) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	return gitstore.Retry(ctx, s.logger, op, s.retryDelay, fn)
}

// resolveActor maps the opaque actor identity from the request onto a
// user record. An actor that does not resolve to a user with a known
// role cannot be authenticated at all.
func (s *Service) resolveActor(ctx context.Context, actor string) (domain.User, error) {
	if actor == "" {
		return domain.User{}, fmt.Errorf("missing actor identity: %w", domain.ErrAuthenticationRequired)
	}

	doc, _, err := docs.LoadOrInit[domain.User](ctx, s.store, docs.PathUsers)
	if err != nil {
		return domain.User{}, err
	}

	for _, user := range doc.Items {
		if user.ID == actor || user.Username == actor {
			if !user.Role.Valid() {
				return domain.User{}, fmt.Errorf("actor %q has unknown role %q: %w", actor, user.Role, domain.ErrAuthenticationRequired)
			}
			return user, nil
		}
	}
	return domain.User{}, fmt.Errorf("unknown actor %q: %w", actor, domain.ErrAuthenticationRequired)
}

// authorize resolves the actor and checks the capability against the
// static role table. Runs before any entity-document read so an
// unauthorized request never costs a wasted fetch.
func (s *Service) authorize(ctx context.Context, actor string, capability domain.Capability) (domain.User, error) {
	user, err := s.resolveActor(ctx, actor)
	if err != nil {
		return domain.User{}, err
	}
	if !user.Role.Can(capability) {
		return domain.User{}, fmt.Errorf("role %s lacks capability %s: %w", user.Role, capability, domain.ErrPermissionDenied)
	}
	return user, nil
}

// emit hands a lifecycle event to the webhook sink, if one is wired.
func (s *Service) emit(ctx context.Context, event Event) {
	if s.notifier == nil {
		return
	}
	event.Timestamp = s.now().UTC()
	s.notifier.Notify(ctx, event)
}

func isUser(user domain.User, id string) bool {
	return user.ID == id || user.Username == id
}
