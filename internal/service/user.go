package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"qaflow/internal/domain"
	"qaflow/internal/storage/docs"
)

type UserInput struct {
	ID             string
	Username       string
	Role           string
	MaxAssignments int
}

func (s *Service) CreateUser(ctx context.Context, actor string, in UserInput) (domain.User, error) {
	if _, err := s.authorize(ctx, actor, domain.CapUserManage); err != nil {
		return domain.User{}, err
	}
	if in.Username == "" {
		return domain.User{}, fmt.Errorf("username is required: %w", domain.ErrValidation)
	}
	role := domain.Role(in.Role)
	if !role.Valid() {
		return domain.User{}, fmt.Errorf("unknown role %q: %w", in.Role, domain.ErrValidation)
	}
	if in.MaxAssignments < 0 {
		return domain.User{}, fmt.Errorf("max_concurrent_assignments must not be negative: %w", domain.ErrValidation)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	var result domain.User
	err := s.retry(ctx, "create user", func(ctx context.Context) error {
		doc, version, err := docs.LoadOrInit[domain.User](ctx, s.store, docs.PathUsers)
		if err != nil {
			return err
		}

		exists := slices.ContainsFunc(doc.Items, func(u domain.User) bool {
			return u.ID == id || u.Username == in.Username
		})
		if exists {
			return fmt.Errorf("user %s already exists: %w", in.Username, domain.ErrValidation)
		}

		user := domain.User{
			ID:             id,
			Username:       in.Username,
			Role:           role,
			MaxAssignments: in.MaxAssignments,
		}
		doc.Items = append(doc.Items, user)

		_, err = docs.Save(ctx, s.store, docs.PathUsers, doc,
			"Create user "+in.Username, version, s.now())
		if err != nil {
			return err
		}
		result = user
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logActivity(ctx, "user", "create", actor, "Created user "+in.Username,
		map[string]string{"user_id": id})
	return result, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	doc, _, err := docs.LoadOrInit[domain.User](ctx, s.store, docs.PathUsers)
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}

// adjustUserAssignments applies counter deltas to the users document.
// Secondary document: best-effort with its own CAS unit; the counter
// floors at zero.
func (s *Service) adjustUserAssignments(ctx context.Context, deltas map[string]int) {
	err := s.retry(ctx, "adjust user assignments", func(ctx context.Context) error {
		doc, version, err := docs.LoadOrInit[domain.User](ctx, s.store, docs.PathUsers)
		if err != nil {
			return err
		}

		for i, user := range doc.Items {
			delta, ok := deltas[user.ID]
			if !ok {
				delta, ok = deltas[user.Username]
			}
			if !ok {
				continue
			}
			user.CurrentAssignments += delta
			if user.CurrentAssignments < 0 {
				user.CurrentAssignments = 0
			}
			doc.Items[i] = user
		}

		_, err = docs.Save(ctx, s.store, docs.PathUsers, doc,
			"Update assignment counters", version, s.now())
		return err
	})
	if err != nil {
		s.logger.Warn("assignment counter update failed", "error", err)
	}
}
