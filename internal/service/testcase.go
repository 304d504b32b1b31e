package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"qaflow/internal/domain"
	"qaflow/internal/storage/docs"
)

type TestCaseInput struct {
	ID               string
	Name             string
	Tags             []string
	Intent           string
	Steps            []domain.BDDStep
	ExpectedDuration int
	Custom           bool
}

func (s *Service) CreateTestCase(ctx context.Context, actor string, in TestCaseInput) (domain.TestCase, error) {
	user, err := s.authorize(ctx, actor, domain.CapTestAuthor)
	if err != nil {
		return domain.TestCase{}, err
	}
	if in.Name == "" {
		return domain.TestCase{}, fmt.Errorf("name is required: %w", domain.ErrValidation)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	var result domain.TestCase
	err = s.retry(ctx, "create test case", func(ctx context.Context) error {
		doc, version, err := docs.LoadOrInit[domain.TestCase](ctx, s.store, docs.PathTestCases)
		if err != nil {
			return err
		}

		exists := slices.ContainsFunc(doc.Items, func(tc domain.TestCase) bool { return tc.ID == id })
		if exists {
			return fmt.Errorf("test case %s already exists: %w", id, domain.ErrValidation)
		}

		now := s.now().UTC()
		tc := domain.TestCase{
			ID:               id,
			Name:             in.Name,
			Tags:             normalizeTags(in.Tags),
			Intent:           in.Intent,
			Steps:            in.Steps,
			ExpectedDuration: in.ExpectedDuration,
			Author:           user.Username,
			Custom:           in.Custom,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if tc.Steps == nil {
			tc.Steps = []domain.BDDStep{}
		}
		doc.Items = append(doc.Items, tc)

		_, err = docs.Save(ctx, s.store, docs.PathTestCases, doc,
			"Create test case "+in.Name, version, s.now())
		if err != nil {
			return err
		}
		result = tc
		return nil
	})
	if err != nil {
		return domain.TestCase{}, err
	}

	s.logActivity(ctx, "test_case", "create", actor, "Created test case "+in.Name,
		map[string]string{"test_case_id": id})
	return result, nil
}

func (s *Service) UpdateTestCase(ctx context.Context, actor, id string, in TestCaseInput) (domain.TestCase, error) {
	if _, err := s.authorize(ctx, actor, domain.CapTestAuthor); err != nil {
		return domain.TestCase{}, err
	}

	var result domain.TestCase
	err := s.retry(ctx, "update test case", func(ctx context.Context) error {
		doc, version, err := docs.LoadOrInit[domain.TestCase](ctx, s.store, docs.PathTestCases)
		if err != nil {
			return err
		}

		idx := slices.IndexFunc(doc.Items, func(tc domain.TestCase) bool { return tc.ID == id })
		if idx < 0 {
			return fmt.Errorf("test case %s: %w", id, domain.ErrNotFound)
		}

		tc := doc.Items[idx]
		if in.Name != "" {
			tc.Name = in.Name
		}
		if in.Tags != nil {
			tc.Tags = normalizeTags(in.Tags)
		}
		if in.Intent != "" {
			tc.Intent = in.Intent
		}
		if in.Steps != nil {
			tc.Steps = in.Steps
		}
		if in.ExpectedDuration > 0 {
			tc.ExpectedDuration = in.ExpectedDuration
		}
		tc.UpdatedAt = s.now().UTC()
		doc.Items[idx] = tc

		_, err = docs.Save(ctx, s.store, docs.PathTestCases, doc,
			"Update test case "+id, version, s.now())
		if err != nil {
			return err
		}
		result = tc
		return nil
	})
	if err != nil {
		return domain.TestCase{}, err
	}

	s.logActivity(ctx, "test_case", "update", actor, "Updated test case "+id,
		map[string]string{"test_case_id": id})
	return result, nil
}

// DeleteTestCase removes a test case. Refused while any non-terminal
// assignment still references it.
func (s *Service) DeleteTestCase(ctx context.Context, actor, id string) error {
	if _, err := s.authorize(ctx, actor, domain.CapTestAuthor); err != nil {
		return err
	}

	assignments, _, err := docs.LoadOrInit[domain.TestAssignment](ctx, s.store, docs.PathAssignments)
	if err != nil {
		return err
	}
	for _, a := range assignments.Items {
		if a.TestCaseID == id && !a.Status.Terminal() {
			return fmt.Errorf("test case %s has assignment %s in status %s: %w",
				id, a.ID, a.Status, domain.ErrActiveAssignments)
		}
	}

	err = s.retry(ctx, "delete test case", func(ctx context.Context) error {
		doc, version, err := docs.LoadOrInit[domain.TestCase](ctx, s.store, docs.PathTestCases)
		if err != nil {
			return err
		}

		idx := slices.IndexFunc(doc.Items, func(tc domain.TestCase) bool { return tc.ID == id })
		if idx < 0 {
			return fmt.Errorf("test case %s: %w", id, domain.ErrNotFound)
		}
		doc.Items = slices.Delete(doc.Items, idx, idx+1)

		_, err = docs.Save(ctx, s.store, docs.PathTestCases, doc,
			"Delete test case "+id, version, s.now())
		return err
	})
	if err != nil {
		return err
	}

	s.logActivity(ctx, "test_case", "delete", actor, "Deleted test case "+id,
		map[string]string{"test_case_id": id})
	return nil
}

func (s *Service) ListTestCases(ctx context.Context) ([]domain.TestCase, error) {
	doc, _, err := docs.LoadOrInit[domain.TestCase](ctx, s.store, docs.PathTestCases)
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}

// normalizeTags lowercases, trims, dedupes and sorts.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}
