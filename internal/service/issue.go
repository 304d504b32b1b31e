package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"qaflow/internal/domain"
	"qaflow/internal/storage/docs"
)

// EscalateIssue raises the escalation level by one. The level never
// decreases.
func (s *Service) EscalateIssue(ctx context.Context, actor, issueID, message string) (domain.Issue, error) {
	if _, err := s.authorize(ctx, actor, domain.CapIssueEscalate); err != nil {
		return domain.Issue{}, err
	}

	issue, err := s.mutateIssue(ctx, "escalate issue", issueID, "Escalate issue "+issueID,
		func(issue *domain.Issue) error {
			if issue.Status == domain.IssueResolved {
				return fmt.Errorf("issue %s is resolved: %w", issueID, domain.ErrInvalidTransition)
			}
			issue.EscalationLevel++
			issue.Updates = append(issue.Updates, domain.IssueUpdate{
				Timestamp: s.now().UTC(),
				Actor:     actor,
				Message:   fmt.Sprintf("escalated to level %d: %s", issue.EscalationLevel, message),
			})
			return nil
		})
	if err != nil {
		return domain.Issue{}, err
	}

	s.logActivity(ctx, "issue", "escalate", actor,
		fmt.Sprintf("Escalated issue %s to level %d", issueID, issue.EscalationLevel),
		map[string]string{"issue_id": issueID})
	s.emit(ctx, Event{Type: "issue", Action: "escalated", EntityID: issueID, Actor: actor,
		Details: map[string]string{"level": fmt.Sprintf("%d", issue.EscalationLevel)}})
	return issue, nil
}

func (s *Service) ResolveIssue(ctx context.Context, actor, issueID, message string) (domain.Issue, error) {
	if _, err := s.authorize(ctx, actor, domain.CapIssueReport); err != nil {
		return domain.Issue{}, err
	}

	issue, err := s.mutateIssue(ctx, "resolve issue", issueID, "Resolve issue "+issueID,
		func(issue *domain.Issue) error {
			if issue.Status == domain.IssueResolved {
				return fmt.Errorf("issue %s is already resolved: %w", issueID, domain.ErrInvalidTransition)
			}
			issue.Status = domain.IssueResolved
			issue.Updates = append(issue.Updates, domain.IssueUpdate{
				Timestamp: s.now().UTC(),
				Actor:     actor,
				Message:   "resolved: " + message,
			})
			return nil
		})
	if err != nil {
		return domain.Issue{}, err
	}

	s.logActivity(ctx, "issue", "resolve", actor, "Resolved issue "+issueID,
		map[string]string{"issue_id": issueID})
	return issue, nil
}

func (s *Service) ListIssues(ctx context.Context) ([]domain.Issue, error) {
	doc, _, err := docs.LoadOrInit[domain.Issue](ctx, s.store, docs.PathIssues)
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}

func (s *Service) mutateIssue(ctx context.Context, op, issueID, message string, mutate func(*domain.Issue) error) (domain.Issue, error) {
	var result domain.Issue
	err := s.retry(ctx, op, func(ctx context.Context) error {
		doc, version, err := docs.LoadOrInit[domain.Issue](ctx, s.store, docs.PathIssues)
		if err != nil {
			return err
		}

		idx := slices.IndexFunc(doc.Items, func(issue domain.Issue) bool { return issue.ID == issueID })
		if idx < 0 {
			return fmt.Errorf("issue %s: %w", issueID, domain.ErrNotFound)
		}

		issue := doc.Items[idx]
		if err := mutate(&issue); err != nil {
			return err
		}
		issue.UpdatedAt = s.now().UTC()
		doc.Items[idx] = issue

		if _, err := docs.Save(ctx, s.store, docs.PathIssues, doc, message, version, s.now()); err != nil {
			return err
		}
		result = issue
		return nil
	})
	return result, err
}

// reportIssue creates the issue emitted by a blocked assignment.
// Secondary document: best-effort, starts at escalation level 0.
func (s *Service) reportIssue(ctx context.Context, actor string, a domain.TestAssignment, severity, message string) {
	if severity == "" {
		severity = "medium"
	}
	if message == "" {
		message = "assignment blocked"
	}

	err := s.retry(ctx, "report issue", func(ctx context.Context) error {
		doc, version, err := docs.LoadOrInit[domain.Issue](ctx, s.store, docs.PathIssues)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		doc.Items = append(doc.Items, domain.Issue{
			ID:              uuid.NewString(),
			PRID:            a.PRID,
			TestCaseID:      a.TestCaseID,
			Severity:        severity,
			EscalationLevel: 0,
			Status:          domain.IssueOpen,
			Updates: []domain.IssueUpdate{{
				Timestamp: now,
				Actor:     actor,
				Message:   message,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		})

		_, err = docs.Save(ctx, s.store, docs.PathIssues, doc,
			"Report issue for "+a.TestCaseID, version, s.now())
		return err
	})
	if err != nil {
		s.logger.Warn("issue report failed",
			"assignment_id", a.ID, "severity", severity, "error", err)
	}
}
