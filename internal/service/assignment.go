package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"qaflow/internal/domain"
	"qaflow/internal/storage/docs"
)

// Progress actions accepted by UpdateProgress.
const (
	ActionStart          = "start"
	ActionUpdateProgress = "update_progress"
	ActionComplete       = "complete"
	ActionFail           = "fail"
	ActionPause          = "pause"
	ActionBlock          = "block"
)

type AssignInput struct {
	TestCaseID string
	PRID       string
	AssignedTo string
	DueDate    *time.Time
}

type ProgressInput struct {
	Action      string
	Progress    *int
	Message     string
	ReportIssue bool
	Severity    string
}

// Assign binds a tester to a test case for a pull request. At most
// one non-terminal assignment may exist per (pr, test case) pair: an
// existing active assignment is updated in place instead of a second
// one being created. The assignee's workload cap is re-validated
// against a fresh users snapshot on every attempt of the unit.
func (s *Service) Assign(ctx context.Context, actor string, in AssignInput) (domain.TestAssignment, error) {
	if _, err := s.authorize(ctx, actor, domain.CapTestAssign); err != nil {
		return domain.TestAssignment{}, err
	}
	if in.TestCaseID == "" || in.PRID == "" || in.AssignedTo == "" {
		return domain.TestAssignment{}, fmt.Errorf("test_case_id, pr_id and assigned_to are required: %w", domain.ErrValidation)
	}

	if err := s.verifyTestCaseExists(ctx, in.TestCaseID); err != nil {
		return domain.TestAssignment{}, err
	}
	if _, err := s.GetPullRequest(ctx, in.PRID); err != nil {
		return domain.TestAssignment{}, err
	}

	var (
		result      domain.TestAssignment
		oldAssignee string
	)
	err := s.retry(ctx, "assign test case", func(ctx context.Context) error {
		oldAssignee = ""

		doc, version, err := docs.LoadOrInit[domain.TestAssignment](ctx, s.store, docs.PathAssignments)
		if err != nil {
			return err
		}

		idx := slices.IndexFunc(doc.Items, func(a domain.TestAssignment) bool {
			return a.PRID == in.PRID && a.TestCaseID == in.TestCaseID && !a.Status.Terminal()
		})

		sameAssignee := idx >= 0 && doc.Items[idx].AssignedTo == in.AssignedTo
		if !sameAssignee {
			// Capacity is checked inside the unit so a retry sees the
			// counter another writer may just have bumped.
			assignee, err := s.findUser(ctx, in.AssignedTo)
			if err != nil {
				return err
			}
			if assignee.CurrentAssignments >= assignee.MaxAssignments {
				return fmt.Errorf("user %s holds %d of %d assignments: %w",
					in.AssignedTo, assignee.CurrentAssignments, assignee.MaxAssignments, domain.ErrCapacityExceeded)
			}
		}

		now := s.now().UTC()
		if idx >= 0 {
			a := doc.Items[idx]
			oldAssignee = a.AssignedTo
			a.AssignedTo = in.AssignedTo
			a.Status = domain.AssignmentAssigned
			if in.DueDate != nil {
				a.DueDate = in.DueDate
			}
			a.Updates = append(a.Updates, domain.ProgressUpdate{
				Timestamp: now,
				Actor:     actor,
				Message:   fmt.Sprintf("reassigned to %s", in.AssignedTo),
				Progress:  a.Progress,
			})
			a.UpdatedAt = now
			doc.Items[idx] = a
			result = a
		} else {
			a := domain.TestAssignment{
				ID:         uuid.NewString(),
				PRID:       in.PRID,
				TestCaseID: in.TestCaseID,
				AssignedTo: in.AssignedTo,
				Status:     domain.AssignmentAssigned,
				DueDate:    in.DueDate,
				Progress:   0,
				Updates: []domain.ProgressUpdate{{
					Timestamp: now,
					Actor:     actor,
					Message:   fmt.Sprintf("assigned to %s", in.AssignedTo),
					Progress:  0,
				}},
				CreatedAt: now,
				UpdatedAt: now,
			}
			doc.Items = append(doc.Items, a)
			result = a
		}

		doc.Metadata.Statistics = recomputeAssignmentStats(doc.Items, s.now().UTC())
		_, err = docs.Save(ctx, s.store, docs.PathAssignments, doc,
			fmt.Sprintf("Assign %s to %s for %s", in.TestCaseID, in.AssignedTo, in.PRID), version, s.now())
		return err
	})
	if err != nil {
		return domain.TestAssignment{}, err
	}

	if oldAssignee != in.AssignedTo {
		deltas := map[string]int{in.AssignedTo: +1}
		if oldAssignee != "" {
			deltas[oldAssignee] = -1
		}
		s.adjustUserAssignments(ctx, deltas)
	}

	s.logActivity(ctx, "assignment", "assign", actor,
		fmt.Sprintf("Assigned %s to %s for %s", in.TestCaseID, in.AssignedTo, in.PRID),
		map[string]string{"assignment_id": result.ID, "pr_id": in.PRID, "test_case_id": in.TestCaseID})
	s.emit(ctx, Event{Type: "assignment", Action: "assigned", EntityID: result.ID, Actor: actor,
		Details: map[string]string{"assigned_to": in.AssignedTo}})
	return result, nil
}

// UpdateProgress drives the assignment through its lifecycle. Only
// the assignee or a senior role (lead, admin) may act; the check
// happens before any mutation. Every action appends to the
// assignment's append-only update log.
func (s *Service) UpdateProgress(ctx context.Context, actor, assignmentID string, in ProgressInput) (domain.TestAssignment, error) {
	user, err := s.resolveActor(ctx, actor)
	if err != nil {
		return domain.TestAssignment{}, err
	}

	var result domain.TestAssignment
	err = s.retry(ctx, "update assignment progress", func(ctx context.Context) error {
		doc, version, err := docs.LoadOrInit[domain.TestAssignment](ctx, s.store, docs.PathAssignments)
		if err != nil {
			return err
		}

		idx := slices.IndexFunc(doc.Items, func(a domain.TestAssignment) bool { return a.ID == assignmentID })
		if idx < 0 {
			return fmt.Errorf("assignment %s: %w", assignmentID, domain.ErrNotFound)
		}

		a := doc.Items[idx]
		if !isUser(user, a.AssignedTo) && !user.Role.Senior() {
			return fmt.Errorf("actor %s is not the assignee of %s: %w", actor, assignmentID, domain.ErrPermissionDenied)
		}

		now := s.now().UTC()
		if err := applyProgressAction(&a, in, now); err != nil {
			return err
		}

		message := in.Message
		if message == "" {
			message = in.Action
		}
		a.Updates = append(a.Updates, domain.ProgressUpdate{
			Timestamp: now,
			Actor:     actor,
			Message:   message,
			Progress:  a.Progress,
		})
		a.UpdatedAt = now
		doc.Items[idx] = a

		doc.Metadata.Statistics = recomputeAssignmentStats(doc.Items, s.now().UTC())
		if _, err := docs.Save(ctx, s.store, docs.PathAssignments, doc,
			fmt.Sprintf("Progress %s on %s", in.Action, assignmentID), version, s.now()); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return domain.TestAssignment{}, err
	}

	switch in.Action {
	case ActionComplete, ActionFail:
		status := domain.TestResultPassed
		if in.Action == ActionFail {
			status = domain.TestResultFailed
		}
		s.appendTestResult(ctx, result, actor, status, in.Message)
		s.adjustUserAssignments(ctx, map[string]int{result.AssignedTo: -1})

		branchResult := domain.ResultPass
		if in.Action == ActionFail {
			branchResult = domain.ResultFail
		}
		s.applyFeatureResult(ctx, actor, result.PRID, result.TestCaseID, branchResult)

		s.emit(ctx, Event{Type: "assignment", Action: string(result.Status), EntityID: result.ID, Actor: actor,
			Details: map[string]string{"pr_id": result.PRID, "test_case_id": result.TestCaseID}})
	case ActionBlock:
		if in.ReportIssue {
			s.reportIssue(ctx, actor, result, in.Severity, in.Message)
		}
	}

	s.logActivity(ctx, "assignment", in.Action, actor,
		fmt.Sprintf("%s on assignment %s", in.Action, assignmentID),
		map[string]string{"assignment_id": assignmentID})
	return result, nil
}

func (s *Service) ListAssignments(ctx context.Context) ([]domain.TestAssignment, domain.AssignmentStats, error) {
	doc, _, err := docs.LoadOrInit[domain.TestAssignment](ctx, s.store, docs.PathAssignments)
	if err != nil {
		return nil, domain.AssignmentStats{}, err
	}
	return doc.Items, recomputeAssignmentStats(doc.Items, s.now().UTC()), nil
}

// applyProgressAction is the assignment state machine:
// assigned → in_progress → {completed | failed | blocked}, with pause
// returning to assigned and block legal from any non-terminal state.
func applyProgressAction(a *domain.TestAssignment, in ProgressInput, now time.Time) error {
	switch in.Action {
	case ActionStart:
		if a.Status != domain.AssignmentAssigned {
			return transitionError(a, in.Action)
		}
		a.Status = domain.AssignmentInProgress
		if a.Progress < 10 {
			a.Progress = 10
		}

	case ActionUpdateProgress:
		if a.Status != domain.AssignmentInProgress {
			return transitionError(a, in.Action)
		}
		if in.Progress == nil {
			return fmt.Errorf("progress value is required: %w", domain.ErrValidation)
		}
		a.Progress = clampProgress(*in.Progress)

	case ActionComplete:
		if a.Status != domain.AssignmentInProgress {
			return transitionError(a, in.Action)
		}
		a.Status = domain.AssignmentCompleted
		a.Progress = 100
		a.CompletedAt = &now

	case ActionFail:
		if a.Status != domain.AssignmentInProgress {
			return transitionError(a, in.Action)
		}
		a.Status = domain.AssignmentFailed
		a.CompletedAt = &now

	case ActionPause:
		if a.Status != domain.AssignmentInProgress && a.Status != domain.AssignmentBlocked {
			return transitionError(a, in.Action)
		}
		a.Status = domain.AssignmentAssigned

	case ActionBlock:
		if a.Status.Terminal() {
			return transitionError(a, in.Action)
		}
		a.Status = domain.AssignmentBlocked

	default:
		return fmt.Errorf("unknown action %q: %w", in.Action, domain.ErrValidation)
	}
	return nil
}

func transitionError(a *domain.TestAssignment, action string) error {
	return fmt.Errorf("action %s is not legal from status %s: %w", action, a.Status, domain.ErrInvalidTransition)
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// appendTestResult writes the derived execution record. Secondary
// document: best-effort, failure logged and swallowed.
func (s *Service) appendTestResult(ctx context.Context, a domain.TestAssignment, actor string, status domain.TestResultStatus, notes string) {
	err := s.retry(ctx, "append test result", func(ctx context.Context) error {
		doc, version, err := docs.LoadOrInit[domain.TestResult](ctx, s.store, docs.PathTestResults)
		if err != nil {
			return err
		}

		doc.Items = append(doc.Items, domain.TestResult{
			ID:           uuid.NewString(),
			PRID:         a.PRID,
			TestCaseID:   a.TestCaseID,
			AssignmentID: a.ID,
			Status:       status,
			ExecutedBy:   actor,
			ExecutedAt:   s.now().UTC(),
			Notes:        notes,
		})

		_, err = docs.Save(ctx, s.store, docs.PathTestResults, doc,
			fmt.Sprintf("Record %s result for %s", status, a.TestCaseID), version, s.now())
		return err
	})
	if err != nil {
		s.logger.Warn("test result write failed",
			"assignment_id", a.ID, "status", status, "error", err)
	}
}

// findUser reads the users document and resolves an id or username.
func (s *Service) findUser(ctx context.Context, id string) (domain.User, error) {
	doc, _, err := docs.LoadOrInit[domain.User](ctx, s.store, docs.PathUsers)
	if err != nil {
		return domain.User{}, err
	}
	for _, user := range doc.Items {
		if isUser(user, id) {
			return user, nil
		}
	}
	return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
}

func (s *Service) verifyTestCaseExists(ctx context.Context, id string) error {
	doc, _, err := docs.LoadOrInit[domain.TestCase](ctx, s.store, docs.PathTestCases)
	if err != nil {
		return err
	}
	for _, tc := range doc.Items {
		if tc.ID == id {
			return nil
		}
	}
	return fmt.Errorf("test case %s: %w", id, domain.ErrNotFound)
}
