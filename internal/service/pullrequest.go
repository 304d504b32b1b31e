package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"qaflow/internal/domain"
	"qaflow/internal/storage/docs"
)

// Merge-readiness requirement labels. Blockers are the complement of
// the met set.
const (
	reqTestsPassing = "tests-passing"
	reqNoFailures   = "no-failures"
	reqHasApproval  = "has-approval"
)

type SyncPullRequestInput struct {
	ID          string
	Name        string
	Developer   string
	Priority    string
	Status      string
	TestCaseIDs []string
}

type TestResultInput struct {
	TestCaseID string
	Branch     string
	Result     string
}

// SyncPullRequest imports pull-request metadata from the tracked
// source-control system. The import is one-way and is the only writer
// of the "closed" status.
func (s *Service) SyncPullRequest(ctx context.Context, actor string, in SyncPullRequestInput) (domain.PullRequest, error) {
	if _, err := s.authorize(ctx, actor, domain.CapPRSync); err != nil {
		return domain.PullRequest{}, err
	}
	if in.ID == "" || in.Name == "" || in.Developer == "" {
		return domain.PullRequest{}, fmt.Errorf("id, name and developer are required: %w", domain.ErrValidation)
	}
	if in.Status != "" && in.Status != string(domain.PRStatusClosed) {
		return domain.PullRequest{}, fmt.Errorf("sync may only set status %q, got %q: %w",
			domain.PRStatusClosed, in.Status, domain.ErrValidation)
	}

	var result domain.PullRequest
	err := s.retry(ctx, "sync pull request", func(ctx context.Context) error {
		doc, version, err := docs.LoadOrInit[domain.PullRequest](ctx, s.store, docs.PathPullRequests)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		idx := slices.IndexFunc(doc.Items, func(pr domain.PullRequest) bool { return pr.ID == in.ID })
		if idx < 0 {
			pr := domain.PullRequest{
				ID:        in.ID,
				Name:      in.Name,
				Developer: in.Developer,
				Priority:  in.Priority,
				Status:    domain.PRStatusNew,
				TestCases: []domain.PRTestCase{},
				CreatedAt: now,
			}
			associateTestCases(&pr, in.TestCaseIDs)
			if in.Status == string(domain.PRStatusClosed) {
				pr.Status = domain.PRStatusClosed
			} else {
				refreshDerivedState(&pr)
			}
			pr.UpdatedAt = now
			doc.Items = append(doc.Items, pr)
			result = pr
		} else {
			pr := doc.Items[idx]
			pr.Name = in.Name
			pr.Developer = in.Developer
			if in.Priority != "" {
				pr.Priority = in.Priority
			}
			associateTestCases(&pr, in.TestCaseIDs)
			if in.Status == string(domain.PRStatusClosed) {
				pr.Status = domain.PRStatusClosed
			} else if !pr.Status.Terminal() {
				refreshDerivedState(&pr)
			}
			pr.UpdatedAt = now
			doc.Items[idx] = pr
			result = pr
		}

		doc.Metadata.Statistics = recomputePullRequestStats(doc.Items)
		_, err = docs.Save(ctx, s.store, docs.PathPullRequests, doc,
			"Sync pull request "+in.ID, version, s.now())
		return err
	})
	if err != nil {
		return domain.PullRequest{}, err
	}

	s.logActivity(ctx, "pull_request", "sync", actor, "Synced pull request "+in.ID,
		map[string]string{"pr_id": in.ID})
	return result, nil
}

// IngestTestResult records a branch result for one of the pull
// request's associated test cases and re-derives the status from the
// full result set.
func (s *Service) IngestTestResult(ctx context.Context, actor, prID string, in TestResultInput) (domain.PullRequest, error) {
	if _, err := s.authorize(ctx, actor, domain.CapTestExecute); err != nil {
		return domain.PullRequest{}, err
	}
	if in.TestCaseID == "" {
		return domain.PullRequest{}, fmt.Errorf("test_case_id is required: %w", domain.ErrValidation)
	}
	if in.Branch != "feature" && in.Branch != "main" {
		return domain.PullRequest{}, fmt.Errorf("branch must be feature or main, got %q: %w", in.Branch, domain.ErrValidation)
	}
	result := domain.BranchResult(in.Result)
	switch result {
	case domain.ResultPass, domain.ResultFail, domain.ResultSkip:
	default:
		return domain.PullRequest{}, fmt.Errorf("result must be pass, fail or skip, got %q: %w", in.Result, domain.ErrValidation)
	}

	var before domain.PullRequestStatus
	pr, err := s.mutatePullRequest(ctx, "ingest test result", prID,
		fmt.Sprintf("Record %s result for %s on %s", in.Result, in.TestCaseID, prID),
		func(pr *domain.PullRequest) error {
			if pr.Status.Terminal() {
				return fmt.Errorf("pull request %s is %s: %w", prID, pr.Status, domain.ErrInvalidTransition)
			}
			before = pr.Status

			idx := slices.IndexFunc(pr.TestCases, func(tc domain.PRTestCase) bool {
				return tc.TestCaseID == in.TestCaseID
			})
			if idx < 0 {
				return fmt.Errorf("test case %s is not associated with pull request %s: %w",
					in.TestCaseID, prID, domain.ErrValidation)
			}

			if in.Branch == "feature" {
				pr.TestCases[idx].FeatureResult = result
			} else {
				pr.TestCases[idx].MainResult = result
			}
			refreshDerivedState(pr)
			return nil
		})
	if err != nil {
		return domain.PullRequest{}, err
	}

	s.logActivity(ctx, "pull_request", "test_result", actor,
		fmt.Sprintf("Recorded %s result for %s on %s", in.Result, in.TestCaseID, prID),
		map[string]string{"pr_id": prID, "test_case_id": in.TestCaseID, "branch": in.Branch})
	if pr.Status != before {
		s.emit(ctx, Event{Type: "pull_request", Action: "status_changed", EntityID: prID, Actor: actor,
			Details: map[string]string{"from": string(before), "to": string(pr.Status)}})
	}
	return pr, nil
}

// ApprovePullRequest records the actor's approval and recomputes
// merge readiness.
func (s *Service) ApprovePullRequest(ctx context.Context, actor, prID string) (domain.PullRequest, error) {
	user, err := s.authorize(ctx, actor, domain.CapPRApprove)
	if err != nil {
		return domain.PullRequest{}, err
	}

	pr, err := s.mutatePullRequest(ctx, "approve pull request", prID,
		fmt.Sprintf("Approve %s by %s", prID, user.Username),
		func(pr *domain.PullRequest) error {
			if pr.Status.Terminal() {
				return fmt.Errorf("pull request %s is %s: %w", prID, pr.Status, domain.ErrInvalidTransition)
			}
			if !slices.Contains(pr.Readiness.Approvers, user.Username) {
				pr.Readiness.Approvers = append(pr.Readiness.Approvers, user.Username)
			}
			refreshDerivedState(pr)
			return nil
		})
	if err != nil {
		return domain.PullRequest{}, err
	}

	s.logActivity(ctx, "pull_request", "approve", actor, user.Username+" approved "+prID,
		map[string]string{"pr_id": prID})
	return pr, nil
}

// MergeTests moves a ready pull request to qa-tests-merged. The QA
// tests land on the main line first, so every associated test case's
// main-branch expectation is stamped as failing until the
// implementation follows.
func (s *Service) MergeTests(ctx context.Context, actor, prID string) (domain.PullRequest, error) {
	if _, err := s.authorize(ctx, actor, domain.CapPRMerge); err != nil {
		return domain.PullRequest{}, err
	}

	pr, err := s.mutatePullRequest(ctx, "merge qa tests", prID, "Merge QA tests for "+prID,
		func(pr *domain.PullRequest) error {
			if pr.Status != domain.PRStatusReady {
				return fmt.Errorf("pull request %s is %s, not ready: %w", prID, pr.Status, domain.ErrInvalidTransition)
			}
			readiness := computeMergeReadiness(*pr)
			if !readiness.Ready {
				return fmt.Errorf("pull request %s has blockers [%s]: %w",
					prID, strings.Join(readiness.Blockers, ", "), domain.ErrInvalidTransition)
			}

			now := s.now().UTC()
			pr.Status = domain.PRStatusQATestsMerged
			pr.QAMergedAt = &now
			for i := range pr.TestCases {
				pr.TestCases[i].MainResult = domain.ResultFail
			}
			pr.MainBranch = mainBranchCounts(pr.TestCases)
			pr.Readiness = computeMergeReadiness(*pr)
			return nil
		})
	if err != nil {
		return domain.PullRequest{}, err
	}

	s.logActivity(ctx, "pull_request", "merge_tests", actor, "QA tests merged for "+prID,
		map[string]string{"pr_id": prID})
	s.emit(ctx, Event{Type: "pull_request", Action: "qa_tests_merged", EntityID: prID, Actor: actor})
	return pr, nil
}

// MergeDev completes the fail-first cycle: the implementation is on
// the main line, so every main-branch expectation flips to passing.
func (s *Service) MergeDev(ctx context.Context, actor, prID string) (domain.PullRequest, error) {
	if _, err := s.authorize(ctx, actor, domain.CapPRMerge); err != nil {
		return domain.PullRequest{}, err
	}

	pr, err := s.mutatePullRequest(ctx, "merge dev", prID, "Merge implementation for "+prID,
		func(pr *domain.PullRequest) error {
			if pr.Status != domain.PRStatusQATestsMerged {
				return fmt.Errorf("pull request %s is %s, not %s: %w",
					prID, pr.Status, domain.PRStatusQATestsMerged, domain.ErrInvalidTransition)
			}

			now := s.now().UTC()
			pr.Status = domain.PRStatusFullyMerged
			pr.FullyMergedAt = &now
			for i := range pr.TestCases {
				pr.TestCases[i].MainResult = domain.ResultPass
			}
			pr.MainBranch = mainBranchCounts(pr.TestCases)
			return nil
		})
	if err != nil {
		return domain.PullRequest{}, err
	}

	s.logActivity(ctx, "pull_request", "merge_dev", actor, "Implementation merged for "+prID,
		map[string]string{"pr_id": prID})
	s.emit(ctx, Event{Type: "pull_request", Action: "fully_merged", EntityID: prID, Actor: actor})
	return pr, nil
}

// BlockPullRequest parks the pull request with a required reason. The
// previous status is kept so an unblock can restore it.
func (s *Service) BlockPullRequest(ctx context.Context, actor, prID, reason string) (domain.PullRequest, error) {
	if _, err := s.authorize(ctx, actor, domain.CapPRBlock); err != nil {
		return domain.PullRequest{}, err
	}
	if reason == "" {
		return domain.PullRequest{}, fmt.Errorf("a block reason is required: %w", domain.ErrValidation)
	}

	pr, err := s.mutatePullRequest(ctx, "block pull request", prID, "Block "+prID,
		func(pr *domain.PullRequest) error {
			if pr.Status.Terminal() {
				return fmt.Errorf("pull request %s is %s: %w", prID, pr.Status, domain.ErrInvalidTransition)
			}
			if pr.Status != domain.PRStatusBlocked {
				pr.PreviousStatus = pr.Status
			}
			pr.Status = domain.PRStatusBlocked
			pr.BlockedReason = reason
			return nil
		})
	if err != nil {
		return domain.PullRequest{}, err
	}

	s.logActivity(ctx, "pull_request", "block", actor, "Blocked "+prID+": "+reason,
		map[string]string{"pr_id": prID, "reason": reason})
	return pr, nil
}

// UnblockPullRequest clears the block reason, restores the status the
// pull request held before the block, then re-derives it from the
// current results.
func (s *Service) UnblockPullRequest(ctx context.Context, actor, prID string) (domain.PullRequest, error) {
	if _, err := s.authorize(ctx, actor, domain.CapPRBlock); err != nil {
		return domain.PullRequest{}, err
	}

	pr, err := s.mutatePullRequest(ctx, "unblock pull request", prID, "Unblock "+prID,
		func(pr *domain.PullRequest) error {
			if pr.Status != domain.PRStatusBlocked {
				return fmt.Errorf("pull request %s is %s, not blocked: %w", prID, pr.Status, domain.ErrInvalidTransition)
			}
			pr.BlockedReason = ""
			if pr.PreviousStatus != "" {
				pr.Status = pr.PreviousStatus
				pr.PreviousStatus = ""
			} else {
				pr.Status = domain.PRStatusTesting
			}
			if !pr.Status.Terminal() && pr.Status != domain.PRStatusQATestsMerged {
				refreshDerivedState(pr)
			}
			return nil
		})
	if err != nil {
		return domain.PullRequest{}, err
	}

	s.logActivity(ctx, "pull_request", "unblock", actor, "Unblocked "+prID,
		map[string]string{"pr_id": prID})
	return pr, nil
}

// RejectPullRequest sends the pull request back to testing: the
// acting approver's approval is withdrawn, the ready flag cleared and
// a rejection blocker appended.
func (s *Service) RejectPullRequest(ctx context.Context, actor, prID string) (domain.PullRequest, error) {
	user, err := s.authorize(ctx, actor, domain.CapPRApprove)
	if err != nil {
		return domain.PullRequest{}, err
	}

	pr, err := s.mutatePullRequest(ctx, "reject pull request", prID,
		fmt.Sprintf("Reject %s by %s", prID, user.Username),
		func(pr *domain.PullRequest) error {
			if pr.Status.Terminal() {
				return fmt.Errorf("pull request %s is %s: %w", prID, pr.Status, domain.ErrInvalidTransition)
			}
			pr.Status = domain.PRStatusTesting
			pr.Readiness.Approvers = slices.DeleteFunc(pr.Readiness.Approvers, func(a string) bool {
				return a == user.Username || a == user.ID
			})
			pr.Readiness = computeMergeReadiness(*pr)
			pr.Readiness.Ready = false
			pr.Readiness.Blockers = append(pr.Readiness.Blockers, "rejected by "+user.Username)
			return nil
		})
	if err != nil {
		return domain.PullRequest{}, err
	}

	s.logActivity(ctx, "pull_request", "reject", actor, user.Username+" rejected "+prID,
		map[string]string{"pr_id": prID})
	return pr, nil
}

func (s *Service) GetPullRequest(ctx context.Context, prID string) (domain.PullRequest, error) {
	doc, _, err := docs.LoadOrInit[domain.PullRequest](ctx, s.store, docs.PathPullRequests)
	if err != nil {
		return domain.PullRequest{}, err
	}
	for _, pr := range doc.Items {
		if pr.ID == prID {
			return pr, nil
		}
	}
	return domain.PullRequest{}, fmt.Errorf("pull request %s: %w", prID, domain.ErrNotFound)
}

func (s *Service) ListPullRequests(ctx context.Context) ([]domain.PullRequest, domain.PullRequestStats, error) {
	doc, _, err := docs.LoadOrInit[domain.PullRequest](ctx, s.store, docs.PathPullRequests)
	if err != nil {
		return nil, domain.PullRequestStats{}, err
	}
	return doc.Items, recomputePullRequestStats(doc.Items), nil
}

// mutatePullRequest is the shared read-compute-write unit for
// single-PR mutations: load the document, apply the mutation, restamp
// and recompute statistics, write against the version just read.
func (s *Service) mutatePullRequest(ctx context.Context, op, prID, message string, mutate func(*domain.PullRequest) error) (domain.PullRequest, error) {
	var result domain.PullRequest
	err := s.retry(ctx, op, func(ctx context.Context) error {
		doc, version, err := docs.LoadOrInit[domain.PullRequest](ctx, s.store, docs.PathPullRequests)
		if err != nil {
			return err
		}

		idx := slices.IndexFunc(doc.Items, func(pr domain.PullRequest) bool { return pr.ID == prID })
		if idx < 0 {
			return fmt.Errorf("pull request %s: %w", prID, domain.ErrNotFound)
		}

		pr := doc.Items[idx]
		if err := mutate(&pr); err != nil {
			return err
		}
		pr.UpdatedAt = s.now().UTC()
		doc.Items[idx] = pr

		doc.Metadata.Statistics = recomputePullRequestStats(doc.Items)
		if _, err := docs.Save(ctx, s.store, docs.PathPullRequests, doc, message, version, s.now()); err != nil {
			return err
		}
		result = pr
		return nil
	})
	return result, err
}

// applyFeatureResult is the secondary-document half of an assignment
// completion: the pull request's feature-branch result for the test
// case is updated so the derived status tracks execution outcomes.
// Best-effort; the assignment write already succeeded.
func (s *Service) applyFeatureResult(ctx context.Context, actor, prID, testCaseID string, result domain.BranchResult) {
	_, err := s.mutatePullRequest(ctx, "apply feature result", prID,
		fmt.Sprintf("Record %s result for %s on %s", result, testCaseID, prID),
		func(pr *domain.PullRequest) error {
			if pr.Status.Terminal() {
				return fmt.Errorf("pull request %s is %s: %w", prID, pr.Status, domain.ErrInvalidTransition)
			}
			idx := slices.IndexFunc(pr.TestCases, func(tc domain.PRTestCase) bool {
				return tc.TestCaseID == testCaseID
			})
			if idx < 0 {
				return fmt.Errorf("test case %s is not associated with pull request %s: %w",
					testCaseID, prID, domain.ErrValidation)
			}
			pr.TestCases[idx].FeatureResult = result
			refreshDerivedState(pr)
			return nil
		})
	if err != nil {
		s.logger.Warn("feature result propagation failed",
			"pr_id", prID, "test_case_id", testCaseID, "actor", actor, "error", err)
	}
}

// associateTestCases adds new associations while keeping results of
// existing ones.
func associateTestCases(pr *domain.PullRequest, testCaseIDs []string) {
	for _, id := range testCaseIDs {
		if id == "" {
			continue
		}
		exists := slices.ContainsFunc(pr.TestCases, func(tc domain.PRTestCase) bool {
			return tc.TestCaseID == id
		})
		if !exists {
			pr.TestCases = append(pr.TestCases, domain.PRTestCase{TestCaseID: id})
		}
	}
}

// refreshDerivedState recomputes branch counts, status and merge
// readiness from the raw results. The stored status field is never
// trusted as free-standing truth for the derivable states.
func refreshDerivedState(pr *domain.PullRequest) {
	pr.FeatureBranch = featureBranchCounts(pr.TestCases)
	pr.MainBranch = mainBranchCounts(pr.TestCases)
	pr.Status = derivePullRequestStatus(*pr)
	pr.Readiness = computeMergeReadiness(*pr)
}

// derivePullRequestStatus computes the lifecycle status from the
// feature-branch results. Statuses past ready, the external closed
// state and a manual block stick; everything else derives.
func derivePullRequestStatus(pr domain.PullRequest) domain.PullRequestStatus {
	switch pr.Status {
	case domain.PRStatusQATestsMerged, domain.PRStatusFullyMerged, domain.PRStatusClosed:
		return pr.Status
	}
	if pr.BlockedReason != "" {
		return domain.PRStatusBlocked
	}
	if len(pr.TestCases) == 0 {
		return domain.PRStatusNew
	}

	counts := featureBranchCounts(pr.TestCases)
	switch {
	case counts.Failed > 0:
		return domain.PRStatusBlocked
	case counts.Passed == len(pr.TestCases):
		return domain.PRStatusReady
	default:
		return domain.PRStatusTesting
	}
}

// computeMergeReadiness recomputes the blocker list as the complement
// of the met requirements. The approver list is carried over.
func computeMergeReadiness(pr domain.PullRequest) domain.MergeReadiness {
	counts := featureBranchCounts(pr.TestCases)

	readiness := domain.MergeReadiness{
		RequirementsMet: []string{},
		Blockers:        []string{},
		Approvers:       pr.Readiness.Approvers,
	}
	if readiness.Approvers == nil {
		readiness.Approvers = []string{}
	}

	if counts.Passed > 0 {
		readiness.RequirementsMet = append(readiness.RequirementsMet, reqTestsPassing)
	} else {
		readiness.Blockers = append(readiness.Blockers, reqTestsPassing)
	}
	if counts.Failed == 0 {
		readiness.RequirementsMet = append(readiness.RequirementsMet, reqNoFailures)
	} else {
		readiness.Blockers = append(readiness.Blockers, reqNoFailures)
	}
	if len(readiness.Approvers) > 0 {
		readiness.RequirementsMet = append(readiness.RequirementsMet, reqHasApproval)
	} else {
		readiness.Blockers = append(readiness.Blockers, reqHasApproval)
	}

	readiness.Ready = len(readiness.Blockers) == 0
	return readiness
}

func featureBranchCounts(cases []domain.PRTestCase) domain.BranchCounts {
	var counts domain.BranchCounts
	for _, tc := range cases {
		switch tc.FeatureResult {
		case domain.ResultPass:
			counts.Passed++
		case domain.ResultFail:
			counts.Failed++
		case domain.ResultSkip:
			counts.Skipped++
		}
	}
	return counts
}

func mainBranchCounts(cases []domain.PRTestCase) domain.BranchCounts {
	var counts domain.BranchCounts
	for _, tc := range cases {
		switch tc.MainResult {
		case domain.ResultPass:
			counts.Passed++
		case domain.ResultFail:
			counts.Failed++
		case domain.ResultSkip:
			counts.Skipped++
		}
	}
	return counts
}
