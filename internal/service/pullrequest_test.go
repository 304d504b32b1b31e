package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"qaflow/internal/domain"
	"qaflow/internal/storage/docs"
	"qaflow/internal/testutil"
)

// syncPR creates a pull request with two associated test cases via the
// import path, the only way one comes into existence.
func syncPR(t *testing.T, svc *Service, id string) domain.PullRequest {
	t.Helper()
	pr, err := svc.SyncPullRequest(context.Background(), "admin", SyncPullRequestInput{
		ID:          id,
		Name:        "feature " + id,
		Developer:   "dev",
		Priority:    "high",
		TestCaseIDs: []string{"tc1", "tc2"},
	})
	require.NoError(t, err)
	return pr
}

func ingest(t *testing.T, svc *Service, prID, tcID, result string) domain.PullRequest {
	t.Helper()
	pr, err := svc.IngestTestResult(context.Background(), "alice", prID, TestResultInput{
		TestCaseID: tcID,
		Branch:     "feature",
		Result:     result,
	})
	require.NoError(t, err)
	return pr
}

func TestService_SyncPullRequest_CreatesNew(t *testing.T) {
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, _ := newTestService(t, store)

	pr := syncPR(t, svc, "pr1")

	assert.Equal(t, domain.PRStatusTesting, pr.Status)
	assert.Len(t, pr.TestCases, 2)
	assert.False(t, pr.Readiness.Ready)
	assert.Contains(t, pr.Readiness.Blockers, "tests-passing")
	assert.Contains(t, pr.Readiness.Blockers, "has-approval")
	assert.Contains(t, pr.Readiness.RequirementsMet, "no-failures")
}

func TestService_SyncPullRequest_UpdateKeepsResults(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, _ := newTestService(t, store)

	syncPR(t, svc, "pr1")
	ingest(t, svc, "pr1", "tc1", "pass")

	pr, err := svc.SyncPullRequest(ctx, "admin", SyncPullRequestInput{
		ID:          "pr1",
		Name:        "renamed",
		Developer:   "dev",
		TestCaseIDs: []string{"tc1", "tc2", "tc3"},
	})
	require.NoError(t, err)

	assert.Equal(t, "renamed", pr.Name)
	assert.Len(t, pr.TestCases, 3)
	assert.Equal(t, domain.ResultPass, pr.TestCases[0].FeatureResult)
}

func TestService_SyncPullRequest_OnlyClosedStatusAccepted(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, _ := newTestService(t, store)

	_, err := svc.SyncPullRequest(ctx, "admin", SyncPullRequestInput{
		ID: "pr1", Name: "n", Developer: "dev", Status: "ready",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	pr, err := svc.SyncPullRequest(ctx, "admin", SyncPullRequestInput{
		ID: "pr1", Name: "n", Developer: "dev", Status: "closed",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PRStatusClosed, pr.Status)

	// Closed is terminal; no further lifecycle action may touch it.
	_, err = svc.BlockPullRequest(ctx, "lead", "pr1", "whatever")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestService_IngestTestResult_DerivesStatus(t *testing.T) {
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, _ := newTestService(t, store)

	syncPR(t, svc, "pr1")

	pr := ingest(t, svc, "pr1", "tc1", "pass")
	assert.Equal(t, domain.PRStatusTesting, pr.Status)

	pr = ingest(t, svc, "pr1", "tc2", "fail")
	assert.Equal(t, domain.PRStatusBlocked, pr.Status)
	assert.Equal(t, domain.BranchCounts{Passed: 1, Failed: 1}, pr.FeatureBranch)

	// A fresh pass on the failing case clears the derived block.
	pr = ingest(t, svc, "pr1", "tc2", "pass")
	assert.Equal(t, domain.PRStatusReady, pr.Status)
	assert.Equal(t, domain.BranchCounts{Passed: 2}, pr.FeatureBranch)
}

func TestService_IngestTestResult_Validation(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, _ := newTestService(t, store)

	syncPR(t, svc, "pr1")

	_, err := svc.IngestTestResult(ctx, "alice", "pr1", TestResultInput{
		TestCaseID: "tc-unrelated", Branch: "feature", Result: "pass",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.IngestTestResult(ctx, "alice", "pr1", TestResultInput{
		TestCaseID: "tc1", Branch: "release", Result: "pass",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.IngestTestResult(ctx, "alice", "pr1", TestResultInput{
		TestCaseID: "tc1", Branch: "feature", Result: "maybe",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.IngestTestResult(ctx, "alice", "missing", TestResultInput{
		TestCaseID: "tc1", Branch: "feature", Result: "pass",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_MergeFlow_FailFirst(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, notifier := newTestService(t, store)

	syncPR(t, svc, "pr1")
	ingest(t, svc, "pr1", "tc1", "pass")
	ingest(t, svc, "pr1", "tc2", "pass")

	pr, err := svc.ApprovePullRequest(ctx, "dev", "pr1")
	require.NoError(t, err)
	require.True(t, pr.Readiness.Ready)
	assert.Equal(t, []string{"dev"}, pr.Readiness.Approvers)

	// QA tests land first; every main-branch expectation starts failing.
	pr, err = svc.MergeTests(ctx, "lead", "pr1")
	require.NoError(t, err)
	assert.Equal(t, domain.PRStatusQATestsMerged, pr.Status)
	require.NotNil(t, pr.QAMergedAt)
	assert.Equal(t, domain.BranchCounts{Failed: 2}, pr.MainBranch)

	// The implementation follows; the same expectations flip to passing.
	pr, err = svc.MergeDev(ctx, "lead", "pr1")
	require.NoError(t, err)
	assert.Equal(t, domain.PRStatusFullyMerged, pr.Status)
	require.NotNil(t, pr.FullyMergedAt)
	assert.Equal(t, domain.BranchCounts{Passed: 2}, pr.MainBranch)

	_, err = svc.IngestTestResult(ctx, "alice", "pr1", TestResultInput{
		TestCaseID: "tc1", Branch: "feature", Result: "fail",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(e Event) bool {
		return e.Type == "pull_request" && e.Action == "qa_tests_merged" && e.EntityID == "pr1"
	}))
	notifier.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(e Event) bool {
		return e.Action == "fully_merged"
	}))
}

func TestService_MergeTests_Refusals(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, _ := newTestService(t, store)

	syncPR(t, svc, "pr1")

	// Still testing.
	_, err := svc.MergeTests(ctx, "lead", "pr1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Ready by results alone is not mergeable without an approval.
	ingest(t, svc, "pr1", "tc1", "pass")
	pr := ingest(t, svc, "pr1", "tc2", "pass")
	require.Equal(t, domain.PRStatusReady, pr.Status)

	_, err = svc.MergeTests(ctx, "lead", "pr1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.MergeDev(ctx, "lead", "pr1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestService_BlockUnblock_RestoresStatus(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, _ := newTestService(t, store)

	syncPR(t, svc, "pr1")
	ingest(t, svc, "pr1", "tc1", "pass")
	pr := ingest(t, svc, "pr1", "tc2", "pass")
	require.Equal(t, domain.PRStatusReady, pr.Status)

	_, err := svc.BlockPullRequest(ctx, "lead", "pr1", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	pr, err = svc.BlockPullRequest(ctx, "lead", "pr1", "flaky environment")
	require.NoError(t, err)
	assert.Equal(t, domain.PRStatusBlocked, pr.Status)
	assert.Equal(t, "flaky environment", pr.BlockedReason)
	assert.Equal(t, domain.PRStatusReady, pr.PreviousStatus)

	pr, err = svc.UnblockPullRequest(ctx, "lead", "pr1")
	require.NoError(t, err)
	assert.Equal(t, domain.PRStatusReady, pr.Status)
	assert.Empty(t, pr.BlockedReason)

	_, err = svc.UnblockPullRequest(ctx, "lead", "pr1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestService_RejectPullRequest_WithdrawsApproval(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, _ := newTestService(t, store)

	syncPR(t, svc, "pr1")
	ingest(t, svc, "pr1", "tc1", "pass")
	ingest(t, svc, "pr1", "tc2", "pass")
	_, err := svc.ApprovePullRequest(ctx, "dev", "pr1")
	require.NoError(t, err)

	pr, err := svc.RejectPullRequest(ctx, "dev", "pr1")
	require.NoError(t, err)
	assert.Equal(t, domain.PRStatusTesting, pr.Status)
	assert.Empty(t, pr.Readiness.Approvers)
	assert.False(t, pr.Readiness.Ready)
	assert.Contains(t, pr.Readiness.Blockers, "rejected by dev")
}

func TestService_PullRequestStats_MatchItems(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, _ := newTestService(t, store)

	syncPR(t, svc, "pr1")
	syncPR(t, svc, "pr2")
	ingest(t, svc, "pr2", "tc1", "fail")

	content, _, err := store.Read(ctx, docs.PathPullRequests)
	require.NoError(t, err)

	var doc struct {
		Items    []domain.PullRequest `json:"items"`
		Metadata struct {
			TotalCount int                     `json:"totalCount"`
			Statistics domain.PullRequestStats `json:"statistics"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(content, &doc))

	assert.Equal(t, len(doc.Items), doc.Metadata.TotalCount)
	total := 0
	for _, n := range doc.Metadata.Statistics.ByStatus {
		total += n
	}
	assert.Equal(t, len(doc.Items), total)
	assert.Equal(t, 1, doc.Metadata.Statistics.ByStatus[string(domain.PRStatusBlocked)])
}

func TestDerivePullRequestStatus(t *testing.T) {
	cases := []struct {
		name string
		pr   domain.PullRequest
		want domain.PullRequestStatus
	}{
		{
			name: "no test cases",
			pr:   domain.PullRequest{Status: domain.PRStatusTesting},
			want: domain.PRStatusNew,
		},
		{
			name: "pending results",
			pr: domain.PullRequest{Status: domain.PRStatusNew, TestCases: []domain.PRTestCase{
				{TestCaseID: "tc1", FeatureResult: domain.ResultPass},
				{TestCaseID: "tc2"},
			}},
			want: domain.PRStatusTesting,
		},
		{
			name: "any failure blocks",
			pr: domain.PullRequest{Status: domain.PRStatusTesting, TestCases: []domain.PRTestCase{
				{TestCaseID: "tc1", FeatureResult: domain.ResultPass},
				{TestCaseID: "tc2", FeatureResult: domain.ResultFail},
			}},
			want: domain.PRStatusBlocked,
		},
		{
			name: "skip is not a pass",
			pr: domain.PullRequest{Status: domain.PRStatusTesting, TestCases: []domain.PRTestCase{
				{TestCaseID: "tc1", FeatureResult: domain.ResultPass},
				{TestCaseID: "tc2", FeatureResult: domain.ResultSkip},
			}},
			want: domain.PRStatusTesting,
		},
		{
			name: "all passing",
			pr: domain.PullRequest{Status: domain.PRStatusTesting, TestCases: []domain.PRTestCase{
				{TestCaseID: "tc1", FeatureResult: domain.ResultPass},
				{TestCaseID: "tc2", FeatureResult: domain.ResultPass},
			}},
			want: domain.PRStatusReady,
		},
		{
			name: "manual block sticks",
			pr: domain.PullRequest{Status: domain.PRStatusBlocked, BlockedReason: "env down", TestCases: []domain.PRTestCase{
				{TestCaseID: "tc1", FeatureResult: domain.ResultPass},
			}},
			want: domain.PRStatusBlocked,
		},
		{
			name: "qa-tests-merged sticks",
			pr:   domain.PullRequest{Status: domain.PRStatusQATestsMerged},
			want: domain.PRStatusQATestsMerged,
		},
		{
			name: "closed sticks",
			pr:   domain.PullRequest{Status: domain.PRStatusClosed},
			want: domain.PRStatusClosed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, derivePullRequestStatus(tc.pr))
		})
	}
}
