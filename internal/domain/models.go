package domain

import "time"

type PullRequestStatus string

const (
	PRStatusNew           PullRequestStatus = "new"
	PRStatusTesting       PullRequestStatus = "testing"
	PRStatusReady         PullRequestStatus = "ready"
	PRStatusQATestsMerged PullRequestStatus = "qa-tests-merged"
	PRStatusFullyMerged   PullRequestStatus = "fully-merged"
	PRStatusBlocked       PullRequestStatus = "blocked"
	PRStatusClosed        PullRequestStatus = "closed"
)

// Terminal reports whether no further lifecycle transition may leave
// the status. "closed" is written only by the source-control sync.
func (s PullRequestStatus) Terminal() bool {
	return s == PRStatusFullyMerged || s == PRStatusClosed
}

type BranchResult string

const (
	ResultNone BranchResult = ""
	ResultPass BranchResult = "pass"
	ResultFail BranchResult = "fail"
	ResultSkip BranchResult = "skip"
)

// PRTestCase binds a test case to a pull request together with the
// latest result on each branch. The main-branch result follows the
// fail-first discipline: it is stamped "fail" when QA tests merge and
// flips to "pass" when the implementation merges.
type PRTestCase struct {
	TestCaseID    string       `json:"test_case_id"`
	FeatureResult BranchResult `json:"feature_result"`
	MainResult    BranchResult `json:"main_result"`
}

type BranchCounts struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type MergeReadiness struct {
	Ready           bool     `json:"ready"`
	RequirementsMet []string `json:"requirements_met"`
	Blockers        []string `json:"blockers"`
	Approvers       []string `json:"approvers"`
}

type PullRequest struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Developer      string            `json:"developer"`
	Priority       string            `json:"priority"`
	Status         PullRequestStatus `json:"status"`
	BlockedReason  string            `json:"blocked_reason,omitempty"`
	PreviousStatus PullRequestStatus `json:"previous_status,omitempty"`
	FeatureBranch  BranchCounts      `json:"feature_branch"`
	MainBranch     BranchCounts      `json:"main_branch"`
	Readiness      MergeReadiness    `json:"merge_readiness"`
	TestCases      []PRTestCase      `json:"test_cases"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	QAMergedAt     *time.Time        `json:"qa_tests_merged_at,omitempty"`
	FullyMergedAt  *time.Time        `json:"fully_merged_at,omitempty"`
}

type BDDStep struct {
	Keyword string `json:"keyword"`
	Text    string `json:"text"`
}

type TestCase struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Tags             []string  `json:"tags"`
	Intent           string    `json:"intent"`
	Steps            []BDDStep `json:"steps"`
	ExpectedDuration int       `json:"expected_duration_minutes"`
	Author           string    `json:"author"`
	Custom           bool      `json:"custom"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type AssignmentStatus string

const (
	AssignmentUnassigned AssignmentStatus = "unassigned"
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentFailed     AssignmentStatus = "failed"
	AssignmentBlocked    AssignmentStatus = "blocked"
)

func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentCompleted || s == AssignmentFailed
}

// ProgressUpdate is one entry in an assignment's append-only update log.
type ProgressUpdate struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress"`
}

type TestAssignment struct {
	ID          string           `json:"id"`
	PRID        string           `json:"pr_id"`
	TestCaseID  string           `json:"test_case_id"`
	AssignedTo  string           `json:"assigned_to"`
	Status      AssignmentStatus `json:"status"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	Progress    int              `json:"progress"`
	Updates     []ProgressUpdate `json:"updates"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

type User struct {
	ID                 string `json:"id"`
	Username           string `json:"username"`
	Role               Role   `json:"role"`
	CurrentAssignments int    `json:"current_assignments"`
	MaxAssignments     int    `json:"max_concurrent_assignments"`
}

type TestResultStatus string

const (
	TestResultPassed TestResultStatus = "passed"
	TestResultFailed TestResultStatus = "failed"
)

// TestResult is the execution record derived from a completed or
// failed assignment.
type TestResult struct {
	ID           string           `json:"id"`
	PRID         string           `json:"pr_id"`
	TestCaseID   string           `json:"test_case_id"`
	AssignmentID string           `json:"assignment_id"`
	Status       TestResultStatus `json:"status"`
	ExecutedBy   string           `json:"executed_by"`
	ExecutedAt   time.Time        `json:"executed_at"`
	Notes        string           `json:"notes,omitempty"`
}

type IssueStatus string

const (
	IssueOpen     IssueStatus = "open"
	IssueResolved IssueStatus = "resolved"
)

type IssueUpdate struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
}

type Issue struct {
	ID              string        `json:"id"`
	PRID            string        `json:"pr_id"`
	TestCaseID      string        `json:"test_case_id"`
	Severity        string        `json:"severity"`
	EscalationLevel int           `json:"escalation_level"`
	Status          IssueStatus   `json:"status"`
	Updates         []IssueUpdate `json:"updates"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ActivityRecord is one entry in the bounded audit trail. Newest
// records sit at the head; the log is capped, oldest entries drop off.
type ActivityRecord struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
	Message   string            `json:"message"`
}
