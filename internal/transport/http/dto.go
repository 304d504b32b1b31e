package http

import (
	"time"

	"qaflow/internal/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the envelope every operation returns: success with the
// payload under data, or failure with a structured error.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type PRSyncRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Developer   string   `json:"developer"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	TestCaseIDs []string `json:"test_case_ids"`
}

type TestResultRequest struct {
	TestCaseID string `json:"test_case_id"`
	Branch     string `json:"branch"`
	Result     string `json:"result"`
}

type PRBlockRequest struct {
	Reason string `json:"reason"`
}

type PullRequestListResponse struct {
	PullRequests []domain.PullRequest    `json:"pull_requests"`
	Stats        domain.PullRequestStats `json:"stats"`
}

type AssignRequest struct {
	TestCaseID string     `json:"test_case_id"`
	PRID       string     `json:"pr_id"`
	AssignedTo string     `json:"assigned_to"`
	DueDate    *time.Time `json:"due_date,omitempty"`
}

type ProgressRequest struct {
	Action      string `json:"action"`
	Progress    *int   `json:"progress,omitempty"`
	Message     string `json:"message,omitempty"`
	ReportIssue bool   `json:"report_issue,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

type AssignmentListResponse struct {
	Assignments []domain.TestAssignment `json:"assignments"`
	Stats       domain.AssignmentStats  `json:"stats"`
}

type TestCaseRequest struct {
	ID               string           `json:"id,omitempty"`
	Name             string           `json:"name"`
	Tags             []string         `json:"tags"`
	Intent           string           `json:"intent"`
	Steps            []domain.BDDStep `json:"steps"`
	ExpectedDuration int              `json:"expected_duration_minutes"`
	Custom           bool             `json:"custom"`
}

type UserCreateRequest struct {
	ID             string `json:"id,omitempty"`
	Username       string `json:"username"`
	Role           string `json:"role"`
	MaxAssignments int    `json:"max_concurrent_assignments"`
}

type IssueActionRequest struct {
	Message string `json:"message"`
}
