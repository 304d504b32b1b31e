package http

import (
	"context"
	"encoding/json"
	"net/http"

	"qaflow/internal/domain"
	"qaflow/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type PullRequestsService interface {
	SyncPullRequest(ctx context.Context, actor string, in service.SyncPullRequestInput) (domain.PullRequest, error)
	GetPullRequest(ctx context.Context, prID string) (domain.PullRequest, error)
	ListPullRequests(ctx context.Context) ([]domain.PullRequest, domain.PullRequestStats, error)
	IngestTestResult(ctx context.Context, actor, prID string, in service.TestResultInput) (domain.PullRequest, error)
	ApprovePullRequest(ctx context.Context, actor, prID string) (domain.PullRequest, error)
	MergeTests(ctx context.Context, actor, prID string) (domain.PullRequest, error)
	MergeDev(ctx context.Context, actor, prID string) (domain.PullRequest, error)
	BlockPullRequest(ctx context.Context, actor, prID, reason string) (domain.PullRequest, error)
	UnblockPullRequest(ctx context.Context, actor, prID string) (domain.PullRequest, error)
	RejectPullRequest(ctx context.Context, actor, prID string) (domain.PullRequest, error)
}

type AssignmentsService interface {
	Assign(ctx context.Context, actor string, in service.AssignInput) (domain.TestAssignment, error)
	UpdateProgress(ctx context.Context, actor, assignmentID string, in service.ProgressInput) (domain.TestAssignment, error)
	ListAssignments(ctx context.Context) ([]domain.TestAssignment, domain.AssignmentStats, error)
}

type TestCasesService interface {
	CreateTestCase(ctx context.Context, actor string, in service.TestCaseInput) (domain.TestCase, error)
	UpdateTestCase(ctx context.Context, actor, id string, in service.TestCaseInput) (domain.TestCase, error)
	DeleteTestCase(ctx context.Context, actor, id string) error
	ListTestCases(ctx context.Context) ([]domain.TestCase, error)
}

type UsersService interface {
	CreateUser(ctx context.Context, actor string, in service.UserInput) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type IssuesService interface {
	EscalateIssue(ctx context.Context, actor, issueID, message string) (domain.Issue, error)
	ResolveIssue(ctx context.Context, actor, issueID, message string) (domain.Issue, error)
	ListIssues(ctx context.Context) ([]domain.Issue, error)
}

type ActivityService interface {
	ListActivity(ctx context.Context) ([]domain.ActivityRecord, error)
}

type Handler struct {
	prService         PullRequestsService
	assignmentService AssignmentsService
	testCaseService   TestCasesService
	usersService      UsersService
	issuesService     IssuesService
	activityService   ActivityService
}

func NewHandler(
	prs PullRequestsService,
	assignments AssignmentsService,
	testCases TestCasesService,
	users UsersService,
	issues IssuesService,
	activity ActivityService,
) *Handler {
	return &Handler{
		prService:         prs,
		assignmentService: assignments,
		testCaseService:   testCases,
		usersService:      users,
		issuesService:     issues,
		activityService:   activity,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware)

	router.Route("/api", func(r chi.Router) {
		r.Route("/pullRequests", func(r chi.Router) {
			r.Get("/", h.handlePRList)
			r.Post("/sync", h.handlePRSync)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handlePRGet)
				r.Post("/testResult", h.handlePRTestResult)
				r.Post("/approve", h.handlePRApprove)
				r.Post("/mergeTests", h.handlePRMergeTests)
				r.Post("/mergeDev", h.handlePRMergeDev)
				r.Post("/block", h.handlePRBlock)
				r.Post("/unblock", h.handlePRUnblock)
				r.Post("/reject", h.handlePRReject)
			})
		})

		r.Route("/testCases", func(r chi.Router) {
			r.Get("/", h.handleTestCaseList)
			r.Post("/", h.handleTestCaseCreate)
			r.Put("/{id}", h.handleTestCaseUpdate)
			r.Delete("/{id}", h.handleTestCaseDelete)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.handleAssignmentList)
			r.Post("/", h.handleAssignmentCreate)
			r.Post("/{id}/progress", h.handleAssignmentProgress)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.handleUserList)
			r.Post("/", h.handleUserCreate)
		})

		r.Route("/issues", func(r chi.Router) {
			r.Get("/", h.handleIssueList)
			r.Post("/{id}/escalate", h.handleIssueEscalate)
			r.Post("/{id}/resolve", h.handleIssueResolve)
		})

		r.Get("/activity", h.handleActivityList)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return router
}

// corsMiddleware answers preflight requests with an empty 200 so the
// presentation layer can call from another origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Helpers

// actorID extracts the opaque actor identity from the request.
func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-ID")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v == nil {
		return
	}

	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, Response{Success: true, Data: v})
}

func writeError(w http.ResponseWriter, err error) {
	status, body := mappingDomainErrors(err)
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Response{
		Success: false,
		Error:   &errorBody{Code: "BAD_REQUEST", Message: message},
	})
}
