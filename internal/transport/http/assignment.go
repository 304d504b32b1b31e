package http

import (
	"encoding/json"
	"net/http"

	"qaflow/internal/service"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleAssignmentList(w http.ResponseWriter, r *http.Request) {
	assignments, stats, err := h.assignmentService.ListAssignments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, AssignmentListResponse{Assignments: assignments, Stats: stats})
}

func (h *Handler) handleAssignmentCreate(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	assignment, err := h.assignmentService.Assign(r.Context(), actorID(r), service.AssignInput{
		TestCaseID: req.TestCaseID,
		PRID:       req.PRID,
		AssignedTo: req.AssignedTo,
		DueDate:    req.DueDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, assignment)
}

func (h *Handler) handleAssignmentProgress(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	assignment, err := h.assignmentService.UpdateProgress(r.Context(), actorID(r), chi.URLParam(r, "id"), service.ProgressInput{
		Action:      req.Action,
		Progress:    req.Progress,
		Message:     req.Message,
		ReportIssue: req.ReportIssue,
		Severity:    req.Severity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, assignment)
}
