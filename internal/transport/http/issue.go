package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleIssueList(w http.ResponseWriter, r *http.Request) {
	issues, err := h.issuesService.ListIssues(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, issues)
}

func (h *Handler) handleIssueEscalate(w http.ResponseWriter, r *http.Request) {
	var req IssueActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	issue, err := h.issuesService.EscalateIssue(r.Context(), actorID(r), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, issue)
}

func (h *Handler) handleIssueResolve(w http.ResponseWriter, r *http.Request) {
	var req IssueActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	issue, err := h.issuesService.ResolveIssue(r.Context(), actorID(r), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, issue)
}
