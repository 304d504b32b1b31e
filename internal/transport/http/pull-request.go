package http

import (
	"encoding/json"
	"net/http"

	"qaflow/internal/service"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handlePRList(w http.ResponseWriter, r *http.Request) {
	prs, stats, err := h.prService.ListPullRequests(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, PullRequestListResponse{PullRequests: prs, Stats: stats})
}

func (h *Handler) handlePRGet(w http.ResponseWriter, r *http.Request) {
	pr, err := h.prService.GetPullRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pr)
}

func (h *Handler) handlePRSync(w http.ResponseWriter, r *http.Request) {
	var req PRSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	pr, err := h.prService.SyncPullRequest(r.Context(), actorID(r), service.SyncPullRequestInput{
		ID:          req.ID,
		Name:        req.Name,
		Developer:   req.Developer,
		Priority:    req.Priority,
		Status:      req.Status,
		TestCaseIDs: req.TestCaseIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, pr)
}

func (h *Handler) handlePRTestResult(w http.ResponseWriter, r *http.Request) {
	var req TestResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	pr, err := h.prService.IngestTestResult(r.Context(), actorID(r), chi.URLParam(r, "id"), service.TestResultInput{
		TestCaseID: req.TestCaseID,
		Branch:     req.Branch,
		Result:     req.Result,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pr)
}

func (h *Handler) handlePRApprove(w http.ResponseWriter, r *http.Request) {
	pr, err := h.prService.ApprovePullRequest(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pr)
}

func (h *Handler) handlePRMergeTests(w http.ResponseWriter, r *http.Request) {
	pr, err := h.prService.MergeTests(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pr)
}

func (h *Handler) handlePRMergeDev(w http.ResponseWriter, r *http.Request) {
	pr, err := h.prService.MergeDev(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pr)
}

func (h *Handler) handlePRBlock(w http.ResponseWriter, r *http.Request) {
	var req PRBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	pr, err := h.prService.BlockPullRequest(r.Context(), actorID(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pr)
}

func (h *Handler) handlePRUnblock(w http.ResponseWriter, r *http.Request) {
	pr, err := h.prService.UnblockPullRequest(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pr)
}

func (h *Handler) handlePRReject(w http.ResponseWriter, r *http.Request) {
	pr, err := h.prService.RejectPullRequest(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pr)
}
