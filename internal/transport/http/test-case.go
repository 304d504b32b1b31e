package http

import (
	"encoding/json"
	"net/http"

	"qaflow/internal/service"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleTestCaseList(w http.ResponseWriter, r *http.Request) {
	testCases, err := h.testCaseService.ListTestCases(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, testCases)
}

func (h *Handler) handleTestCaseCreate(w http.ResponseWriter, r *http.Request) {
	var req TestCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	tc, err := h.testCaseService.CreateTestCase(r.Context(), actorID(r), service.TestCaseInput{
		ID:               req.ID,
		Name:             req.Name,
		Tags:             req.Tags,
		Intent:           req.Intent,
		Steps:            req.Steps,
		ExpectedDuration: req.ExpectedDuration,
		Custom:           req.Custom,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, tc)
}

func (h *Handler) handleTestCaseUpdate(w http.ResponseWriter, r *http.Request) {
	var req TestCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	tc, err := h.testCaseService.UpdateTestCase(r.Context(), actorID(r), chi.URLParam(r, "id"), service.TestCaseInput{
		Name:             req.Name,
		Tags:             req.Tags,
		Intent:           req.Intent,
		Steps:            req.Steps,
		ExpectedDuration: req.ExpectedDuration,
		Custom:           req.Custom,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, tc)
}

func (h *Handler) handleTestCaseDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.testCaseService.DeleteTestCase(r.Context(), actorID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}
