package http

import (
	"encoding/json"
	"net/http"

	"qaflow/internal/service"
)

func (h *Handler) handleUserList(w http.ResponseWriter, r *http.Request) {
	users, err := h.usersService.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, users)
}

func (h *Handler) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req UserCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	user, err := h.usersService.CreateUser(r.Context(), actorID(r), service.UserInput{
		ID:             req.ID,
		Username:       req.Username,
		Role:           req.Role,
		MaxAssignments: req.MaxAssignments,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, user)
}
