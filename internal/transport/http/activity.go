package http

import "net/http"

func (h *Handler) handleActivityList(w http.ResponseWriter, r *http.Request) {
	records, err := h.activityService.ListActivity(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, records)
}
