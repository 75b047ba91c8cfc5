package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) clientHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.clients.History(r.Context(), chi.URLParam(r, "client_id"))
	if err != nil {
		writeServiceError(w, "history", err)
		return
	}
	Success(w, "", history)
}

func (h *Handler) softDeleteClient(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFrom(w, r)
	if !ok {
		return
	}

	req, err := ValidateSoftDeleteRequest(r)
	if err != nil {
		writeServiceError(w, "soft delete", err)
		return
	}

	res, err := h.clients.SoftDelete(r.Context(), adminID, chi.URLParam(r, "client_id"), req.Reason)
	if err != nil {
		writeServiceError(w, "soft delete", err)
		return
	}
	Success(w, "Cliente cancelado", res)
}

func (h *Handler) scanDuplicates(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")

	if r.URL.Query().Get("cached") == "true" {
		if report, ok := h.duplicates.Cached(r.Context(), clientID); ok {
			Success(w, "", report)
			return
		}
	}

	report, err := h.duplicates.Scan(r.Context(), clientID)
	if err != nil {
		writeServiceError(w, "duplicate scan", err)
		return
	}
	Success(w, "", report)
}

func (h *Handler) reconcileDuplicates(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFrom(w, r)
	if !ok {
		return
	}

	res, err := h.duplicates.Reconcile(r.Context(), adminID, chi.URLParam(r, "client_id"))
	if err != nil {
		writeServiceError(w, "reconcile", err)
		return
	}
	Success(w, "Duplicatas removidas", res)
}

func (h *Handler) exportHistory(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFrom(w, r)
	if !ok {
		return
	}

	exportID, err := h.exports.StartHistoryExport(r.Context(), adminID, chi.URLParam(r, "client_id"))
	if err != nil {
		writeServiceError(w, "start export", err)
		return
	}

	SuccessAccepted(w, "Exportação na fila", map[string]any{"export_id": exportID})
}
