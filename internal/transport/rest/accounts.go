package rest

import (
	"errors"
	"log"
	"net/http"

	"gymdesk/internal/service"
	"gymdesk/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) hardDeleteAccount(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFrom(w, r)
	if !ok {
		return
	}

	kind, id := chi.URLParam(r, "kind"), chi.URLParam(r, "id")
	if err := validateHardDeleteParams(kind, id); err != nil {
		writeServiceError(w, "hard delete", err)
		return
	}

	if err := h.accounts.HardDelete(r.Context(), auth.GetToken(r.Context()), kind, id); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			ErrorBadRequest(w, err.Error())
			return
		}
		// the cleanup function is a remote dependency
		log.Printf("[CLEANUP] admin=%s %s %s: %v", adminID, kind, id, err)
		ErrorBadGateway(w, err.Error())
		return
	}

	Success(w, "Conta removida", map[string]any{"type": kind, "id": id})
}
