package rest

import (
	"net/http"

	"gymdesk/internal/service"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) createCarne(w http.ResponseWriter, r *http.Request) {
	req, start, err := ValidateCreateCarneRequest(r)
	if err != nil {
		writeServiceError(w, "create carne", err)
		return
	}

	carne, err := h.plans.CreateCarne(r.Context(), service.CreateCarneInput{
		ClientID:      chi.URLParam(r, "client_id"),
		TotalAmount:   req.TotalAmount,
		Installments:  req.Installments,
		StartDate:     start,
		PaymentMethod: req.PaymentMethod,
		Force:         req.Force,
	})
	if err != nil {
		writeServiceError(w, "create carne", err)
		return
	}

	SuccessCreated(w, "Carnê criado", carne)
}

func (h *Handler) freezePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.clients.Freeze(r.Context(), chi.URLParam(r, "plan_id"))
	if err != nil {
		writeServiceError(w, "freeze plan", err)
		return
	}
	Success(w, "Plano congelado", plan)
}

func (h *Handler) unfreezePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.clients.Unfreeze(r.Context(), chi.URLParam(r, "plan_id"))
	if err != nil {
		writeServiceError(w, "unfreeze plan", err)
		return
	}
	Success(w, "Plano reativado", plan)
}
