package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	req, err := ValidateMarkPaidRequest(r)
	if err != nil {
		writeServiceError(w, "mark paid", err)
		return
	}

	payment, err := h.payments.MarkPaid(r.Context(), chi.URLParam(r, "payment_id"), req.PaymentMethod, req.PaidAt)
	if err != nil {
		writeServiceError(w, "mark paid", err)
		return
	}
	Success(w, "Pagamento registrado", payment)
}
