package rest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"gymdesk/internal/domain"
	"gymdesk/internal/service"
	"gymdesk/internal/transport/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ClientManager interface {
	History(ctx context.Context, clientID string) (*service.ClientHistory, error)
	SoftDelete(ctx context.Context, adminID, clientID string, reason *string) (*service.SoftDeleteResult, error)
	Freeze(ctx context.Context, planID string) (*domain.PaymentPlan, error)
	Unfreeze(ctx context.Context, planID string) (*domain.PaymentPlan, error)
}

type DuplicateReconciler interface {
	Scan(ctx context.Context, clientID string) (*service.DuplicateReport, error)
	Cached(ctx context.Context, clientID string) (*service.DuplicateReport, bool)
	Reconcile(ctx context.Context, adminID, clientID string) (*service.ReconcileResult, error)
}

type CarneCreator interface {
	CreateCarne(ctx context.Context, in service.CreateCarneInput) (*service.Carne, error)
}

type PaymentSettler interface {
	MarkPaid(ctx context.Context, paymentID, method string, paidAt *time.Time) (*domain.Payment, error)
}

type HistoryExporter interface {
	StartHistoryExport(ctx context.Context, adminID, clientID string) (string, error)
}

type AccountRemover interface {
	HardDelete(ctx context.Context, bearerToken, kind, id string) error
}

type WebSocketServer interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request, adminID string)
}

// FileResolver maps a stored file name to a local path.
type FileResolver interface {
	Path(fileName string) (string, bool)
}

type Services struct {
	Clients    ClientManager
	Duplicates DuplicateReconciler
	Plans      CarneCreator
	Payments   PaymentSettler
	Exports    HistoryExporter
	ExportList ExportListService
	Accounts   AccountRemover

	Hub   WebSocketServer
	Files FileResolver
}

type Handler struct {
	clients    ClientManager
	duplicates DuplicateReconciler
	plans      CarneCreator
	payments   PaymentSettler
	exports    HistoryExporter
	exportList ExportListService
	accounts   AccountRemover

	hub   WebSocketServer
	files FileResolver
}

func NewHandler(s Services) *Handler {
	return &Handler{
		clients:    s.Clients,
		duplicates: s.Duplicates,
		plans:      s.Plans,
		payments:   s.Payments,
		exports:    s.Exports,
		exportList: s.ExportList,
		accounts:   s.Accounts,
		hub:        s.Hub,
		files:      s.Files,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

// InitRouterWithAuth keeps /health and /files public and puts every other
// route behind authMiddleware.
func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		Success(w, "ok", map[string]any{"time": time.Now().UTC()})
	})
	r.Get("/files/{file}", h.serveFile)

	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}

		r.Get("/ws", h.websocket)

		r.Route("/clients/{client_id}", func(r chi.Router) {
			r.Get("/history", h.clientHistory)
			r.Delete("/", h.softDeleteClient)
			r.Get("/duplicates", h.scanDuplicates)
			r.Post("/duplicates/reconcile", h.reconcileDuplicates)
			r.Post("/plans", h.createCarne)
			r.Post("/export", h.exportHistory)
		})

		r.Post("/plans/{plan_id}/freeze", h.freezePlan)
		r.Post("/plans/{plan_id}/unfreeze", h.unfreezePlan)
		r.Post("/payments/{payment_id}/pay", h.markPaid)

		r.Route("/export", func(r chi.Router) {
			r.Get("/", h.listExports)
			r.Get("/{export_id}", h.getExport)
		})

		r.Delete("/admin/accounts/{kind}/{id}", h.hardDeleteAccount)
	})

	return r
}

func (h *Handler) websocket(w http.ResponseWriter, r *http.Request) {
	adminID, err := auth.GetAdminID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}
	if h.hub == nil {
		ErrorNotFound(w, "websocket not available")
		return
	}

	log.Printf("[WS] connected: admin_id=%s", adminID)
	h.hub.HandleWebSocket(w, r, adminID)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		http.NotFound(w, r)
		return
	}

	file := chi.URLParam(r, "file")
	path, ok := h.files.Path(file)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "failed to access file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", originalName(file)))
	http.ServeFile(w, r, path)
}

// originalName strips the random prefix the storage adds on save.
func originalName(stored string) string {
	if idx := strings.IndexByte(stored, '_'); idx >= 0 {
		return stored[idx+1:]
	}
	return stored
}

func adminFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	adminID, err := auth.GetAdminID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return "", false
	}
	return adminID, true
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var verr *ValidationError
	var serr *service.StepError

	switch {
	case errors.As(err, &verr):
		ErrorBadRequest(w, verr.Message)
	case errors.Is(err, service.ErrInvalidInput):
		ErrorBadRequest(w, err.Error())
	case errors.Is(err, service.ErrClientNotFound),
		errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrPaymentNotFound):
		ErrorNotFound(w, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAlreadyCancelled),
		errors.Is(err, service.ErrNothingToReconcile),
		errors.Is(err, service.ErrReconcileInProgress),
		errors.Is(err, service.ErrDuplicatePlan):
		ErrorConflict(w, err.Error())
	case errors.As(err, &serr):
		log.Printf("[HTTP] %s error: %v", op, err)
		applied := serr.Applied
		if applied == nil {
			applied = []string{}
		}
		ErrorWithData(w, fmt.Sprintf("%s failed", op), map[string]any{
			"step":    serr.Step,
			"applied": applied,
		}, http.StatusInternalServerError)
	default:
		log.Printf("[HTTP] %s error: %v", op, err)
		ErrorInternal(w, fmt.Sprintf("%s failed", op))
	}
}
