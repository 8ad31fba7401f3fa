package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rwaledger/internal/webhook/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/httputil"
	"rwaledger/pkg/requestcontext"
)

type Service interface {
	Register(ctx context.Context, url, secret string, events []string) (*models.Subscription, error)
	Unregister(ctx context.Context, subID id.SubscriptionID) error
	Get(ctx context.Context, subID id.SubscriptionID) (*models.Subscription, error)
	List(ctx context.Context) ([]*models.Subscription, error)
}

type RegisterRequest struct {
	URL    string   `json:"url" validate:"required,url,max=2048"`
	Secret string   `json:"secret" validate:"required,min=16,max=256"`
	Events []string `json:"events" validate:"max=32,dive,max=64"`
}

type ListResponse struct {
	Subscriptions []*models.Subscription `json:"subscriptions"`
	Count         int                    `json:"count"`
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts subscription management. Every route needs the operator token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/webhooks", h.HandleRegister)
	r.Get("/admin/webhooks", h.HandleList)
	r.Get("/admin/webhooks/{subscriptionID}", h.HandleGet)
	r.Delete("/admin/webhooks/{subscriptionID}", h.HandleDelete)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	sub, err := h.service.Register(ctx, req.URL, req.Secret, req.Events)
	if err != nil {
		h.logger.WarnContext(ctx, "webhook registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"url", req.URL,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sub)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Subscriptions: subs, Count: len(subs)})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sub, err := h.service.Get(r.Context(), subID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	subID, err := id.ParseSubscriptionID(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Unregister(r.Context(), subID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
