package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rwaledger/internal/approval/models"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/platform/httputil"
	"rwaledger/pkg/requestcontext"
)

// Service is the VVB approval workflow as seen by HTTP.
type Service interface {
	Create(ctx context.Context, parent id.TokenID, changeType models.ChangeType) (*models.Change, error)
	SubmitForApproval(ctx context.Context, changeID id.ChangeID) (*models.Change, error)
	RecordDecision(ctx context.Context, changeID id.ChangeID, approver id.ActorID, verdict models.Verdict, reason string) (*models.Change, error)
	Get(ctx context.Context, changeID id.ChangeID) (*models.Change, error)
	ListPending(ctx context.Context) ([]*models.Change, error)
	ListPendingForApprover(ctx context.Context, approver id.ActorID) ([]*models.Change, error)
	Stats(ctx context.Context) (models.Stats, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/changes", h.HandleCreate)
	r.Get("/changes/pending", h.HandlePending)
	r.Get("/changes/stats", h.HandleStats)
	r.Get("/changes/{changeID}", h.HandleGet)
	r.Post("/changes/{changeID}/submit", h.HandleSubmit)
	r.Post("/changes/{changeID}/decisions", h.HandleDecision)
}

// HandleCreate handles POST /changes.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	ct, err := models.ParseChangeType(req.ChangeType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Create(ctx, id.TokenID(req.ParentTokenID), ct)
	if err != nil {
		h.logger.ErrorContext(ctx, "change creation failed",
			"request_id", requestcontext.RequestID(ctx),
			"parent_token_id", req.ParentTokenID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changeID, err := changeIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.SubmitForApproval(ctx, changeID)
	if err != nil {
		h.logger.WarnContext(ctx, "change submission failed",
			"request_id", requestcontext.RequestID(ctx),
			"change_id", changeID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleDecision handles POST /changes/{changeID}/decisions. The approver is
// always the authenticated actor; a body cannot vote on someone's behalf.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	approver := requestcontext.ActorID(ctx)
	if approver == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	changeID, err := changeIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req DecisionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	verdict, err := models.ParseVerdict(req.Decision)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.RecordDecision(ctx, changeID, approver, verdict, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "decision rejected",
			"request_id", requestcontext.RequestID(ctx),
			"change_id", changeID,
			"approver_id", approver,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	changeID, err := changeIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), changeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandlePending handles GET /changes/pending. With ?approver= it lists only
// the changes that approver can still vote on.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		cs  []*models.Change
		err error
	)
	if approver := r.URL.Query().Get("approver"); approver != "" {
		cs, err = h.service.ListPendingForApprover(ctx, id.ActorID(approver))
	} else {
		cs, err = h.service.ListPending(ctx)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Changes: cs, Count: len(cs)})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func changeIDParam(r *http.Request) (id.ChangeID, error) {
	return id.ParseChangeID(chi.URLParam(r, "changeID"))
}
