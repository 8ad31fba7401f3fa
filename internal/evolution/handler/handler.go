package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rwaledger/internal/evolution/models"
	"rwaledger/internal/evolution/service"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/platform/httputil"
	"rwaledger/pkg/requestcontext"
)

// Service is the evolution chain as seen by HTTP.
type Service interface {
	Initialize(ctx context.Context, primary, composite id.TokenID, initial []service.SnapshotInput) (*models.Chain, error)
	Evolve(ctx context.Context, composite id.TokenID, req service.EvolveRequest) (*models.Snapshot, error)
	History(ctx context.Context, composite id.TokenID) (*models.History, error)
	SnapshotAt(ctx context.Context, composite id.TokenID, tokenType models.TokenType, at time.Time) (*models.Snapshot, error)
	SetVerificationMode(ctx context.Context, composite id.TokenID, mode models.VerificationMode) (*models.Chain, error)
	VerifyIntegrity(ctx context.Context, composite id.TokenID) (bool, error)
	VerifyLinks(ctx context.Context, composite id.TokenID) error
	Get(ctx context.Context, composite id.TokenID) (*models.Chain, error)
	List(ctx context.Context) ([]*models.Chain, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/chains", h.HandleInitialize)
	r.Get("/chains", h.HandleList)
	r.Get("/chains/{compositeID}", h.HandleGet)
	r.Post("/chains/{compositeID}/evolve", h.HandleEvolve)
	r.Get("/chains/{compositeID}/history", h.HandleHistory)
	r.Get("/chains/{compositeID}/snapshot", h.HandleSnapshotAt)
	r.Get("/chains/{compositeID}/integrity", h.HandleIntegrity)
}

// RegisterAdmin mounts chain settings that require the operator token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/admin/chains/{compositeID}/mode", h.HandleSetMode)
}

// HandleInitialize handles POST /chains.
func (h *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req InitializeRequest
	if err := httputil.DecodeJSONNumbers(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	primary, err := id.ParseTokenID(req.PrimaryID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	composite, err := id.ParseTokenID(req.CompositeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	seeds := make([]service.SnapshotInput, 0, len(req.Snapshots))
	for _, s := range req.Snapshots {
		tt, err := models.ParseTokenType(s.TokenType)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		seeds = append(seeds, service.SnapshotInput{TokenType: tt, Data: s.Data})
	}
	chain, err := h.service.Initialize(ctx, primary, composite, seeds)
	if err != nil {
		h.logger.ErrorContext(ctx, "chain initialization failed",
			"request_id", requestcontext.RequestID(ctx),
			"composite_id", composite,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, chain)
}

// HandleEvolve handles POST /chains/{compositeID}/evolve. The snapshot is
// authored by the authenticated actor.
func (h *Handler) HandleEvolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	composite, err := compositeIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req EvolveRequest
	if err := httputil.DecodeJSONNumbers(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	tt, err := models.ParseTokenType(req.TokenType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	in := service.EvolveRequest{
		TokenType: tt,
		Data:      req.Data,
		Reason:    models.Reason(req.Reason),
		Actor:     requestcontext.ActorID(ctx),
	}
	if req.ChangeID != "" {
		changeID, err := id.ParseChangeID(req.ChangeID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		in.ChangeID = &changeID
	}
	snap, err := h.service.Evolve(ctx, composite, in)
	if err != nil {
		h.logger.WarnContext(ctx, "evolution rejected",
			"request_id", requestcontext.RequestID(ctx),
			"composite_id", composite,
			"token_type", tt,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, snap)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	composite, err := compositeIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	chain, err := h.service.Get(r.Context(), composite)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, chain)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	chains, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Chains: chains, Count: len(chains)})
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	composite, err := compositeIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	history, err := h.service.History(r.Context(), composite)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, history)
}

// HandleSnapshotAt handles GET /chains/{compositeID}/snapshot?type=VALUATION&at=RFC3339.
// A missing at means now.
func (h *Handler) HandleSnapshotAt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	composite, err := compositeIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q := r.URL.Query()
	tt, err := models.ParseTokenType(q.Get("type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	at := requestcontext.Now(ctx)
	if raw := q.Get("at"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "at must be an RFC3339 timestamp"))
			return
		}
	}
	snap, err := h.service.SnapshotAt(ctx, composite, tt, at)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleIntegrity reports the anchor check and the hash-link walk separately.
func (h *Handler) HandleIntegrity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	composite, err := compositeIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ok, err := h.service.VerifyIntegrity(ctx, composite)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := IntegrityResponse{CompositeID: composite, IntegrityValid: ok, LinksValid: true}
	if err := h.service.VerifyLinks(ctx, composite); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeIntegrityViolation) {
			httputil.WriteError(w, err)
			return
		}
		resp.LinksValid = false
		resp.Detail = err.Error()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleSetMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	composite, err := compositeIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req ModeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	mode, err := models.ParseVerificationMode(req.Mode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	chain, err := h.service.SetVerificationMode(ctx, composite, mode)
	if err != nil {
		h.logger.WarnContext(ctx, "verification mode change failed",
			"request_id", requestcontext.RequestID(ctx),
			"composite_id", composite,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, chain)
}

func compositeIDParam(r *http.Request) (id.TokenID, error) {
	return id.ParseTokenID(chi.URLParam(r, "compositeID"))
}
