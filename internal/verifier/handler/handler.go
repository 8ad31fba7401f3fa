package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"rwaledger/internal/verifier/merkle"
	"rwaledger/internal/verifier/models"
	"rwaledger/internal/verifier/service"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/platform/httputil"
	"rwaledger/pkg/requestcontext"
)

// Service is the verifier directory as seen by HTTP.
type Service interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.Verifier, error)
	Approve(ctx context.Context, verifierID id.VerifierID) (*models.Verifier, error)
	Reject(ctx context.Context, verifierID id.VerifierID, reason string) (*models.Verifier, error)
	Suspend(ctx context.Context, verifierID id.VerifierID, reason string) (*models.Verifier, error)
	Reinstate(ctx context.Context, verifierID id.VerifierID) (*models.Verifier, error)
	RenewCredentials(ctx context.Context, verifierID id.VerifierID, expiry time.Time) (*models.Verifier, error)
	Get(ctx context.Context, verifierID id.VerifierID) (*models.Verifier, error)
	List(ctx context.Context) ([]*models.Verifier, error)
	ListByTier(ctx context.Context, tier models.Tier) ([]*models.Verifier, error)
	Stats(ctx context.Context) (*models.Stats, error)
	TopByReputation(ctx context.Context, tier models.Tier, n int) ([]*models.Verifier, error)
	RootHash(ctx context.Context) (string, error)
	MembershipProof(ctx context.Context, verifierID id.VerifierID) (*merkle.Proof, error)
	VerifyProof(ctx context.Context, proof merkle.Proof) (bool, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts read and registration endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verifiers", h.HandleRegister)
	r.Get("/verifiers", h.HandleList)
	r.Get("/verifiers/stats", h.HandleStats)
	r.Get("/verifiers/top", h.HandleTop)
	r.Get("/verifiers/membership/root", h.HandleRoot)
	r.Post("/verifiers/membership/verify", h.HandleVerifyProof)
	r.Get("/verifiers/{verifierID}", h.HandleGet)
	r.Get("/verifiers/{verifierID}/proof", h.HandleProof)
}

// RegisterAdmin mounts lifecycle endpoints that require the operator token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/verifiers/{verifierID}/approve", h.HandleApprove)
	r.Post("/admin/verifiers/{verifierID}/reject", h.HandleReject)
	r.Post("/admin/verifiers/{verifierID}/suspend", h.HandleSuspend)
	r.Post("/admin/verifiers/{verifierID}/reinstate", h.HandleReinstate)
	r.Post("/admin/verifiers/{verifierID}/credentials", h.HandleRenew)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	tier, err := models.ParseTier(req.Tier)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.Register(ctx, service.RegisterRequest{
		Name:           req.Name,
		Tier:           tier,
		Specialization: req.Specialization,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "verifier registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"name", req.Name,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Get(r.Context(), verifierIDParam(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

// HandleList handles GET /verifiers with an optional ?tier= filter.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		vs  []*models.Verifier
		err error
	)
	if raw := r.URL.Query().Get("tier"); raw != "" {
		tier, perr := models.ParseTier(raw)
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		vs, err = h.service.ListByTier(ctx, tier)
	} else {
		vs, err = h.service.List(ctx)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Verifiers: vs, Count: len(vs)})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleTop handles GET /verifiers/top?tier=T2&n=10.
func (h *Handler) HandleTop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tier, err := models.ParseTier(q.Get("tier"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n := 10
	if raw := q.Get("n"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "n must be a positive integer"))
			return
		}
	}
	vs, err := h.service.TopByReputation(r.Context(), tier, n)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Verifiers: vs, Count: len(vs)})
}

func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	root, err := h.service.RootHash(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RootResponse{Root: root})
}

func (h *Handler) HandleProof(w http.ResponseWriter, r *http.Request) {
	proof, err := h.service.MembershipProof(r.Context(), verifierIDParam(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proof)
}

func (h *Handler) HandleVerifyProof(w http.ResponseWriter, r *http.Request) {
	var proof merkle.Proof
	if err := httputil.DecodeJSON(r, &proof); err != nil {
		httputil.WriteError(w, err)
		return
	}
	ok, err := h.service.VerifyProof(r.Context(), proof)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyProofResponse{Valid: ok})
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, vid id.VerifierID, _ string) (*models.Verifier, error) {
		return h.service.Approve(ctx, vid)
	}, false)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reject, true)
}

func (h *Handler) HandleSuspend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Suspend, true)
}

func (h *Handler) HandleReinstate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, vid id.VerifierID, _ string) (*models.Verifier, error) {
		return h.service.Reinstate(ctx, vid)
	}, false)
}

func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.RenewCredentials(r.Context(), verifierIDParam(r), req.Expiry)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

type transitionFunc func(ctx context.Context, vid id.VerifierID, reason string) (*models.Verifier, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc, needsReason bool) {
	ctx := r.Context()
	var req ReasonRequest
	if needsReason {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	vid := verifierIDParam(r)
	v, err := fn(ctx, vid, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "verifier transition failed",
			"request_id", requestcontext.RequestID(ctx),
			"verifier_id", vid,
			"path", r.URL.Path,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func verifierIDParam(r *http.Request) id.VerifierID {
	return id.VerifierID(chi.URLParam(r, "verifierID"))
}
