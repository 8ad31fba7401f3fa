package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rwaledger/internal/verification/models"
	"rwaledger/internal/verification/service"
	verifier "rwaledger/internal/verifier/models"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/platform/httputil"
	"rwaledger/pkg/requestcontext"
)

// Service is the verification coordinator as seen by HTTP.
type Service interface {
	RequestVerification(ctx context.Context, subject id.TokenID, assetType string, level verifier.TrustLevel, verifierCount int) (*models.Request, error)
	RequestVerificationForChange(ctx context.Context, changeID id.ChangeID, subject id.TokenID, assetType string, level verifier.TrustLevel, verifierCount int) (*models.Request, error)
	SubmitResult(ctx context.Context, requestID id.RequestID, req service.SubmitResultRequest) (*models.Request, error)
	Get(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	ListActive(ctx context.Context) ([]*models.Request, error)
	ListBySubject(ctx context.Context, subject id.TokenID) ([]*models.Request, error)
	Outcome(ctx context.Context, requestID id.RequestID) (models.Outcome, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/verifications", h.HandleRequest)
	r.Get("/verifications", h.HandleList)
	r.Get("/verifications/{requestID}", h.HandleGet)
	r.Get("/verifications/{requestID}/outcome", h.HandleOutcome)
	r.Post("/verifications/{requestID}/results", h.HandleSubmitResult)
}

// HandleRequest handles POST /verifications.
func (h *Handler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	level, err := verifier.ParseTrustLevel(req.TrustLevel)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var out *models.Request
	if req.ChangeID != "" {
		changeID, perr := id.ParseChangeID(req.ChangeID)
		if perr != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid change_id"))
			return
		}
		out, err = h.service.RequestVerificationForChange(ctx, changeID, id.TokenID(req.SubjectID), req.AssetType, level, req.VerifierCount)
	} else {
		out, err = h.service.RequestVerification(ctx, id.TokenID(req.SubjectID), req.AssetType, level, req.VerifierCount)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "verification request failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject", req.SubjectID,
			"trust_level", level,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

// HandleSubmitResult handles POST /verifications/{requestID}/results. The
// submitting verifier must be the authenticated actor when one is present.
func (h *Handler) HandleSubmitResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SubmitResultRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	verifierID := id.VerifierID(req.VerifierID)
	if actor := requestcontext.ActorID(ctx); actor != "" && string(actor) != req.VerifierID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorizedVerifier, "results must be submitted by the verifier itself"))
		return
	}
	var achieved verifier.TrustLevel
	if req.AchievedLevel != "" {
		level, err := verifier.ParseTrustLevel(req.AchievedLevel)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		achieved = level
	}
	out, err := h.service.SubmitResult(ctx, requestIDParam(r), service.SubmitResultRequest{
		VerifierID:    verifierID,
		Verified:      *req.Verified,
		AchievedLevel: achieved,
		Summary:       req.Summary,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "verification result rejected",
			"request_id", requestcontext.RequestID(ctx),
			"verification_request_id", requestIDParam(r),
			"verifier_id", verifierID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Get(r.Context(), requestIDParam(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleList handles GET /verifications; ?subject= filters by token,
// otherwise only incomplete requests are listed.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		out []*models.Request
		err error
	)
	if subject := r.URL.Query().Get("subject"); subject != "" {
		out, err = h.service.ListBySubject(ctx, id.TokenID(subject))
	} else {
		out, err = h.service.ListActive(ctx)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Requests: out, Count: len(out)})
}

func (h *Handler) HandleOutcome(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDParam(r)
	outcome, err := h.service.Outcome(r.Context(), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OutcomeResponse{RequestID: requestID, Outcome: outcome})
}

func requestIDParam(r *http.Request) id.RequestID {
	return id.RequestID(chi.URLParam(r, "requestID"))
}
