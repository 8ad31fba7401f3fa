package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rwaledger/internal/verification/metrics"
	"rwaledger/internal/verification/models"
	verifier "rwaledger/internal/verifier/models"
	"rwaledger/pkg/attrs"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	audit "rwaledger/pkg/platform/audit"
	"rwaledger/pkg/platform/sentinel"
	"rwaledger/pkg/platform/tracing"
	"rwaledger/pkg/requestcontext"
)

// Store persists verification requests with per-request atomic updates.
type Store interface {
	NextSequence(ctx context.Context) (int64, error)
	Save(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	ListActive(ctx context.Context) ([]*models.Request, error)
	ListBySubject(ctx context.Context, subject id.TokenID) ([]*models.Request, error)
	Execute(ctx context.Context, requestID id.RequestID, validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error)
}

// Assigner selects verifiers for a request.
type Assigner interface {
	MinimumTierFor(level verifier.TrustLevel) (verifier.Tier, error)
	AssignVerifiers(ctx context.Context, requiredTier verifier.Tier, assetType string, count int) ([]id.VerifierID, error)
}

// PerformanceRecorder feeds submitted results back into verifier reputation.
type PerformanceRecorder interface {
	RecordPerformance(ctx context.Context, verifierID id.VerifierID, perf verifier.Performance) error
}

// Notifier tells an assigned verifier about a new request.
type Notifier interface {
	NotifyAssigned(ctx context.Context, verifierID id.VerifierID, request *models.Request) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// SubmitResultRequest is one verifier's verdict on a request.
type SubmitResultRequest struct {
	VerifierID    id.VerifierID
	Verified      bool
	AchievedLevel verifier.TrustLevel
	Summary       string
}

const notifyTimeout = 10 * time.Second

// Service coordinates verification requests between token owners and the
// verifier directory.
type Service struct {
	store          Store
	assigner       Assigner
	performance    PerformanceRecorder
	notifier       Notifier
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         tracing.Tracer

	notifications sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func New(store Store, assigner Assigner, performance PerformanceRecorder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("verification store is required")
	}
	if assigner == nil {
		return nil, errors.New("assigner is required")
	}
	if performance == nil {
		return nil, errors.New("performance recorder is required")
	}
	s := &Service{
		store:       store,
		assigner:    assigner,
		performance: performance,
		tracer:      tracing.New("rwaledger/internal/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RequestVerification assigns verifierCount verifiers qualified for level and
// assetType, persists the request and notifies each verifier. Nothing is
// stored when assignment fails.
func (s *Service) RequestVerification(ctx context.Context, subject id.TokenID, assetType string, level verifier.TrustLevel, verifierCount int) (*models.Request, error) {
	return s.request(ctx, nil, subject, assetType, level, verifierCount)
}

// RequestVerificationForChange opens a request that backs one VVB change.
// Only its outcome can satisfy the evolution gate for that change.
func (s *Service) RequestVerificationForChange(ctx context.Context, changeID id.ChangeID, subject id.TokenID, assetType string, level verifier.TrustLevel, verifierCount int) (*models.Request, error) {
	if changeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "change ID is required")
	}
	return s.request(ctx, &changeID, subject, assetType, level, verifierCount)
}

func (s *Service) request(ctx context.Context, changeID *id.ChangeID, subject id.TokenID, assetType string, level verifier.TrustLevel, verifierCount int) (_ *models.Request, err error) {
	ctx, span := s.tracer.Start(ctx, "verification.RequestVerification",
		attribute.String("subject.id", string(subject)),
		attribute.String("trust.level", string(level)))
	defer func() { tracing.End(span, err) }()
	defer func() {
		if err != nil {
			s.metrics.IncRejected(string(dErrors.CodeOf(err)))
		}
	}()

	if subject == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject ID is required")
	}
	if strings.TrimSpace(assetType) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "asset type is required")
	}
	if verifierCount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "verifier count must be positive")
	}
	tier, err := s.assigner.MinimumTierFor(level)
	if err != nil {
		return nil, err
	}
	assigned, err := s.assigner.AssignVerifiers(ctx, tier, assetType, verifierCount)
	if err != nil {
		return nil, err
	}

	seq, err := s.store.NextSequence(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate request sequence")
	}
	req, err := models.NewRequest(models.NewRequestID(subject, seq), subject, assetType, level, tier, assigned, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	req.ChangeID = changeID
	if err := s.store.Save(ctx, req); err != nil {
		return nil, translate(err, "failed to save verification request")
	}

	s.metrics.IncCreated()
	s.logAudit(ctx, audit.EventVerificationRequested,
		"verification_request_id", req.ID,
		"subject", req.SubjectID,
		"required_tier", req.RequiredTier,
		"assigned", len(req.Assigned))
	s.notifyAll(ctx, req)
	return req, nil
}

// notifyAll dispatches one notification per assigned verifier without
// blocking the caller. Failures are logged and counted.
func (s *Service) notifyAll(ctx context.Context, req *models.Request) {
	if s.notifier == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	for _, vid := range req.Assigned {
		s.notifications.Add(1)
		go func(vid id.VerifierID) {
			defer s.notifications.Done()
			nctx, cancel := context.WithTimeout(detached, notifyTimeout)
			defer cancel()
			if err := s.notifier.NotifyAssigned(nctx, vid, req.Clone()); err != nil {
				s.metrics.IncNotifyFailure()
				if s.logger != nil {
					s.logger.WarnContext(nctx, "verifier notification failed",
						"verifier_id", vid,
						"verification_request_id", req.ID,
						"error", err)
				}
			}
		}(vid)
	}
}

// Wait blocks until in-flight notifications finish.
func (s *Service) Wait() {
	s.notifications.Wait()
}

// SubmitResult records a verdict from an assigned verifier. The request
// completes when every assigned verifier has answered.
func (s *Service) SubmitResult(ctx context.Context, requestID id.RequestID, req SubmitResultRequest) (_ *models.Request, err error) {
	ctx, span := s.tracer.Start(ctx, "verification.SubmitResult",
		attribute.String("verification.request_id", string(requestID)),
		attribute.String("verifier.id", string(req.VerifierID)))
	defer func() { tracing.End(span, err) }()

	if req.VerifierID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "verifier ID is required")
	}
	now := requestcontext.Now(ctx)
	result := models.Result{
		VerifierID:    req.VerifierID,
		Verified:      req.Verified,
		AchievedLevel: req.AchievedLevel,
		Summary:       req.Summary,
		SubmittedAt:   now,
	}
	updated, err := s.store.Execute(ctx, requestID,
		func(r *models.Request) error { return r.CanSubmit(req.VerifierID) },
		func(r *models.Request) { r.ApplyResult(result) },
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorizedVerifier) {
			s.metrics.IncUnauthorized()
			s.logAudit(ctx, audit.EventUnauthorizedVerifier,
				"verification_request_id", requestID,
				"verifier_id", req.VerifierID,
				"reason", "verifier not assigned")
		}
		return nil, translate(err, "failed to submit verification result")
	}

	s.metrics.IncResult(req.Verified)
	s.logAudit(ctx, audit.EventVerificationResult,
		"verification_request_id", updated.ID,
		"subject", updated.SubjectID,
		"verifier_id", req.VerifierID,
		"verified", req.Verified)

	perf := verifier.Performance{
		Verified:    req.Verified,
		Summary:     req.Summary,
		AssignedAt:  updated.RequestedAt,
		SubmittedAt: now,
	}
	if err := s.performance.RecordPerformance(ctx, req.VerifierID, perf); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to record verifier performance",
			"verifier_id", req.VerifierID,
			"error", err)
	}

	if updated.CompletedAt != nil {
		outcome := updated.Outcome()
		s.metrics.IncCompleted(string(outcome))
		s.logAudit(ctx, audit.EventVerificationCompleted,
			"verification_request_id", updated.ID,
			"subject", updated.SubjectID,
			"outcome", outcome,
			"results", len(updated.Results))
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	r, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		return nil, translate(err, "failed to load verification request")
	}
	return r, nil
}

// ListActive returns requests still collecting results.
func (s *Service) ListActive(ctx context.Context) ([]*models.Request, error) {
	rs, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification requests")
	}
	return rs, nil
}

func (s *Service) ListBySubject(ctx context.Context, subject id.TokenID) ([]*models.Request, error) {
	rs, err := s.store.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification requests")
	}
	return rs, nil
}

func (s *Service) Outcome(ctx context.Context, requestID id.RequestID) (models.Outcome, error) {
	r, err := s.Get(ctx, requestID)
	if err != nil {
		return "", err
	}
	return r.Outcome(), nil
}

// LatestOutcome reports the outcome of the most recent completed request for
// subject, or PENDING when none has completed.
func (s *Service) LatestOutcome(ctx context.Context, subject id.TokenID) (models.Outcome, error) {
	rs, err := s.ListBySubject(ctx, subject)
	if err != nil {
		return "", err
	}
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i].CompletedAt != nil {
			return rs[i].Outcome(), nil
		}
	}
	return models.OutcomePending, nil
}

// OutcomeForChange reports the outcome of the most recent completed request
// opened for changeID on subject, or PENDING when none has completed.
func (s *Service) OutcomeForChange(ctx context.Context, changeID id.ChangeID, subject id.TokenID) (models.Outcome, error) {
	rs, err := s.ListBySubject(ctx, subject)
	if err != nil {
		return "", err
	}
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i].BacksChange(changeID) && rs[i].CompletedAt != nil {
			return rs[i].Outcome(), nil
		}
	}
	return models.OutcomePending, nil
}

func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "verification request not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "verification request already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		ActorID:    string(requestcontext.ActorID(ctx)),
		Subject:    attrs.ExtractString(attributes, "verification_request_id"),
		Action:     string(event),
		Reason:     attrs.ExtractString(attributes, "reason"),
		RequestID:  requestcontext.RequestID(ctx),
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
		Attributes: attrs.ToStringMap(attributes, "verification_request_id", "reason", "request_id"),
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "event", string(event), "error", err)
	}
}
