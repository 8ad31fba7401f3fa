package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rwaledger/internal/verifier/metrics"
	"rwaledger/internal/verifier/models"
	"rwaledger/pkg/attrs"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	audit "rwaledger/pkg/platform/audit"
	"rwaledger/pkg/platform/sentinel"
	"rwaledger/pkg/platform/tracing"
	"rwaledger/pkg/requestcontext"
)

// Store persists verifiers. Execute loads a verifier, runs validate, and only
// then applies mutate and saves, atomically per verifier.
type Store interface {
	NextSequence(ctx context.Context) (int64, error)
	Create(ctx context.Context, v *models.Verifier) error
	FindByID(ctx context.Context, verifierID id.VerifierID) (*models.Verifier, error)
	List(ctx context.Context) ([]*models.Verifier, error)
	ListActive(ctx context.Context, minTier models.Tier) ([]*models.Verifier, error)
	Execute(ctx context.Context, verifierID id.VerifierID, validate func(*models.Verifier) error, mutate func(*models.Verifier)) (*models.Verifier, error)
}

// Leaderboard is an optional reputation read model.
type Leaderboard interface {
	Sync(ctx context.Context, v *models.Verifier) error
	Top(ctx context.Context, tier models.Tier, n int) ([]id.VerifierID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RegisterRequest describes a new verifier application.
type RegisterRequest struct {
	Name           string
	Tier           models.Tier
	Specialization string
}

// Service manages the verifier directory and assigns verifiers to requests.
type Service struct {
	store          Store
	leaderboard    Leaderboard
	policy         models.ReputationPolicy
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         tracing.Tracer
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

func WithLeaderboard(l Leaderboard) Option {
	return func(s *Service) {
		s.leaderboard = l
	}
}

func WithReputationPolicy(p models.ReputationPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: models.DefaultReputationPolicy(),
		tracer: tracing.New("rwaledger/internal/verifier"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a verifier in PENDING_APPROVAL with the neutral reputation
// and a two-year credential.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (_ *models.Verifier, err error) {
	ctx, span := s.tracer.Start(ctx, "verifier.Register", attribute.String("verifier.tier", string(req.Tier)))
	defer func() { tracing.End(span, err) }()

	seq, err := s.store.NextSequence(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate verifier sequence")
	}
	v, err := models.NewVerifier(models.NewVerifierID(req.Tier, req.Name, seq), req.Name, req.Tier, req.Specialization, seq, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.store.Create(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "verifier already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register verifier")
	}

	s.metrics.IncRegistered()
	s.logAudit(ctx, audit.EventVerifierRegistered,
		"verifier_id", v.ID,
		"tier", v.Tier,
		"specialization", v.Specialization)
	return v, nil
}

// Approve activates a pending verifier, making it eligible for assignment.
func (s *Service) Approve(ctx context.Context, verifierID id.VerifierID) (*models.Verifier, error) {
	return s.transition(ctx, verifierID, models.StatusActive, "", audit.EventVerifierApproved)
}

// Reject closes a pending application. Rejection is final.
func (s *Service) Reject(ctx context.Context, verifierID id.VerifierID, reason string) (*models.Verifier, error) {
	return s.transition(ctx, verifierID, models.StatusRejected, reason, audit.EventVerifierRejected)
}

// Suspend removes an active verifier from assignment.
func (s *Service) Suspend(ctx context.Context, verifierID id.VerifierID, reason string) (*models.Verifier, error) {
	return s.transition(ctx, verifierID, models.StatusSuspended, reason, audit.EventVerifierSuspended)
}

// Reinstate returns a suspended or inactive verifier to ACTIVE.
func (s *Service) Reinstate(ctx context.Context, verifierID id.VerifierID) (*models.Verifier, error) {
	return s.transition(ctx, verifierID, models.StatusActive, "", audit.EventVerifierReinstated)
}

func (s *Service) transition(ctx context.Context, verifierID id.VerifierID, to models.VerifierStatus, reason string, event audit.AuditEvent) (_ *models.Verifier, err error) {
	ctx, span := s.tracer.Start(ctx, "verifier.Transition",
		attribute.String("verifier.id", string(verifierID)),
		attribute.String("verifier.status", string(to)))
	defer func() { tracing.End(span, err) }()

	now := requestcontext.Now(ctx)
	v, err := s.store.Execute(ctx, verifierID,
		func(v *models.Verifier) error { return v.CanTransition(to) },
		func(v *models.Verifier) { v.ApplyTransition(to, reason, now) },
	)
	if err != nil {
		return nil, translate(err, "failed to update verifier")
	}

	s.syncLeaderboard(ctx, v)
	s.metrics.IncStatusTransition(string(to))
	s.logAudit(ctx, event,
		"verifier_id", v.ID,
		"status", v.Status,
		"reason", reason)
	return v, nil
}

// RenewCredentials replaces the credential expiry; it must lie in the future.
func (s *Service) RenewCredentials(ctx context.Context, verifierID id.VerifierID, expiry time.Time) (*models.Verifier, error) {
	now := requestcontext.Now(ctx)
	v, err := s.store.Execute(ctx, verifierID,
		func(v *models.Verifier) error { return v.CanRenewCredentials(expiry, now) },
		func(v *models.Verifier) { v.ApplyCredentialRenewal(expiry, now) },
	)
	if err != nil {
		return nil, translate(err, "failed to renew credentials")
	}
	s.logAudit(ctx, audit.EventVerifierCredentialsRenewed,
		"verifier_id", v.ID,
		"credential_expiry", v.CredentialExpiry.Format(time.RFC3339))
	return v, nil
}

// ListExpired returns every non-rejected verifier whose credentials lapsed at now.
func (s *Service) ListExpired(ctx context.Context, now time.Time) ([]*models.Verifier, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifiers")
	}
	var out []*models.Verifier
	for _, v := range all {
		if v.Status != models.StatusRejected && v.CredentialsExpired(now) {
			out = append(out, v)
		}
	}
	return out, nil
}

// AssignVerifiers picks count ACTIVE verifiers with unexpired credentials,
// tier at least requiredTier and a specialization covering assetType.
// Candidates are ranked by reputation, then registration order. Fewer than
// count candidates is an error; there is no partial assignment.
func (s *Service) AssignVerifiers(ctx context.Context, requiredTier models.Tier, assetType string, count int) (_ []*models.Verifier, err error) {
	ctx, span := s.tracer.Start(ctx, "verifier.AssignVerifiers",
		attribute.String("verifier.required_tier", string(requiredTier)),
		attribute.String("asset.type", assetType),
		attribute.Int("verifier.count", count))
	defer func() { tracing.End(span, err) }()
	start := time.Now()
	defer s.metrics.ObserveAssign(start)

	if count <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "verifier count must be positive")
	}
	if !requiredTier.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid tier: "+string(requiredTier))
	}

	active, err := s.store.ListActive(ctx, requiredTier)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active verifiers")
	}
	now := requestcontext.Now(ctx)
	candidates := make([]*models.Verifier, 0, len(active))
	for _, v := range active {
		if v.IsAssignable(now) && v.Tier.AtLeast(requiredTier) && v.Matches(assetType) {
			candidates = append(candidates, v)
		}
	}
	rankByReputation(candidates)

	if len(candidates) < count {
		s.metrics.IncAssignment("insufficient")
		return nil, dErrors.New(dErrors.CodeInsufficientVerifiers,
			fmt.Sprintf("insufficient verifiers: need %d, found %d", count, len(candidates)))
	}
	assigned := candidates[:count]

	s.metrics.IncAssignment("assigned")
	s.logAudit(ctx, audit.EventVerifiersAssigned,
		"subject", assetType,
		"required_tier", requiredTier,
		"assigned", len(assigned))
	return assigned, nil
}

// RecordPerformance scores a submitted result and folds it into the
// verifier's reputation and success counts.
func (s *Service) RecordPerformance(ctx context.Context, verifierID id.VerifierID, perf models.Performance) (*models.Verifier, error) {
	delta := s.policy.Delta(perf)
	now := requestcontext.Now(ctx)
	v, err := s.store.Execute(ctx, verifierID,
		func(*models.Verifier) error { return nil },
		func(v *models.Verifier) { v.ApplyPerformance(delta, perf.Verified, now) },
	)
	if err != nil {
		return nil, translate(err, "failed to record performance")
	}

	s.metrics.ObserveReputationDelta(delta)
	s.syncLeaderboard(ctx, v)
	s.logAudit(ctx, audit.EventReputationUpdated,
		"verifier_id", v.ID,
		"delta", fmt.Sprintf("%.2f", delta),
		"reputation", fmt.Sprintf("%.2f", v.Reputation))
	return v, nil
}

// MinimumTierFor maps a requested trust level to the lowest acceptable tier.
func (s *Service) MinimumTierFor(level models.TrustLevel) (models.Tier, error) {
	return level.MinimumTier()
}

func (s *Service) Get(ctx context.Context, verifierID id.VerifierID) (*models.Verifier, error) {
	v, err := s.store.FindByID(ctx, verifierID)
	if err != nil {
		return nil, translate(err, "failed to load verifier")
	}
	return v, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Verifier, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifiers")
	}
	return all, nil
}

// ListByTier returns verifiers of exactly tier, any status, in registration order.
func (s *Service) ListByTier(ctx context.Context, tier models.Tier) ([]*models.Verifier, error) {
	if !tier.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid tier: "+string(tier))
	}
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Verifier
	for _, v := range all {
		if v.Tier == tier {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	stats := &models.Stats{
		ByTier:   make(map[models.Tier]int),
		ByStatus: make(map[models.VerifierStatus]int),
	}
	var sum float64
	for _, v := range all {
		stats.Total++
		stats.ByTier[v.Tier]++
		stats.ByStatus[v.Status]++
		sum += v.Reputation
		if v.CredentialsExpired(now) {
			stats.ExpiredCredential++
		}
	}
	if stats.Total > 0 {
		stats.AverageReputation = sum / float64(stats.Total)
	}
	return stats, nil
}

// TopByReputation returns up to n ACTIVE verifiers of tier, best first. It
// reads the leaderboard when configured and falls back to the store.
func (s *Service) TopByReputation(ctx context.Context, tier models.Tier, n int) ([]*models.Verifier, error) {
	if !tier.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid tier: "+string(tier))
	}
	if n <= 0 {
		return nil, nil
	}
	if s.leaderboard != nil {
		ids, err := s.leaderboard.Top(ctx, tier, n)
		if err == nil {
			out := make([]*models.Verifier, 0, len(ids))
			for _, vid := range ids {
				v, err := s.store.FindByID(ctx, vid)
				if err != nil {
					continue
				}
				out = append(out, v)
			}
			return out, nil
		}
		s.logWarn(ctx, "leaderboard read failed, falling back to store", "error", err)
	}

	active, err := s.store.ListActive(ctx, tier)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active verifiers")
	}
	var out []*models.Verifier
	for _, v := range active {
		if v.Tier == tier {
			out = append(out, v)
		}
	}
	rankByReputation(out)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// rankByReputation orders by reputation desc, then registration sequence asc.
func rankByReputation(vs []*models.Verifier) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Reputation != vs[j].Reputation {
			return vs[i].Reputation > vs[j].Reputation
		}
		return vs[i].Sequence < vs[j].Sequence
	})
}

func (s *Service) syncLeaderboard(ctx context.Context, v *models.Verifier) {
	if s.leaderboard == nil {
		return
	}
	if err := s.leaderboard.Sync(ctx, v); err != nil {
		s.logWarn(ctx, "leaderboard sync failed", "verifier_id", v.ID, "error", err)
	}
}

// translate maps store sentinels to coded errors; coded errors pass through.
func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "verifier not found")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
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
	subject := attrs.ExtractString(attributes, "verifier_id")
	if subject == "" {
		subject = attrs.ExtractString(attributes, "subject")
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		ActorID:    string(requestcontext.ActorID(ctx)),
		Subject:    subject,
		Action:     string(event),
		Reason:     attrs.ExtractString(attributes, "reason"),
		RequestID:  requestcontext.RequestID(ctx),
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
		Attributes: attrs.ToStringMap(attributes, "verifier_id", "subject", "reason", "request_id"),
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "event", string(event), "error", err)
	}
}
