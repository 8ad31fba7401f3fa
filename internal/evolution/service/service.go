package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rwaledger/internal/evolution/gate"
	"rwaledger/internal/evolution/metrics"
	"rwaledger/internal/evolution/models"
	"rwaledger/pkg/attrs"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	audit "rwaledger/pkg/platform/audit"
	"rwaledger/pkg/platform/sentinel"
	"rwaledger/pkg/platform/tracing"
	"rwaledger/pkg/requestcontext"
)

// Store persists chains with per-chain atomic updates.
type Store interface {
	Create(ctx context.Context, c *models.Chain) error
	FindByID(ctx context.Context, compositeID id.TokenID) (*models.Chain, error)
	List(ctx context.Context) ([]*models.Chain, error)
	Execute(ctx context.Context, compositeID id.TokenID, validate func(*models.Chain) error, mutate func(*models.Chain)) (*models.Chain, error)
}

// Authorizer is the verification gate consulted before every evolution.
type Authorizer interface {
	Authorize(ctx context.Context, req gate.Request) (gate.Decision, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// EventTokenEvolved is published after a snapshot is committed.
const EventTokenEvolved = "TOKEN_EVOLVED"

// unauthorizedActor is the identity the upstream auth layer assigns to
// callers it could not authenticate.
const unauthorizedActor id.ActorID = "UNAUTHORIZED"

// SnapshotInput seeds a chain at initialization.
type SnapshotInput struct {
	TokenType models.TokenType
	Data      map[string]any
}

// EvolveRequest proposes a new snapshot. ChangeID links the approved VVB
// change that backs it, when there is one.
type EvolveRequest struct {
	TokenType models.TokenType
	Data      map[string]any
	Reason    models.Reason
	Actor     id.ActorID
	ChangeID  *id.ChangeID
}

// EvolvedEvent is the webhook payload for committed snapshots.
type EvolvedEvent struct {
	CompositeID  id.TokenID       `json:"compositeId"`
	SnapshotID   id.SnapshotID    `json:"snapshotId"`
	TokenType    models.TokenType `json:"tokenType"`
	ContentHash  string           `json:"contentHash"`
	PreviousHash string           `json:"previousHash,omitempty"`
	Reason       models.Reason    `json:"reason"`
	Actor        id.ActorID       `json:"actor"`
	OccurredAt   time.Time        `json:"occurredAt"`
}

// Service manages evolution chains.
type Service struct {
	store          Store
	authorizer     Authorizer
	events         EventPublisher
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         tracing.Tracer
	maxDelta       float64
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

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

// WithMaxValuationDelta sets the largest fractional change one revaluation may make.
func WithMaxValuationDelta(delta float64) Option {
	return func(s *Service) {
		if delta > 0 {
			s.maxDelta = delta
		}
	}
}

func New(store Store, authorizer Authorizer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("evolution store is required")
	}
	if authorizer == nil {
		return nil, errors.New("authorizer is required")
	}
	s := &Service{
		store:      store,
		authorizer: authorizer,
		tracer:     tracing.New("rwaledger/internal/evolution"),
		maxDelta:   models.DefaultMaxValuationDelta,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initialize anchors a chain for (primary, composite). Initial snapshots are
// committed in order by the system actor.
func (s *Service) Initialize(ctx context.Context, primary, composite id.TokenID, initial []SnapshotInput) (_ *models.Chain, err error) {
	ctx, span := s.tracer.Start(ctx, "evolution.Initialize",
		attribute.String("token.primary_id", string(primary)),
		attribute.String("token.composite_id", string(composite)))
	defer func() { tracing.End(span, err) }()

	now := requestcontext.Now(ctx)
	chain, err := models.NewChain(primary, composite, now)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	for _, in := range initial {
		if _, err := models.ParseTokenType(string(in.TokenType)); err != nil {
			return nil, err
		}
		if err := models.ValidateData(in.TokenType, in.Data, chain, s.maxDelta); err != nil {
			return nil, err
		}
		snap, err := models.NewSnapshot(id.NewSnapshotID(), in.TokenType, in.Data, models.ReasonManual, models.SystemActor)
		if err != nil {
			return nil, err
		}
		chain.Append(snap, now)
	}
	if err := s.store.Create(ctx, chain); err != nil {
		return nil, translate(err, "failed to create evolution chain")
	}

	s.metrics.IncInitialized()
	s.logAudit(ctx, audit.EventChainInitialized,
		"composite_id", composite,
		"primary_id", primary,
		"integrity_hash", chain.IntegrityHash,
		"snapshots", len(chain.Snapshots()))
	return chain, nil
}

// VerifyIntegrity recomputes the anchor hash of the chain. A mismatch is
// reported as false and audited; it is not an error.
func (s *Service) VerifyIntegrity(ctx context.Context, composite id.TokenID) (bool, error) {
	chain, err := s.get(ctx, composite)
	if err != nil {
		return false, err
	}
	if chain.VerifyIntegrity() {
		return true, nil
	}
	s.reportIntegrityViolation(ctx, chain, "integrity anchor mismatch")
	return false, nil
}

// Evolve commits a new snapshot after the verification gate and the domain
// rule for req.TokenType accept it. The previous snapshot is closed at the
// same instant the new one opens.
func (s *Service) Evolve(ctx context.Context, composite id.TokenID, req EvolveRequest) (_ *models.Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "evolution.Evolve",
		attribute.String("token.composite_id", string(composite)),
		attribute.String("token.type", string(req.TokenType)))
	defer func() { tracing.End(span, err) }()
	defer func() {
		if err != nil {
			s.metrics.IncDenied(string(dErrors.CodeOf(err)))
		}
	}()

	actor := id.ActorID(strings.TrimSpace(string(req.Actor)))
	if actor == "" || actor == unauthorizedActor {
		s.logAudit(ctx, audit.EventEvolutionDenied,
			"composite_id", composite,
			"actor", req.Actor,
			"reason", "actor not authorized")
		return nil, dErrors.New(dErrors.CodeForbidden, "actor is not authorized to evolve tokens")
	}
	if _, err := models.ParseTokenType(string(req.TokenType)); err != nil {
		return nil, err
	}
	reason := req.Reason
	if reason == "" {
		reason = models.ReasonManual
	}
	if _, err := models.ParseReason(string(reason)); err != nil {
		return nil, err
	}

	chain, err := s.get(ctx, composite)
	if err != nil {
		return nil, err
	}
	if !chain.VerifyIntegrity() {
		s.reportIntegrityViolation(ctx, chain, "integrity anchor mismatch")
		return nil, dErrors.New(dErrors.CodeIntegrityViolation, "integrity check failed for chain "+string(composite))
	}

	decision, err := s.authorizer.Authorize(ctx, gate.Request{Chain: chain, Data: req.Data, ChangeID: req.ChangeID})
	if err != nil {
		return nil, err
	}
	if decision.RWA && s.logger != nil {
		s.logger.InfoContext(ctx, "rwa verification check",
			"composite_id", composite,
			"mode", decision.Mode,
			"verified", decision.Verified,
			"allowed", decision.Allowed,
			"detail", decision.Reason)
	}
	if !decision.Allowed {
		s.logAudit(ctx, audit.EventEvolutionDenied,
			"composite_id", composite,
			"token_type", req.TokenType,
			"mode", decision.Mode,
			"reason", decision.Reason)
		return nil, dErrors.New(dErrors.CodeVerificationRequired, "verification required: "+decision.Reason)
	}

	snap, err := models.NewSnapshot(id.NewSnapshotID(), req.TokenType, req.Data, reason, actor)
	if err != nil {
		return nil, err
	}
	if req.ChangeID != nil {
		changeID := *req.ChangeID
		snap.ChangeID = &changeID
	}
	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, composite,
		func(c *models.Chain) error {
			if !c.VerifyIntegrity() {
				return dErrors.New(dErrors.CodeIntegrityViolation, "integrity check failed for chain "+string(composite))
			}
			if req.ChangeID != nil && c.HasChange(*req.ChangeID) {
				return dErrors.New(dErrors.CodeConflict, "change "+req.ChangeID.String()+" already backs a snapshot")
			}
			return models.ValidateData(req.TokenType, req.Data, c, s.maxDelta)
		},
		func(c *models.Chain) { c.Append(snap, now) },
	)
	if err != nil {
		return nil, translate(err, "failed to evolve chain")
	}

	committed := updated.Current.Clone()
	s.metrics.IncEvolved(string(committed.TokenType), len(updated.History)+1)
	s.logAudit(ctx, audit.EventChainEvolved,
		"composite_id", composite,
		"snapshot_id", committed.ID,
		"token_type", committed.TokenType,
		"evolution_reason", committed.Reason,
		"content_hash", committed.ContentHash,
		"verified", decision.Verified)
	s.publish(ctx, EvolvedEvent{
		CompositeID:  composite,
		SnapshotID:   committed.ID,
		TokenType:    committed.TokenType,
		ContentHash:  committed.ContentHash,
		PreviousHash: committed.PreviousHash,
		Reason:       committed.Reason,
		Actor:        committed.Actor,
		OccurredAt:   now,
	})
	return committed, nil
}

// History returns every snapshot of the chain with integrity and link checks.
func (s *Service) History(ctx context.Context, composite id.TokenID) (*models.History, error) {
	chain, err := s.get(ctx, composite)
	if err != nil {
		return nil, err
	}
	return &models.History{
		PrimaryID:      chain.PrimaryID,
		CompositeID:    chain.CompositeID,
		IntegrityHash:  chain.IntegrityHash,
		IntegrityValid: chain.VerifyIntegrity(),
		LinksValid:     chain.VerifyLinks() == nil,
		Current:        chain.Current,
		History:        chain.History,
	}, nil
}

// SnapshotAt returns the snapshot of tokenType that was effective at at.
func (s *Service) SnapshotAt(ctx context.Context, composite id.TokenID, tokenType models.TokenType, at time.Time) (*models.Snapshot, error) {
	chain, err := s.get(ctx, composite)
	if err != nil {
		return nil, err
	}
	snap := chain.SnapshotAt(tokenType, at)
	if snap == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no "+string(tokenType)+" snapshot effective at "+at.UTC().Format(time.RFC3339))
	}
	return snap, nil
}

// SetVerificationMode overrides the default gate mode for one chain.
func (s *Service) SetVerificationMode(ctx context.Context, composite id.TokenID, mode models.VerificationMode) (*models.Chain, error) {
	if _, err := models.ParseVerificationMode(string(mode)); err != nil {
		return nil, err
	}
	updated, err := s.store.Execute(ctx, composite,
		func(*models.Chain) error { return nil },
		func(c *models.Chain) { c.Mode = mode },
	)
	if err != nil {
		return nil, translate(err, "failed to set verification mode")
	}
	s.logAudit(ctx, audit.EventVerificationModeSet,
		"composite_id", composite,
		"mode", mode)
	return updated, nil
}

// VerifyLinks checks every content hash and previous-hash link of the chain.
func (s *Service) VerifyLinks(ctx context.Context, composite id.TokenID) error {
	chain, err := s.get(ctx, composite)
	if err != nil {
		return err
	}
	if err := chain.VerifyLinks(); err != nil {
		s.reportIntegrityViolation(ctx, chain, err.Error())
		return err
	}
	return nil
}

func (s *Service) Get(ctx context.Context, composite id.TokenID) (*models.Chain, error) {
	return s.get(ctx, composite)
}

func (s *Service) List(ctx context.Context) ([]*models.Chain, error) {
	cs, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list evolution chains")
	}
	return cs, nil
}

func (s *Service) get(ctx context.Context, composite id.TokenID) (*models.Chain, error) {
	if composite == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "composite token ID is required")
	}
	chain, err := s.store.FindByID(ctx, composite)
	if err != nil {
		return nil, translate(err, "failed to load evolution chain")
	}
	return chain, nil
}

func (s *Service) reportIntegrityViolation(ctx context.Context, chain *models.Chain, detail string) {
	s.metrics.IncIntegrityViolation()
	s.logAudit(ctx, audit.EventIntegrityViolation,
		"composite_id", chain.CompositeID,
		"primary_id", chain.PrimaryID,
		"reason", detail)
}

func (s *Service) publish(ctx context.Context, ev EvolvedEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, EventTokenEvolved, ev); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to publish evolution event",
			"composite_id", ev.CompositeID,
			"error", err)
	}
}

func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "evolution chain not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "evolution chain already exists")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
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
		Subject:    attrs.ExtractString(attributes, "composite_id"),
		Action:     string(event),
		Reason:     attrs.ExtractString(attributes, "reason"),
		RequestID:  requestcontext.RequestID(ctx),
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
		Attributes: attrs.ToStringMap(attributes, "composite_id", "reason", "request_id"),
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "event", string(event), "error", err)
	}
}
