package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rwaledger/internal/approval/metrics"
	"rwaledger/internal/approval/models"
	"rwaledger/pkg/attrs"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	audit "rwaledger/pkg/platform/audit"
	"rwaledger/pkg/platform/sentinel"
	"rwaledger/pkg/platform/tracing"
	"rwaledger/pkg/requestcontext"
)

// Store persists changes. Update is version-checked.
type Store interface {
	Create(ctx context.Context, c *models.Change) error
	FindByID(ctx context.Context, changeID id.ChangeID) (*models.Change, error)
	FindByIDForUpdate(ctx context.Context, changeID id.ChangeID) (*models.Change, error)
	Update(ctx context.Context, c *models.Change) error
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Change, error)
	List(ctx context.Context) ([]*models.Change, error)
}

// AuthorityLookup answers who may vote on which tier.
type AuthorityLookup interface {
	RoleOf(ctx context.Context, actor id.ActorID) (models.Role, error)
	IsAuthorizedForTier(ctx context.Context, actor id.ActorID, tier models.Tier) (bool, error)
}

// DeadlineIndex tracks voting deadlines of pending changes.
type DeadlineIndex interface {
	Track(ctx context.Context, changeID id.ChangeID, deadline time.Time) error
	Remove(ctx context.Context, changeID id.ChangeID) error
	Due(ctx context.Context, now time.Time) ([]id.ChangeID, error)
}

// EventPublisher fans domain events out to webhook subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Webhook event types.
const (
	EventApprovalRequestCreated = "APPROVAL_REQUEST_CREATED"
	EventVoteSubmitted          = "VOTE_SUBMITTED"
	EventConsensusReached       = "CONSENSUS_REACHED"
	EventApprovalRejected       = "APPROVAL_REJECTED"
	EventVotingWindowExpired    = "VOTING_WINDOW_EXPIRED"
)

// ChangeEvent is the webhook payload for approval events.
type ChangeEvent struct {
	ChangeID      id.ChangeID       `json:"changeId"`
	ParentTokenID id.TokenID        `json:"parentTokenId"`
	ChangeType    models.ChangeType `json:"changeType"`
	Tier          models.Tier       `json:"tier"`
	Status        models.Status     `json:"status"`
	ApproverID    id.ActorID        `json:"approverId,omitempty"`
	Decision      models.Verdict    `json:"decision,omitempty"`
	Approvals     int               `json:"approvals"`
	Required      int               `json:"required"`
	Deadline      *time.Time        `json:"deadline,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// DefaultVotingWindow is how long a submitted change collects decisions.
const DefaultVotingWindow = 7 * 24 * time.Hour

// Service runs the VVB approval state machine.
type Service struct {
	store          Store
	tx             StoreTx
	authority      AuthorityLookup
	deadlines      DeadlineIndex
	events         EventPublisher
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         tracing.Tracer
	window         time.Duration
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

// WithTx replaces the default in-memory sharded transaction.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithDeadlineIndex(index DeadlineIndex) Option {
	return func(s *Service) {
		s.deadlines = index
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

func WithVotingWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
	}
}

func New(store Store, authority AuthorityLookup, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("approval store is required")
	}
	if authority == nil {
		return nil, errors.New("authority lookup is required")
	}
	s := &Service{
		store:     store,
		authority: authority,
		tracer:    tracing.New("rwaledger/internal/approval"),
		window:    DefaultVotingWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(store)
	}
	return s, nil
}

// Create records a new change in CREATED. The tier is fixed by changeType.
func (s *Service) Create(ctx context.Context, parent id.TokenID, changeType models.ChangeType) (_ *models.Change, err error) {
	ctx, span := s.tracer.Start(ctx, "approval.Create",
		attribute.String("token.parent_id", string(parent)),
		attribute.String("change.type", string(changeType)))
	defer func() { tracing.End(span, err) }()

	if parent == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "parent token ID is required")
	}
	c, err := models.NewChange(id.NewChangeID(), parent, changeType, requestcontext.ActorID(ctx), requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, translate(err, "failed to create change")
	}

	s.metrics.IncCreated(string(c.Tier))
	s.logAudit(ctx, audit.EventChangeCreated,
		"change_id", c.ID,
		"parent_token_id", c.ParentTokenID,
		"change_type", c.ChangeType,
		"tier", c.Tier)
	return c, nil
}

// SubmitForApproval moves a change from CREATED to PENDING_VVB and starts
// the voting window.
func (s *Service) SubmitForApproval(ctx context.Context, changeID id.ChangeID) (_ *models.Change, err error) {
	ctx, span := s.tracer.Start(ctx, "approval.SubmitForApproval",
		attribute.String("change.id", changeID.String()))
	defer func() { tracing.End(span, err) }()

	now := requestcontext.Now(ctx)
	var submitted *models.Change
	err = s.tx.RunInTx(withChangeKey(ctx, changeID), func(store Store) error {
		c, err := store.FindByIDForUpdate(ctx, changeID)
		if err != nil {
			return err
		}
		if err := c.CanSubmit(); err != nil {
			return err
		}
		c.ApplySubmit(now, s.window)
		if err := store.Update(ctx, c); err != nil {
			return err
		}
		submitted = c
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to submit change")
	}

	if s.deadlines != nil {
		if err := s.deadlines.Track(ctx, submitted.ID, *submitted.Deadline); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to index change deadline", "change_id", submitted.ID, "error", err)
		}
	}
	s.logAudit(ctx, audit.EventChangeSubmitted,
		"change_id", submitted.ID,
		"tier", submitted.Tier,
		"deadline", submitted.Deadline.Format(time.RFC3339))
	s.publish(ctx, EventApprovalRequestCreated, s.changeEvent(submitted, now))
	return submitted, nil
}

// decisionResult tells RecordDecision what happened inside the transaction.
type decisionResult struct {
	change  *models.Change
	noop    bool
	expired bool
}

// RecordDecision applies one approver's vote. A decision on a terminal change
// returns the change unchanged. A change past its deadline is archived
// instead of accepting the vote. A repeat vote by the same approver is ignored.
func (s *Service) RecordDecision(ctx context.Context, changeID id.ChangeID, approver id.ActorID, verdict models.Verdict, reason string) (_ *models.Change, err error) {
	ctx, span := s.tracer.Start(ctx, "approval.RecordDecision",
		attribute.String("change.id", changeID.String()),
		attribute.String("approver.id", string(approver)),
		attribute.String("decision", string(verdict)))
	defer func() { tracing.End(span, err) }()

	if approver == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "approver ID is required")
	}
	if verdict != models.VerdictApproved && verdict != models.VerdictRejected {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be APPROVED or REJECTED")
	}

	now := requestcontext.Now(ctx)
	var res decisionResult
	err = s.tx.RunInTx(withChangeKey(ctx, changeID), func(store Store) error {
		c, err := store.FindByIDForUpdate(ctx, changeID)
		if err != nil {
			return err
		}
		if c.IsTerminal() {
			res = decisionResult{change: c, noop: true}
			return nil
		}
		if c.IsExpired(now, s.window) {
			c.ApplyExpiry(now)
			if err := store.Update(ctx, c); err != nil {
				return err
			}
			res = decisionResult{change: c, expired: true}
			return nil
		}
		if err := c.CanDecide(); err != nil {
			return err
		}
		role, err := s.authorize(ctx, approver, c.Tier)
		if err != nil {
			return err
		}
		changed := c.ApplyDecision(models.Decision{
			ApproverID: approver,
			Role:       role,
			Verdict:    verdict,
			Reason:     reason,
			DecidedAt:  now,
		})
		if !changed {
			res = decisionResult{change: c, noop: true}
			return nil
		}
		if err := store.Update(ctx, c); err != nil {
			return err
		}
		res = decisionResult{change: c}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorizedApprover) {
			s.metrics.IncUnauthorized()
			s.logAudit(ctx, audit.EventUnauthorizedApprover,
				"change_id", changeID,
				"approver_id", approver,
				"reason", "approver lacks authority for tier")
		}
		return nil, translate(err, "failed to record decision")
	}

	c := res.change
	switch {
	case res.noop:
		return c, nil
	case res.expired:
		s.onArchived(ctx, c, now)
		return c, nil
	}

	s.metrics.IncDecision(string(c.Tier), string(verdict))
	s.logAudit(ctx, audit.EventApprovalDecision,
		"change_id", c.ID,
		"approver_id", approver,
		"decision", verdict,
		"reason", reason,
		"status", c.Status)
	ev := s.changeEvent(c, now)
	ev.ApproverID = approver
	ev.Decision = verdict
	s.publish(ctx, EventVoteSubmitted, ev)

	switch c.Status {
	case models.StatusApproved:
		s.onTerminal(ctx, c)
		s.logAudit(ctx, audit.EventChangeApproved, "change_id", c.ID, "tier", c.Tier, "approvals", len(c.Decisions))
		s.publish(ctx, EventConsensusReached, s.changeEvent(c, now))
	case models.StatusRejected:
		s.onTerminal(ctx, c)
		s.logAudit(ctx, audit.EventChangeRejected, "change_id", c.ID, "approver_id", approver, "reason", reason)
		s.publish(ctx, EventApprovalRejected, ev)
	}
	return c, nil
}

// authorize resolves approver's role and checks it against tier.
func (s *Service) authorize(ctx context.Context, approver id.ActorID, tier models.Tier) (models.Role, error) {
	ok, err := s.authority.IsAuthorizedForTier(ctx, approver, tier)
	if err != nil {
		return models.RoleNone, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check approver authority")
	}
	if !ok {
		return models.RoleNone, dErrors.New(dErrors.CodeUnauthorizedApprover, "approver "+string(approver)+" is not authorized for "+string(tier)+" changes")
	}
	role, err := s.authority.RoleOf(ctx, approver)
	if err != nil {
		return models.RoleNone, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve approver role")
	}
	return role, nil
}

// CheckExpiry archives the change when its voting window has passed at now.
// Expiry is pull-based: nothing happens until this, a decision or a sweep
// observes the change.
func (s *Service) CheckExpiry(ctx context.Context, changeID id.ChangeID, now time.Time) (*models.Change, error) {
	c, _, err := s.checkExpiry(ctx, changeID, now)
	return c, err
}

func (s *Service) checkExpiry(ctx context.Context, changeID id.ChangeID, now time.Time) (_ *models.Change, archived bool, err error) {
	ctx, span := s.tracer.Start(ctx, "approval.CheckExpiry",
		attribute.String("change.id", changeID.String()))
	defer func() { tracing.End(span, err) }()

	var current *models.Change
	err = s.tx.RunInTx(withChangeKey(ctx, changeID), func(store Store) error {
		c, err := store.FindByIDForUpdate(ctx, changeID)
		if err != nil {
			return err
		}
		current = c
		if !c.IsExpired(now, s.window) {
			return nil
		}
		c.ApplyExpiry(now)
		if err := store.Update(ctx, c); err != nil {
			return err
		}
		archived = true
		return nil
	})
	if err != nil {
		return nil, false, translate(err, "failed to check change expiry")
	}
	if archived {
		s.onArchived(ctx, current, now)
	} else if current.IsTerminal() && s.deadlines != nil {
		_ = s.deadlines.Remove(ctx, current.ID)
	}
	return current, archived, nil
}

// SweepExpired archives every pending change whose window has passed and
// returns how many were archived. With a deadline index only due changes are
// read; otherwise all pending changes are scanned.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.expiryCandidates(ctx, now)
	if err != nil {
		return 0, err
	}
	archived := 0
	for _, changeID := range candidates {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		_, ok, err := s.checkExpiry(ctx, changeID, now)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				if s.deadlines != nil {
					_ = s.deadlines.Remove(ctx, changeID)
				}
				continue
			}
			return archived, err
		}
		if ok {
			archived++
		}
	}
	if pending, err := s.store.ListByStatus(ctx, models.StatusPendingVVB); err == nil {
		s.metrics.SetPending(len(pending))
	}
	if archived > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "expired changes archived", "count", archived)
	}
	return archived, nil
}

func (s *Service) expiryCandidates(ctx context.Context, now time.Time) ([]id.ChangeID, error) {
	if s.deadlines != nil {
		ids, err := s.deadlines.Due(ctx, now)
		if err == nil {
			return ids, nil
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "deadline index unavailable, scanning store", "error", err)
		}
	}
	pending, err := s.store.ListByStatus(ctx, models.StatusPendingVVB)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending changes")
	}
	var out []id.ChangeID
	for _, c := range pending {
		if c.IsExpired(now, s.window) {
			out = append(out, c.ID)
		}
	}
	return out, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done. It
// returns at once when interval is not positive.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "approval sweeper not started", "interval", interval)
		}
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if _, err := s.SweepExpired(ctx, t); err != nil && s.logger != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "approval sweep failed", "error", err)
			}
		}
	}
}

func (s *Service) onArchived(ctx context.Context, c *models.Change, now time.Time) {
	s.onTerminal(ctx, c)
	s.logAudit(ctx, audit.EventChangeArchived,
		"change_id", c.ID,
		"tier", c.Tier,
		"reason", "voting window expired")
	s.publish(ctx, EventVotingWindowExpired, s.changeEvent(c, now))
}

func (s *Service) onTerminal(ctx context.Context, c *models.Change) {
	s.metrics.IncTerminal(string(c.Status))
	if s.deadlines == nil {
		return
	}
	if err := s.deadlines.Remove(ctx, c.ID); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to drop change deadline", "change_id", c.ID, "error", err)
	}
}

func (s *Service) Get(ctx context.Context, changeID id.ChangeID) (*models.Change, error) {
	c, err := s.store.FindByID(ctx, changeID)
	if err != nil {
		return nil, translate(err, "failed to load change")
	}
	return c, nil
}

func (s *Service) ListPending(ctx context.Context) ([]*models.Change, error) {
	cs, err := s.store.ListByStatus(ctx, models.StatusPendingVVB)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending changes")
	}
	return cs, nil
}

// ListPendingForApprover returns pending changes approver may vote on and
// has not voted on yet.
func (s *Service) ListPendingForApprover(ctx context.Context, approver id.ActorID) ([]*models.Change, error) {
	role, err := s.authority.RoleOf(ctx, approver)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve approver role")
	}
	if role == models.RoleNone {
		return []*models.Change{}, nil
	}
	pending, err := s.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Change, 0, len(pending))
	for _, c := range pending {
		if role.EligibleFor(c.Tier) && !c.HasDecided(approver) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	cs, err := s.store.List(ctx)
	if err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list changes")
	}
	stats := models.Stats{
		Total:    len(cs),
		ByStatus: make(map[models.Status]int),
		ByTier:   make(map[models.Tier]int),
	}
	for _, c := range cs {
		stats.ByStatus[c.Status]++
		stats.ByTier[c.Tier]++
	}
	approved := stats.ByStatus[models.StatusApproved]
	decided := approved + stats.ByStatus[models.StatusRejected] + stats.ByStatus[models.StatusArchived]
	if decided > 0 {
		stats.ApprovalRate = float64(approved) / float64(decided)
	}
	return stats, nil
}

// ApprovedFor reports whether changeID reached APPROVED for the given token.
// An unknown change is simply not approved.
func (s *Service) ApprovedFor(ctx context.Context, changeID id.ChangeID, token id.TokenID) (bool, error) {
	c, err := s.store.FindByID(ctx, changeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load change")
	}
	return c.Status == models.StatusApproved && c.ParentTokenID == token, nil
}

func (s *Service) changeEvent(c *models.Change, now time.Time) ChangeEvent {
	approvals, _ := c.Approvals()
	return ChangeEvent{
		ChangeID:      c.ID,
		ParentTokenID: c.ParentTokenID,
		ChangeType:    c.ChangeType,
		Tier:          c.Tier,
		Status:        c.Status,
		Approvals:     approvals,
		Required:      c.Tier.Policy().RequiredApprovers,
		Deadline:      c.Deadline,
		OccurredAt:    now,
	}
}

func (s *Service) publish(ctx context.Context, eventType string, payload ChangeEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, payload); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to publish approval event",
			"event_type", eventType,
			"change_id", payload.ChangeID,
			"error", err)
	}
}

func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "change not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "change was modified concurrently")
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
		Subject:    attrs.ExtractString(attributes, "change_id"),
		Action:     string(event),
		Reason:     attrs.ExtractString(attributes, "reason"),
		RequestID:  requestcontext.RequestID(ctx),
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
		Attributes: attrs.ToStringMap(attributes, "change_id", "reason", "request_id"),
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "event", string(event), "error", err)
	}
}
