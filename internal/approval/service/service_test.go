package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AuthorityLookup,DeadlineIndex,EventPublisher,AuditPublisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rwaledger/internal/approval/authority"
	"rwaledger/internal/approval/metrics"
	"rwaledger/internal/approval/models"
	"rwaledger/internal/approval/service/mocks"
	"rwaledger/internal/approval/store"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	audit "rwaledger/pkg/platform/audit"
	"rwaledger/pkg/platform/sentinel"
	"rwaledger/pkg/requestcontext"
)

// =============================================================================
// Approval State Machine Test Suite
// =============================================================================
// Runs the in-memory store behind the sharded tx with a static role directory.

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) Publish(_ context.Context, eventType string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recordingEvents) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type ApprovalSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *store.InMemory
	events  *recordingEvents
	metrics *metrics.Metrics
	service *Service
}

func TestApprovalSuite(t *testing.T) {
	suite.Run(t, new(ApprovalSuite))
}

func (s *ApprovalSuite) SetupTest() {
	s.now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithActorID(requestcontext.WithTime(context.Background(), s.now), "owner-1")
	s.store = store.NewInMemory()
	s.events = &recordingEvents{}
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())

	directory := authority.NewDirectory(
		[]string{"admin-1", "admin-2", "admin-3"},
		[]string{"validator-1", "validator-2"},
	)
	var err error
	s.service, err = New(s.store, directory,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithEventPublisher(s.events),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

func (s *ApprovalSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(s.ctx, s.now.Add(d))
}

func (s *ApprovalSuite) pending(ct models.ChangeType) *models.Change {
	c, err := s.service.Create(s.ctx, "CT-0001", ct)
	s.Require().NoError(err)
	c, err = s.service.SubmitForApproval(s.ctx, c.ID)
	s.Require().NoError(err)
	return c
}

func (s *ApprovalSuite) decide(c *models.Change, approver id.ActorID, verdict models.Verdict) *models.Change {
	out, err := s.service.RecordDecision(s.at(time.Hour), c.ID, approver, verdict, "")
	s.Require().NoError(err)
	return out
}

func (s *ApprovalSuite) TestNew() {
	_, err := New(nil, authority.NewDirectory(nil, nil))
	s.Error(err)
	_, err = New(store.NewInMemory(), nil)
	s.Error(err)
}

func (s *ApprovalSuite) TestCreate() {
	s.Run("tier is derived from the change type", func() {
		c, err := s.service.Create(s.ctx, "CT-0001", models.ChangePrimaryTokenRetire)
		s.Require().NoError(err)
		s.Equal(models.StatusCreated, c.Status)
		s.Equal(models.TierCritical, c.Tier)
		s.Equal(id.ActorID("owner-1"), c.CreatedBy)
		s.Equal(s.now, c.CreatedAt)
	})

	s.Run("unknown change type is rejected", func() {
		_, err := s.service.Create(s.ctx, "CT-0001", models.ChangeType("BURN_IT_ALL"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidChangeType))
		s.Contains(err.Error(), "unknown change type: BURN_IT_ALL")
	})

	s.Run("parent token is required", func() {
		_, err := s.service.Create(s.ctx, "", models.ChangeSecondaryTokenCreate)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ApprovalSuite) TestSubmitForApproval() {
	c, err := s.service.Create(s.ctx, "CT-0001", models.ChangeSecondaryTokenCreate)
	s.Require().NoError(err)

	submitted, err := s.service.SubmitForApproval(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPendingVVB, submitted.Status)
	s.Require().NotNil(submitted.Deadline)
	s.Equal(s.now.Add(DefaultVotingWindow), *submitted.Deadline)
	s.Equal([]string{EventApprovalRequestCreated}, s.events.list())

	_, err = s.service.SubmitForApproval(s.ctx, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = s.service.SubmitForApproval(s.ctx, id.NewChangeID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ApprovalSuite) TestStandardApproval() {
	c := s.pending(models.ChangeSecondaryTokenUpdate)

	out := s.decide(c, "validator-1", models.VerdictApproved)
	s.Equal(models.StatusApproved, out.Status)
	s.Require().Len(out.Decisions, 1)
	s.Equal(models.RoleValidator, out.Decisions[0].Role)
	s.Equal([]string{EventApprovalRequestCreated, EventVoteSubmitted, EventConsensusReached}, s.events.list())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Terminal.WithLabelValues(string(models.StatusApproved))))

	ok, err := s.service.ApprovedFor(s.ctx, c.ID, "CT-0001")
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.service.ApprovedFor(s.ctx, c.ID, "CT-0002")
	s.Require().NoError(err)
	s.False(ok, "approval is bound to its parent token")
}

func (s *ApprovalSuite) TestElevatedNeedsAnAdmin() {
	c := s.pending(models.ChangeSecondaryTokenRetire)

	s.Equal(models.StatusPendingVVB, s.decide(c, "validator-1", models.VerdictApproved).Status)
	s.Equal(models.StatusPendingVVB, s.decide(c, "validator-2", models.VerdictApproved).Status)
	out := s.decide(c, "admin-1", models.VerdictApproved)
	s.Equal(models.StatusApproved, out.Status)
	s.Len(out.Decisions, 3)
}

func (s *ApprovalSuite) TestCriticalNeedsTwoAdmins() {
	c := s.pending(models.ChangePrimaryTokenRetire)

	s.Equal(models.StatusPendingVVB, s.decide(c, "admin-1", models.VerdictApproved).Status)
	s.Equal(models.StatusPendingVVB, s.decide(c, "validator-1", models.VerdictApproved).Status)
	s.Equal(models.StatusPendingVVB, s.decide(c, "validator-2", models.VerdictApproved).Status)
	s.Equal(models.StatusApproved, s.decide(c, "admin-2", models.VerdictApproved).Status)
}

func (s *ApprovalSuite) TestDuplicateApprovalCountsOnce() {
	c := s.pending(models.ChangeTokenSuspension)

	s.decide(c, "admin-1", models.VerdictApproved)
	out := s.decide(c, "admin-1", models.VerdictApproved)
	s.Equal(models.StatusPendingVVB, out.Status)
	s.Len(out.Decisions, 1)

	s.Run("a later rejection by the same approver is ignored", func() {
		out := s.decide(c, "admin-1", models.VerdictRejected)
		s.Equal(models.StatusPendingVVB, out.Status)
		s.Len(out.Decisions, 1)
	})
}

func (s *ApprovalSuite) TestSingleRejectionIsTerminal() {
	c := s.pending(models.ChangePrimaryTokenRetire)
	s.decide(c, "admin-1", models.VerdictApproved)

	out, err := s.service.RecordDecision(s.at(time.Hour), c.ID, "validator-1", models.VerdictRejected, "valuation evidence missing")
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, out.Status)
	s.Contains(s.events.list(), EventApprovalRejected)

	s.Run("decisions on a terminal change return it unchanged", func() {
		again, err := s.service.RecordDecision(s.at(2*time.Hour), c.ID, "admin-2", models.VerdictApproved, "")
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, again.Status)
		s.Equal(out.Decisions, again.Decisions)
		s.Equal(out.Version, again.Version)
	})
}

func (s *ApprovalSuite) TestUnauthorizedApprover() {
	c := s.pending(models.ChangeSecondaryTokenCreate)

	_, err := s.service.RecordDecision(s.at(time.Hour), c.ID, "random-user", models.VerdictApproved, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorizedApprover))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.UnauthorizedVotes))

	stored, err := s.service.Get(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Empty(stored.Decisions)
	s.Equal(models.StatusPendingVVB, stored.Status)
}

func (s *ApprovalSuite) TestDecisionValidation() {
	created, err := s.service.Create(s.ctx, "CT-0001", models.ChangeSecondaryTokenCreate)
	s.Require().NoError(err)

	s.Run("decision before submission", func() {
		_, err := s.service.RecordDecision(s.ctx, created.ID, "validator-1", models.VerdictApproved, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
	s.Run("missing approver", func() {
		_, err := s.service.RecordDecision(s.ctx, created.ID, "", models.VerdictApproved, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("unknown verdict", func() {
		_, err := s.service.RecordDecision(s.ctx, created.ID, "validator-1", models.Verdict("MAYBE"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("unknown change", func() {
		_, err := s.service.RecordDecision(s.ctx, id.NewChangeID(), "validator-1", models.VerdictApproved, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ApprovalSuite) TestExpiry() {
	c := s.pending(models.ChangeTokenSuspension)

	s.Run("the deadline instant is still open", func() {
		out, err := s.service.CheckExpiry(s.ctx, c.ID, s.now.Add(DefaultVotingWindow))
		s.Require().NoError(err)
		s.Equal(models.StatusPendingVVB, out.Status)
	})

	s.Run("past the deadline the change is archived", func() {
		out, err := s.service.CheckExpiry(s.ctx, c.ID, s.now.Add(DefaultVotingWindow+time.Second))
		s.Require().NoError(err)
		s.Equal(models.StatusArchived, out.Status)
		s.Contains(s.events.list(), EventVotingWindowExpired)
	})

	s.Run("archived changes ignore later votes", func() {
		out, err := s.service.RecordDecision(s.at(DefaultVotingWindow+time.Hour), c.ID, "admin-1", models.VerdictApproved, "")
		s.Require().NoError(err)
		s.Equal(models.StatusArchived, out.Status)
		s.Empty(out.Decisions)
	})
}

func (s *ApprovalSuite) TestLateDecisionExpiresLazily() {
	c := s.pending(models.ChangeSecondaryTokenCreate)

	out, err := s.service.RecordDecision(s.at(DefaultVotingWindow+time.Minute), c.ID, "validator-1", models.VerdictApproved, "")
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, out.Status)
	s.Empty(out.Decisions)
}

func (s *ApprovalSuite) TestSweepExpired() {
	old := s.pending(models.ChangeSecondaryTokenCreate)

	later := s.at(3 * 24 * time.Hour)
	fresh, err := s.service.Create(later, "CT-0002", models.ChangeSecondaryTokenCreate)
	s.Require().NoError(err)
	_, err = s.service.SubmitForApproval(later, fresh.ID)
	s.Require().NoError(err)

	sweepAt := s.now.Add(DefaultVotingWindow + time.Hour)
	n, err := s.service.SweepExpired(s.ctx, sweepAt)
	s.Require().NoError(err)
	s.Equal(1, n)

	got, err := s.service.Get(s.ctx, old.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, got.Status)
	got, err = s.service.Get(s.ctx, fresh.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPendingVVB, got.Status)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PendingChanges))

	n, err = s.service.SweepExpired(s.ctx, sweepAt)
	s.Require().NoError(err)
	s.Zero(n, "sweeping twice archives nothing new")
}

func (s *ApprovalSuite) TestRunSweeperRejectsNonPositiveInterval() {
	for _, interval := range []time.Duration{0, -time.Second} {
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.service.RunSweeper(s.ctx, interval)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			s.Fail("sweeper kept running", "interval %s", interval)
		}
	}
}

func (s *ApprovalSuite) TestListPendingForApprover() {
	standard := s.pending(models.ChangeSecondaryTokenCreate)
	elevated := s.pending(models.ChangeTokenSuspension)
	s.decide(elevated, "validator-1", models.VerdictApproved)

	list, err := s.service.ListPendingForApprover(s.ctx, "validator-1")
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(standard.ID, list[0].ID)

	list, err = s.service.ListPendingForApprover(s.ctx, "admin-1")
	s.Require().NoError(err)
	s.Len(list, 2)

	list, err = s.service.ListPendingForApprover(s.ctx, "stranger")
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *ApprovalSuite) TestStats() {
	approved := s.pending(models.ChangeSecondaryTokenCreate)
	s.decide(approved, "validator-1", models.VerdictApproved)
	rejected := s.pending(models.ChangeTokenSuspension)
	s.decide(rejected, "admin-1", models.VerdictRejected)
	s.pending(models.ChangePrimaryTokenRetire)
	_, err := s.service.Create(s.ctx, "CT-0009", models.ChangeSecondaryTokenUpdate)
	s.Require().NoError(err)

	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(4, stats.Total)
	s.Equal(1, stats.ByStatus[models.StatusApproved])
	s.Equal(1, stats.ByStatus[models.StatusRejected])
	s.Equal(1, stats.ByStatus[models.StatusPendingVVB])
	s.Equal(1, stats.ByStatus[models.StatusCreated])
	s.Equal(2, stats.ByTier[models.TierStandard])
	s.InDelta(0.5, stats.ApprovalRate, 1e-9)
}

func (s *ApprovalSuite) TestConcurrentDecisions() {
	c := s.pending(models.ChangePrimaryTokenRetire)
	approvers := []id.ActorID{"admin-1", "admin-2", "admin-3", "validator-1", "validator-2"}

	var wg sync.WaitGroup
	errs := make(chan error, len(approvers)*2)
	for _, a := range approvers {
		for range 2 {
			wg.Add(1)
			go func(a id.ActorID) {
				defer wg.Done()
				if _, err := s.service.RecordDecision(s.at(time.Hour), c.ID, a, models.VerdictApproved, ""); err != nil {
					errs <- err
				}
			}(a)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	got, err := s.service.Get(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.GreaterOrEqual(len(got.Decisions), 3)
	seen := map[id.ActorID]bool{}
	for _, d := range got.Decisions {
		s.False(seen[d.ApproverID], "approver %s recorded twice", d.ApproverID)
		seen[d.ApproverID] = true
	}
	_, admins := got.Approvals()
	s.GreaterOrEqual(admins, 2)
}

// =============================================================================
// Approval Service Mock Test Suite
// =============================================================================
// Justification for unit tests: store failures, deadline index calls and
// publisher failures cannot be provoked through the in-memory collaborators.

type ApprovalMockSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	ctx       context.Context
	now       time.Time
	store     *mocks.MockStore
	authority *mocks.MockAuthorityLookup
	deadlines *mocks.MockDeadlineIndex
	events    *mocks.MockEventPublisher
	audit     *mocks.MockAuditPublisher
	service   *Service
}

func TestApprovalMockSuite(t *testing.T) {
	suite.Run(t, new(ApprovalMockSuite))
}

func (s *ApprovalMockSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = mocks.NewMockStore(s.ctrl)
	s.authority = mocks.NewMockAuthorityLookup(s.ctrl)
	s.deadlines = mocks.NewMockDeadlineIndex(s.ctrl)
	s.events = mocks.NewMockEventPublisher(s.ctrl)
	s.audit = mocks.NewMockAuditPublisher(s.ctrl)

	var err error
	s.service, err = New(s.store, s.authority,
		WithDeadlineIndex(s.deadlines),
		WithEventPublisher(s.events),
		WithAuditPublisher(s.audit),
	)
	s.Require().NoError(err)
}

func (s *ApprovalMockSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ApprovalMockSuite) change(status models.Status) *models.Change {
	c, err := models.NewChange(id.NewChangeID(), "CT-0001", models.ChangeSecondaryTokenCreate, "owner-1", s.now)
	s.Require().NoError(err)
	if status == models.StatusPendingVVB {
		c.ApplySubmit(s.now, DefaultVotingWindow)
	}
	return c
}

func (s *ApprovalMockSuite) TestCreateStoreFailure() {
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	_, err := s.service.Create(s.ctx, "CT-0001", models.ChangeSecondaryTokenCreate)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ApprovalMockSuite) TestSubmitTracksDeadline() {
	c := s.change(models.StatusCreated)
	s.store.EXPECT().FindByIDForUpdate(gomock.Any(), c.ID).Return(c, nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	s.deadlines.EXPECT().Track(gomock.Any(), c.ID, s.now.Add(DefaultVotingWindow)).Return(errors.New("redis down"))
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev audit.Event) error {
		s.Equal(c.ID.String(), ev.Subject)
		s.Equal(string(audit.EventChangeSubmitted), ev.Action)
		return nil
	})
	s.events.EXPECT().Publish(gomock.Any(), EventApprovalRequestCreated, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, payload any) error {
			ev, ok := payload.(ChangeEvent)
			s.Require().True(ok)
			s.Equal(models.StatusPendingVVB, ev.Status)
			s.Equal(1, ev.Required)
			return errors.New("queue full")
		})

	out, err := s.service.SubmitForApproval(s.ctx, c.ID)
	s.Require().NoError(err, "index and publisher failures do not fail the submission")
	s.Equal(models.StatusPendingVVB, out.Status)
}

func (s *ApprovalMockSuite) TestUpdateConflictIsTranslated() {
	c := s.change(models.StatusPendingVVB)
	s.store.EXPECT().FindByIDForUpdate(gomock.Any(), c.ID).Return(c, nil)
	s.authority.EXPECT().IsAuthorizedForTier(gomock.Any(), id.ActorID("validator-1"), models.TierStandard).Return(true, nil)
	s.authority.EXPECT().RoleOf(gomock.Any(), id.ActorID("validator-1")).Return(models.RoleValidator, nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(fmt.Errorf("stale: %w", sentinel.ErrConflict))

	_, err := s.service.RecordDecision(s.ctx, c.ID, "validator-1", models.VerdictApproved, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ApprovalMockSuite) TestAuthorityFailure() {
	c := s.change(models.StatusPendingVVB)
	s.store.EXPECT().FindByIDForUpdate(gomock.Any(), c.ID).Return(c, nil)
	s.authority.EXPECT().IsAuthorizedForTier(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("directory offline"))

	_, err := s.service.RecordDecision(s.ctx, c.ID, "validator-1", models.VerdictApproved, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ApprovalMockSuite) TestSweepUsesDeadlineIndex() {
	c := s.change(models.StatusPendingVVB)
	sweepAt := s.now.Add(DefaultVotingWindow + time.Minute)
	missing := id.NewChangeID()

	s.deadlines.EXPECT().Due(gomock.Any(), sweepAt).Return([]id.ChangeID{c.ID, missing}, nil)
	s.store.EXPECT().FindByIDForUpdate(gomock.Any(), c.ID).Return(c, nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	s.deadlines.EXPECT().Remove(gomock.Any(), c.ID).Return(nil)
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
	s.events.EXPECT().Publish(gomock.Any(), EventVotingWindowExpired, gomock.Any()).Return(nil)
	s.store.EXPECT().FindByIDForUpdate(gomock.Any(), missing).Return(nil, sentinel.ErrNotFound)
	s.deadlines.EXPECT().Remove(gomock.Any(), missing).Return(nil)
	s.store.EXPECT().ListByStatus(gomock.Any(), models.StatusPendingVVB).Return(nil, nil)

	n, err := s.service.SweepExpired(s.ctx, sweepAt)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *ApprovalMockSuite) TestSweepFallsBackToStoreScan() {
	c := s.change(models.StatusPendingVVB)
	sweepAt := s.now.Add(DefaultVotingWindow + time.Minute)

	s.deadlines.EXPECT().Due(gomock.Any(), sweepAt).Return(nil, errors.New("redis down"))
	s.store.EXPECT().ListByStatus(gomock.Any(), models.StatusPendingVVB).Return([]*models.Change{c.Clone()}, nil)
	s.store.EXPECT().FindByIDForUpdate(gomock.Any(), c.ID).Return(c, nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	s.deadlines.EXPECT().Remove(gomock.Any(), c.ID).Return(nil)
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
	s.events.EXPECT().Publish(gomock.Any(), EventVotingWindowExpired, gomock.Any()).Return(nil)
	s.store.EXPECT().ListByStatus(gomock.Any(), models.StatusPendingVVB).Return(nil, nil)

	n, err := s.service.SweepExpired(s.ctx, sweepAt)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *ApprovalMockSuite) TestApprovedForStoreFailure() {
	s.store.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

	_, err := s.service.ApprovedFor(s.ctx, id.NewChangeID(), "CT-0001")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
