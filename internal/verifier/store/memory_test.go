package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rwaledger/internal/verifier/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
)

type VerifierStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *VerifierStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
}

func TestVerifierStoreSuite(t *testing.T) {
	suite.Run(t, new(VerifierStoreSuite))
}

func (s *VerifierStoreSuite) newVerifier(vid string, tier models.Tier) *models.Verifier {
	seq, err := s.store.NextSequence(s.ctx)
	s.Require().NoError(err)
	v, err := models.NewVerifier(id.VerifierID(vid), "Verifier "+vid, tier, "Real Estate", seq, s.now)
	s.Require().NoError(err)
	return v
}

func (s *VerifierStoreSuite) activate(v *models.Verifier) {
	_, err := s.store.Execute(s.ctx, v.ID,
		func(v *models.Verifier) error { return v.CanTransition(models.StatusActive) },
		func(v *models.Verifier) { v.ApplyTransition(models.StatusActive, "", s.now) })
	s.Require().NoError(err)
}

func (s *VerifierStoreSuite) TestCreateAndFind() {
	s.Run("round trips a verifier", func() {
		v := s.newVerifier("VER-A", models.TierT2)
		s.Require().NoError(s.store.Create(s.ctx, v))

		found, err := s.store.FindByID(s.ctx, v.ID)
		s.Require().NoError(err)
		s.Equal(v.Name, found.Name)
		s.Equal(models.StatusPendingApproval, found.Status)
	})

	s.Run("rejects duplicate IDs", func() {
		v := s.newVerifier("VER-DUP", models.TierT1)
		s.Require().NoError(s.store.Create(s.ctx, v))
		s.Require().ErrorIs(s.store.Create(s.ctx, v), sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, "VER-MISSING")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned values are copies", func() {
		v := s.newVerifier("VER-COPY", models.TierT1)
		s.Require().NoError(s.store.Create(s.ctx, v))
		found, err := s.store.FindByID(s.ctx, v.ID)
		s.Require().NoError(err)
		found.Reputation = 0

		again, err := s.store.FindByID(s.ctx, v.ID)
		s.Require().NoError(err)
		s.Equal(models.InitialReputation, again.Reputation)
	})
}

func (s *VerifierStoreSuite) TestTierIndex() {
	t1 := s.newVerifier("VER-T1", models.TierT1)
	t3 := s.newVerifier("VER-T3", models.TierT3)
	pending := s.newVerifier("VER-T4-PENDING", models.TierT4)
	for _, v := range []*models.Verifier{t1, t3, pending} {
		s.Require().NoError(s.store.Create(s.ctx, v))
	}
	s.activate(t1)
	s.activate(t3)

	s.Run("only active verifiers at or above the tier are listed", func() {
		got, err := s.store.ListActive(s.ctx, models.TierT2)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(t3.ID, got[0].ID)

		got, err = s.store.ListActive(s.ctx, models.TierT1)
		s.Require().NoError(err)
		s.Len(got, 2)
		s.Equal(t1.ID, got[0].ID, "ordered by registration")
	})

	s.Run("suspension removes a verifier from the index", func() {
		_, err := s.store.Execute(s.ctx, t3.ID,
			func(v *models.Verifier) error { return v.CanTransition(models.StatusSuspended) },
			func(v *models.Verifier) { v.ApplyTransition(models.StatusSuspended, "audit", s.now) })
		s.Require().NoError(err)

		got, err := s.store.ListActive(s.ctx, models.TierT2)
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *VerifierStoreSuite) TestExecute() {
	s.Run("validation failure leaves the record unchanged", func() {
		v := s.newVerifier("VER-EXEC", models.TierT1)
		s.Require().NoError(s.store.Create(s.ctx, v))

		boom := errors.New("boom")
		_, err := s.store.Execute(s.ctx, v.ID,
			func(*models.Verifier) error { return boom },
			func(v *models.Verifier) { v.Reputation = 0 })
		s.Require().ErrorIs(err, boom)

		found, err := s.store.FindByID(s.ctx, v.ID)
		s.Require().NoError(err)
		s.Equal(models.InitialReputation, found.Reputation)
	})

	s.Run("concurrent updates are not lost", func() {
		v := s.newVerifier("VER-CONC", models.TierT1)
		s.Require().NoError(s.store.Create(s.ctx, v))

		const goroutines = 40
		var wg sync.WaitGroup
		var failures atomic.Int32
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.store.Execute(s.ctx, v.ID,
					func(*models.Verifier) error { return nil },
					func(v *models.Verifier) { v.ApplyPerformance(0.5, true, s.now) })
				if err != nil {
					failures.Add(1)
				}
			}()
		}
		wg.Wait()

		found, err := s.store.FindByID(s.ctx, v.ID)
		s.Require().NoError(err)
		s.Equal(int32(0), failures.Load())
		s.Equal(goroutines, found.CompletedVerifications)
		s.Equal(70.0, found.Reputation)
	})
	s.Run("a slow update does not block other verifiers", func() {
		slow := s.newVerifier("VER-SLOW", models.TierT1)
		s.Require().NoError(s.store.Create(s.ctx, slow))
		fast := s.newVerifier("VER-FAST", models.TierT1)
		s.Require().NoError(s.store.Create(s.ctx, fast))

		entered := make(chan struct{})
		release := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = s.store.Execute(s.ctx, slow.ID,
				func(*models.Verifier) error {
					close(entered)
					<-release
					return nil
				},
				func(*models.Verifier) {})
		}()
		<-entered

		activated := make(chan error, 1)
		go func() {
			_, err := s.store.Execute(s.ctx, fast.ID,
				func(v *models.Verifier) error { return v.CanTransition(models.StatusActive) },
				func(v *models.Verifier) { v.ApplyTransition(models.StatusActive, "", s.now) })
			activated <- err
		}()
		select {
		case err := <-activated:
			s.NoError(err)
		case <-time.After(2 * time.Second):
			s.Fail("activating VER-FAST waited on VER-SLOW")
		}
		close(release)
		<-done

		got, err := s.store.ListActive(s.ctx, models.TierT1)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(fast.ID, got[0].ID)
	})
}
