//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rwaledger/internal/verifier/models"
	"rwaledger/internal/verifier/store"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
	"rwaledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "verifiers"))
}

func (s *PostgresStoreSuite) create(vid string, tier models.Tier, active bool) *models.Verifier {
	ctx := context.Background()
	seq, err := s.store.NextSequence(ctx)
	s.Require().NoError(err)
	v, err := models.NewVerifier(id.VerifierID(vid), "Verifier "+vid, tier, "Real Estate", seq, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, v))
	if active {
		v, err = s.store.Execute(ctx, v.ID,
			func(v *models.Verifier) error { return v.CanTransition(models.StatusActive) },
			func(v *models.Verifier) { v.ApplyTransition(models.StatusActive, "", s.now) })
		s.Require().NoError(err)
	}
	return v
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	v := s.create("VER-PG-1", models.TierT3, true)

	found, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(models.TierT3, found.Tier)
	s.Equal(models.StatusActive, found.Status)
	s.Require().NotNil(found.ApprovedAt)
	s.True(found.CredentialExpiry.Equal(v.CredentialExpiry))

	s.ErrorIs(s.store.Create(ctx, v), sentinel.ErrConflict)

	_, err = s.store.FindByID(ctx, "VER-PG-MISSING")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListActiveHonoursTierRank() {
	ctx := context.Background()
	s.create("VER-T1", models.TierT1, true)
	s.create("VER-T2", models.TierT2, true)
	s.create("VER-T4", models.TierT4, true)
	s.create("VER-T4-PENDING", models.TierT4, false)

	vs, err := s.store.ListActive(ctx, models.TierT2)
	s.Require().NoError(err)
	s.Require().Len(vs, 2)
	s.Equal(id.VerifierID("VER-T2"), vs[0].ID, "registration order is preserved")
	s.Equal(id.VerifierID("VER-T4"), vs[1].ID)
}

// TestConcurrentPerformanceUpdates checks that row locking serializes
// reputation updates so no completed verification is lost.
func (s *PostgresStoreSuite) TestConcurrentPerformanceUpdates() {
	ctx := context.Background()
	v := s.create("VER-BUSY", models.TierT2, true)
	const workers = 20

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.store.Execute(ctx, v.ID,
				func(*models.Verifier) error { return nil },
				func(v *models.Verifier) { v.ApplyPerformance(0.1, i%2 == 0, s.now) })
			if err != nil {
				errs <- fmt.Errorf("worker %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	found, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(workers, found.CompletedVerifications)
	s.Equal(workers/2, found.SuccessfulVerifications)
}
