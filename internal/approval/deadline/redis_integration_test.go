//go:build integration

package deadline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rwaledger/internal/approval/deadline"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/testutil/containers"
)

type RedisIndexSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	index *deadline.RedisIndex
	now   time.Time
}

func TestRedisIndexSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisIndexSuite))
}

func (s *RedisIndexSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.index = deadline.NewRedisIndex(s.redis.Client)
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *RedisIndexSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisIndexSuite) TestDueIsStrictlyBeforeNow() {
	ctx := context.Background()
	overdue := id.NewChangeID()
	boundary := id.NewChangeID()
	future := id.NewChangeID()
	s.Require().NoError(s.index.Track(ctx, overdue, s.now.Add(-time.Hour)))
	s.Require().NoError(s.index.Track(ctx, boundary, s.now))
	s.Require().NoError(s.index.Track(ctx, future, s.now.Add(time.Hour)))

	due, err := s.index.Due(ctx, s.now)
	s.Require().NoError(err)
	s.Equal([]id.ChangeID{overdue}, due)
}

func (s *RedisIndexSuite) TestRemoveAndRetrack() {
	ctx := context.Background()
	changeID := id.NewChangeID()
	s.Require().NoError(s.index.Track(ctx, changeID, s.now.Add(-time.Minute)))

	s.Run("removed changes are no longer due", func() {
		s.Require().NoError(s.index.Remove(ctx, changeID))
		due, err := s.index.Due(ctx, s.now)
		s.Require().NoError(err)
		s.Empty(due)
	})

	s.Run("tracking again replaces the deadline", func() {
		s.Require().NoError(s.index.Track(ctx, changeID, s.now.Add(-time.Minute)))
		s.Require().NoError(s.index.Track(ctx, changeID, s.now.Add(time.Minute)))
		due, err := s.index.Due(ctx, s.now)
		s.Require().NoError(err)
		s.Empty(due)
	})
}
