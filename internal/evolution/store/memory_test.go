package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwaledger/internal/evolution/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
)

func newChain(t *testing.T, composite id.TokenID) *models.Chain {
	t.Helper()
	c, err := models.NewChain("primary-1", composite, time.Now())
	require.NoError(t, err)
	return c
}

func TestInMemoryCreate(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.Create(ctx, newChain(t, "composite-1")))
	assert.ErrorIs(t, s.Create(ctx, newChain(t, "composite-1")), sentinel.ErrConflict)

	_, err := s.FindByID(ctx, "composite-2")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryExecuteRollsBackOnValidationError(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.Create(ctx, newChain(t, "composite-1")))

	_, err := s.Execute(ctx, "composite-1",
		func(*models.Chain) error { return errors.New("no") },
		func(c *models.Chain) { c.Mode = models.ModeMandatory })
	require.Error(t, err)

	got, err := s.FindByID(ctx, "composite-1")
	require.NoError(t, err)
	assert.Empty(t, got.Mode)
	assert.Equal(t, 1, got.Version)
}

func TestInMemoryExecuteSerializesPerChain(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.Create(ctx, newChain(t, "composite-1")))

	const writers = 50
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := models.NewSnapshot(id.NewSnapshotID(), models.TokenMedia, map[string]any{"n": i}, models.ReasonMediaUpdate, "owner-1")
			if !assert.NoError(t, err) {
				return
			}
			_, err = s.Execute(ctx, "composite-1",
				func(*models.Chain) error { return nil },
				func(c *models.Chain) { c.Append(snap, time.Now()) })
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.FindByID(ctx, "composite-1")
	require.NoError(t, err)
	assert.Len(t, got.History, writers-1)
	assert.Equal(t, writers+1, got.Version)
	assert.NoError(t, got.VerifyLinks())
}
