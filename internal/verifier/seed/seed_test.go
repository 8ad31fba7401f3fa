package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwaledger/internal/verifier/models"
	"rwaledger/internal/verifier/service"
	"rwaledger/internal/verifier/store"
)

func TestLoadFile(t *testing.T) {
	c, err := LoadFile(filepath.Join("testdata", "verifiers.yaml"))
	require.NoError(t, err)
	require.Len(t, c.Verifiers, 4)
	assert.Equal(t, "Big Four Assurance", c.Verifiers[3].Name)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("verifiers:\n  - name: X\n    tier: T9\n"), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := service.New(store.NewInMemory())
	c, err := LoadFile(filepath.Join("testdata", "verifiers.yaml"))
	require.NoError(t, err)

	n, err := Apply(ctx, svc, c)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = Apply(ctx, svc, c)
	require.NoError(t, err)
	assert.Zero(t, n)

	vs, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, vs, 4)
	for _, v := range vs {
		assert.Equal(t, models.StatusActive, v.Status, v.Name)
	}

	assigned, err := svc.AssignVerifiers(ctx, models.TierT3, "real_estate", 2)
	require.NoError(t, err)
	assert.Len(t, assigned, 2)
}

func TestDefaultCatalogue(t *testing.T) {
	ctx := context.Background()
	c, err := Default()
	require.NoError(t, err)
	require.Len(t, c.Verifiers, 4)

	fromEmpty, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, c, fromEmpty)

	svc := service.New(store.NewInMemory())
	n, err := Apply(ctx, svc, c)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := svc.AssignVerifiers(ctx, models.TierT4, "ARTWORK", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Big Four Assurance", got[0].Name)
}
