package authority

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwaledger/internal/approval/models"
	id "rwaledger/pkg/domain"
)

func TestDirectoryRoles(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory([]string{"admin-1", " "}, []string{"val-1", "admin-1"})

	role, err := d.RoleOf(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role, "admin wins over validator")

	role, err = d.RoleOf(ctx, "val-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleValidator, role)

	role, err = d.RoleOf(ctx, "stranger")
	require.NoError(t, err)
	assert.Equal(t, models.RoleNone, role)

	admins, validators := d.Count()
	assert.Equal(t, 1, admins)
	assert.Equal(t, 1, validators)
}

func TestIsAuthorizedForTier(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory([]string{"admin-1"}, []string{"val-1"})

	for _, tier := range models.AllTiers {
		ok, err := d.IsAuthorizedForTier(ctx, "val-1", tier)
		require.NoError(t, err)
		assert.True(t, ok, tier)

		ok, err = d.IsAuthorizedForTier(ctx, "nobody", tier)
		require.NoError(t, err)
		assert.False(t, ok, tier)
	}

	ok, err := d.IsAuthorizedForTier(ctx, "admin-1", models.Tier("BOGUS"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrant(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(nil, nil)
	d.Grant(id.ActorID(" val-2 "), models.RoleValidator)
	role, _ := d.RoleOf(ctx, "val-2")
	assert.Equal(t, models.RoleValidator, role)

	d.Grant("val-2", models.RoleNone)
	role, _ = d.RoleOf(ctx, "val-2")
	assert.Equal(t, models.RoleNone, role)
}

func TestLoadFile(t *testing.T) {
	d, err := LoadFile(filepath.Join("testdata", "authority.yaml"), []string{"admin-cfg"}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for actor, want := range map[id.ActorID]models.Role{
		"admin-cfg":      models.RoleAdmin,
		"admin-file":     models.RoleAdmin,
		"admin-1":        models.RoleAdmin,
		"validator-file": models.RoleValidator,
	} {
		got, err := d.RoleOf(ctx, actor)
		require.NoError(t, err)
		assert.Equal(t, want, got, actor)
	}

	_, err = LoadFile(filepath.Join("testdata", "missing.yaml"), nil, nil)
	assert.Error(t, err)
}

func TestLoadFileLeavesCallerSlicesAlone(t *testing.T) {
	backing := []string{"admin-cfg", "spare-1", "spare-2"}
	admins := backing[:1]
	validators := make([]string, 1, 4)
	validators[0] = "validator-cfg"

	_, err := LoadFile(filepath.Join("testdata", "authority.yaml"), admins, validators)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-cfg", "spare-1", "spare-2"}, backing)
	assert.Equal(t, []string{"validator-cfg", ""}, validators[:2])
}
