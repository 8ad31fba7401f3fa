package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rwaledger/pkg/domain-errors"
)

var now = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func TestNewVerifier(t *testing.T) {
	t.Run("seeds reputation and credential expiry", func(t *testing.T) {
		v, err := NewVerifier("VER-T1-ACMEAP-1", "ACME Appraisals", TierT1, "Real Estate", 1, now)
		require.NoError(t, err)
		assert.Equal(t, StatusPendingApproval, v.Status)
		assert.Equal(t, 50.0, v.Reputation)
		assert.Equal(t, now.Add(CredentialValidity), v.CredentialExpiry)
	})

	t.Run("rejects invalid tier and empty fields", func(t *testing.T) {
		_, err := NewVerifier("VER-1", "Acme", Tier("T9"), "Real Estate", 1, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = NewVerifier("VER-1", "  ", TierT1, "Real Estate", 1, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = NewVerifier("VER-1", "Acme", TierT1, "", 1, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestSpecializationMatching(t *testing.T) {
	v := &Verifier{Specialization: "Real Estate"}
	assert.True(t, v.Matches("Real Estate"))
	assert.True(t, v.Matches("REAL_ESTATE"))
	assert.False(t, v.Matches("Commodity"))

	wildcard := &Verifier{Specialization: "Multi-Asset"}
	assert.True(t, wildcard.Matches("ARTWORK"))
	assert.True(t, wildcard.Matches("Real Estate"))
}

func TestTierOrdering(t *testing.T) {
	assert.True(t, TierT3.AtLeast(TierT1))
	assert.True(t, TierT2.AtLeast(TierT2))
	assert.False(t, TierT1.AtLeast(TierT3))
	assert.False(t, Tier("bogus").AtLeast(TierT1))

	parsed, err := ParseTier("tier_3")
	require.NoError(t, err)
	assert.Equal(t, TierT3, parsed)
}

func TestTrustLevelMapping(t *testing.T) {
	cases := map[TrustLevel]Tier{
		TrustNone:          TierT1,
		TrustBasic:         TierT1,
		TrustEnhanced:      TierT2,
		TrustCertified:     TierT3,
		TrustInstitutional: TierT4,
	}
	for level, want := range cases {
		got, err := level.MinimumTier()
		require.NoError(t, err)
		assert.Equal(t, want, got, "trust level %s", level)
	}

	_, err := TrustLevel("SUPREME").MinimumTier()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPendingApproval.CanTransitionTo(StatusActive))
	assert.True(t, StatusActive.CanTransitionTo(StatusSuspended))
	assert.True(t, StatusSuspended.CanTransitionTo(StatusActive))
	assert.False(t, StatusRejected.CanTransitionTo(StatusActive))
	assert.False(t, StatusPendingApproval.CanTransitionTo(StatusSuspended))

	v := &Verifier{Status: StatusPendingApproval}
	require.NoError(t, v.CanTransition(StatusActive))
	v.ApplyTransition(StatusActive, "", now)
	require.NotNil(t, v.ApprovedAt)
	assert.Equal(t, now, *v.ApprovedAt)
	assert.True(t, dErrors.HasCode(v.CanTransition(StatusPendingApproval), dErrors.CodeInvalidState))
}

func TestReputationPolicy(t *testing.T) {
	policy := DefaultReputationPolicy()
	assigned := now

	t.Run("base only for a late terse result", func(t *testing.T) {
		d := policy.Delta(Performance{Summary: "ok", AssignedAt: assigned, SubmittedAt: assigned.Add(48 * time.Hour)})
		assert.Equal(t, 1.0, d)
	})

	t.Run("diligence and timeliness bonuses", func(t *testing.T) {
		d := policy.Delta(Performance{
			Summary:     strings.Repeat("x", 101),
			AssignedAt:  assigned,
			SubmittedAt: assigned.Add(2 * time.Hour),
		})
		assert.Equal(t, 2.0, d)
	})

	t.Run("exactly 100 characters earns no diligence bonus", func(t *testing.T) {
		d := policy.Delta(Performance{Summary: strings.Repeat("x", 100), AssignedAt: assigned, SubmittedAt: assigned.Add(25 * time.Hour)})
		assert.Equal(t, 1.0, d)
	})

	t.Run("reputation stays within bounds", func(t *testing.T) {
		v := &Verifier{Reputation: 99.5}
		for i := 0; i < 10; i++ {
			v.ApplyPerformance(2.0, true, now)
		}
		assert.Equal(t, 100.0, v.Reputation)
		v.ApplyPerformance(-500, false, now)
		assert.Equal(t, 0.0, v.Reputation)
		assert.Equal(t, 11, v.CompletedVerifications)
		assert.InDelta(t, 10.0/11.0, v.SuccessRate(), 1e-9)
	})
}

func TestNewVerifierID(t *testing.T) {
	assert.Equal(t, "VER-T1-ACMEAP-1", string(NewVerifierID(TierT1, "ACME Appraisals", 1)))
	assert.Equal(t, "VER-T4-BIGFOU-12", string(NewVerifierID(TierT4, "Big Four Assurance", 12)))
	assert.Equal(t, "VER-T2-AB-3", string(NewVerifierID(TierT2, "a-b", 3)))
	assert.Equal(t, "VER-T3-ANON-4", string(NewVerifierID(TierT3, "\u00c9\u00c9", 4)))
}
