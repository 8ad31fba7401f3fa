package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/testutil"
)

func newPending(t *testing.T, ct ChangeType, now time.Time) *Change {
	t.Helper()
	c, err := NewChange(id.NewChangeID(), "CT-1", ct, "owner-1", now)
	require.NoError(t, err)
	require.NoError(t, c.CanSubmit())
	c.ApplySubmit(now, 7*24*time.Hour)
	return c
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusCreated.CanTransitionTo(StatusPendingVVB))
	assert.False(t, StatusCreated.CanTransitionTo(StatusApproved))
	for _, terminal := range []Status{StatusApproved, StatusRejected, StatusArchived} {
		assert.True(t, terminal.IsTerminal())
		for _, next := range []Status{StatusCreated, StatusPendingVVB, StatusApproved, StatusRejected, StatusArchived} {
			assert.False(t, terminal.CanTransitionTo(next), "%s -> %s", terminal, next)
		}
	}
}

func TestParseChangeType(t *testing.T) {
	ct, err := ParseChangeType(" primary_token_retire ")
	require.NoError(t, err)
	tier, err := ct.Tier()
	require.NoError(t, err)
	assert.Equal(t, TierCritical, tier)

	_, err = ParseChangeType("MINT_EVERYTHING")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidChangeType))
	assert.Contains(t, err.Error(), "unknown change type: MINT_EVERYTHING")
}

func TestQuorum(t *testing.T) {
	now := time.Now()
	testutil.Given(t, "an elevated change", func(t *testing.T) {
		testutil.When(t, "two validators approve", func(t *testing.T) {
			c := newPending(t, ChangeTokenSuspension, now)
			c.ApplyDecision(Decision{ApproverID: "v1", Role: RoleValidator, Verdict: VerdictApproved, DecidedAt: now})
			c.ApplyDecision(Decision{ApproverID: "v2", Role: RoleValidator, Verdict: VerdictApproved, DecidedAt: now})
			testutil.Then(t, "the admin minimum keeps it pending", func(t *testing.T) {
				assert.Equal(t, StatusPendingVVB, c.Status)
			})
			c.ApplyDecision(Decision{ApproverID: "a1", Role: RoleAdmin, Verdict: VerdictApproved, DecidedAt: now})
			testutil.Then(t, "an admin approval completes it", func(t *testing.T) {
				assert.Equal(t, StatusApproved, c.Status)
			})
			testutil.And(t, "the decision time is recorded", func(t *testing.T) {
				require.NotNil(t, c.DecidedAt)
			})
		})
	})
	testutil.Given(t, "a secondary token retirement", func(t *testing.T) {
		testutil.When(t, "the same admin votes twice", func(t *testing.T) {
			c := newPending(t, ChangeSecondaryTokenRetire, now)
			assert.True(t, c.ApplyDecision(Decision{ApproverID: "a1", Role: RoleAdmin, Verdict: VerdictApproved, DecidedAt: now}))
			assert.False(t, c.ApplyDecision(Decision{ApproverID: "a1", Role: RoleAdmin, Verdict: VerdictApproved, DecidedAt: now}))
			testutil.Then(t, "the approval counts once", func(t *testing.T) {
				total, admins := c.Approvals()
				assert.Equal(t, 1, total)
				assert.Equal(t, 1, admins)
				assert.Len(t, c.Decisions, 1)
			})
		})
	})
}

func TestRejectionIsTerminal(t *testing.T) {
	now := time.Now()
	c := newPending(t, ChangePrimaryTokenRetire, now)
	c.ApplyDecision(Decision{ApproverID: "a1", Role: RoleAdmin, Verdict: VerdictApproved, DecidedAt: now})
	c.ApplyDecision(Decision{ApproverID: "v1", Role: RoleValidator, Verdict: VerdictRejected, DecidedAt: now})
	assert.Equal(t, StatusRejected, c.Status)
	assert.True(t, c.IsTerminal())
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	window := 7 * 24 * time.Hour
	c := newPending(t, ChangeSecondaryTokenCreate, now)
	assert.False(t, c.IsExpired(now.Add(window), window), "the deadline itself is still open")
	assert.True(t, c.IsExpired(now.Add(window+time.Second), window))

	c.ApplyExpiry(now.Add(window + time.Second))
	assert.Equal(t, StatusArchived, c.Status)
	assert.False(t, c.IsExpired(now.Add(2*window), window))
}

func TestCanDecideRequiresPending(t *testing.T) {
	c, err := NewChange(id.NewChangeID(), "CT-1", ChangeSecondaryTokenCreate, "", time.Now())
	require.NoError(t, err)
	assert.True(t, dErrors.HasCode(c.CanDecide(), dErrors.CodeInvalidState))
}

func TestChangeClone(t *testing.T) {
	now := time.Now()
	c := newPending(t, ChangeSecondaryTokenCreate, now)
	clone := c.Clone()
	clone.ApplyDecision(Decision{ApproverID: "v1", Role: RoleValidator, Verdict: VerdictApproved, DecidedAt: now})
	*clone.Deadline = now
	assert.Empty(t, c.Decisions)
	assert.NotEqual(t, now, *c.Deadline)
}
