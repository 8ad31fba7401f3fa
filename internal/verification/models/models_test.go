package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verifier "rwaledger/internal/verifier/models"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/testutil"
)

func newRequest(t *testing.T, assigned ...id.VerifierID) *Request {
	t.Helper()
	r, err := NewRequest("REQ-1-1", "CT-1", "REAL_ESTATE", verifier.TrustBasic, verifier.TierT1, assigned, time.Now())
	require.NoError(t, err)
	return r
}

func TestNewRequestID(t *testing.T) {
	a := NewRequestID("CT-0001", 7)
	assert.Regexp(t, `^REQ-[0-9a-f]{8}-7$`, string(a))
	assert.Equal(t, a, NewRequestID("CT-0001", 7))
	assert.NotEqual(t, a, NewRequestID("CT-0002", 7))
}

func TestNewRequestRequiresAssignment(t *testing.T) {
	_, err := NewRequest("REQ-1-1", "CT-1", "REAL_ESTATE", verifier.TrustBasic, verifier.TierT1, nil, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestOutcome(t *testing.T) {
	now := time.Now()
	testutil.Given(t, "three assigned verifiers", func(t *testing.T) {
		testutil.When(t, "two of three verify", func(t *testing.T) {
			r := newRequest(t, "A", "B", "C")
			r.ApplyResult(Result{VerifierID: "A", Verified: true, SubmittedAt: now})
			assert.Equal(t, OutcomePending, r.Outcome())
			r.ApplyResult(Result{VerifierID: "B", Verified: false, SubmittedAt: now})
			r.ApplyResult(Result{VerifierID: "C", Verified: true, SubmittedAt: now})
			testutil.Then(t, "the request is verified", func(t *testing.T) {
				assert.Equal(t, OutcomeVerified, r.Outcome())
				require.NotNil(t, r.CompletedAt)
			})
		})
	})
	testutil.Given(t, "two assigned verifiers", func(t *testing.T) {
		testutil.When(t, "they split", func(t *testing.T) {
			r := newRequest(t, "A", "B")
			r.ApplyResult(Result{VerifierID: "A", Verified: true, SubmittedAt: now})
			r.ApplyResult(Result{VerifierID: "B", Verified: false, SubmittedAt: now})
			testutil.Then(t, "a tie is not a majority", func(t *testing.T) {
				assert.Equal(t, OutcomeFailed, r.Outcome())
			})
		})
	})
}

func TestCanSubmit(t *testing.T) {
	r := newRequest(t, "A", "B")
	assert.True(t, dErrors.HasCode(r.CanSubmit("Z"), dErrors.CodeUnauthorizedVerifier))
	require.NoError(t, r.CanSubmit("A"))
	r.ApplyResult(Result{VerifierID: "A", SubmittedAt: time.Now()})
	assert.True(t, dErrors.HasCode(r.CanSubmit("A"), dErrors.CodeConflict))
}

func TestCloneIsIndependent(t *testing.T) {
	r := newRequest(t, "A", "B")
	c := r.Clone()
	c.Assigned[0] = "X"
	c.ApplyResult(Result{VerifierID: "B"})
	assert.Equal(t, id.VerifierID("A"), r.Assigned[0])
	assert.Empty(t, r.Results)
}
