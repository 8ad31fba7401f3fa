package models

import (
	"strings"
	"time"

	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
)

// CredentialValidity is how long a freshly registered verifier stays accredited.
const CredentialValidity = 2 * 365 * 24 * time.Hour

// InitialReputation is the neutral score every verifier starts from.
const InitialReputation = 50.0

// MultiAsset is the specialization wildcard that matches every asset type.
const MultiAsset = "multi-asset"

// Verifier is the aggregate root for an independent verification body (VVB member).
//
// Invariants:
//   - ID and Name are non-empty and immutable
//   - Tier is one of T1..T4
//   - Reputation stays within [0, 100]
//   - Only ACTIVE verifiers with unexpired credentials are assignable
//   - Sequence is unique and orders verifiers by registration
type Verifier struct {
	ID                      id.VerifierID  `json:"id"`
	Name                    string         `json:"name"`
	Tier                    Tier           `json:"tier"`
	Specialization          string         `json:"specialization"`
	Status                  VerifierStatus `json:"status"`
	Reputation              float64        `json:"reputation"`
	CredentialExpiry        time.Time      `json:"credential_expiry"`
	CompletedVerifications  int            `json:"completed_verifications"`
	SuccessfulVerifications int            `json:"successful_verifications"`
	Sequence                int64          `json:"sequence"`
	RegisteredAt            time.Time      `json:"registered_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
	ApprovedAt              *time.Time     `json:"approved_at,omitempty"`
	StatusReason            string         `json:"status_reason,omitempty"`
}

// NewVerifier constructs a verifier awaiting approval.
func NewVerifier(verifierID id.VerifierID, name string, tier Tier, specialization string, sequence int64, now time.Time) (*Verifier, error) {
	if verifierID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verifier ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verifier name cannot be empty")
	}
	if len(name) > 256 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verifier name must be 256 characters or less")
	}
	if !tier.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid verifier tier: "+string(tier))
	}
	specialization = strings.TrimSpace(specialization)
	if specialization == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verifier specialization cannot be empty")
	}
	return &Verifier{
		ID:               verifierID,
		Name:             name,
		Tier:             tier,
		Specialization:   specialization,
		Status:           StatusPendingApproval,
		Reputation:       InitialReputation,
		CredentialExpiry: now.Add(CredentialValidity),
		Sequence:         sequence,
		RegisteredAt:     now,
		UpdatedAt:        now,
	}, nil
}

// Matches reports whether this verifier's specialization covers assetType.
// Comparison ignores case and treats spaces, underscores and hyphens alike,
// so "Real Estate" covers "REAL_ESTATE".
func (v *Verifier) Matches(assetType string) bool {
	spec := NormalizeSpecialization(v.Specialization)
	return spec == MultiAsset || spec == NormalizeSpecialization(assetType)
}

// CredentialsExpired reports whether accreditation lapsed at or before now.
func (v *Verifier) CredentialsExpired(now time.Time) bool {
	return !now.Before(v.CredentialExpiry)
}

// IsAssignable reports whether the verifier may receive new requests.
func (v *Verifier) IsAssignable(now time.Time) bool {
	return v.Status == StatusActive && !v.CredentialsExpired(now)
}

// SuccessRate is the share of completed verifications that came back verified.
func (v *Verifier) SuccessRate() float64 {
	if v.CompletedVerifications == 0 {
		return 0
	}
	return float64(v.SuccessfulVerifications) / float64(v.CompletedVerifications)
}

// CanTransition checks the status table. Use with ApplyTransition in Execute callbacks.
func (v *Verifier) CanTransition(to VerifierStatus) error {
	if !v.Status.CanTransitionTo(to) {
		return dErrors.New(dErrors.CodeInvalidState,
			"verifier cannot move from "+string(v.Status)+" to "+string(to))
	}
	return nil
}

// ApplyTransition sets the new status. Call CanTransition first.
func (v *Verifier) ApplyTransition(to VerifierStatus, reason string, now time.Time) {
	v.Status = to
	v.StatusReason = reason
	v.UpdatedAt = now
	if to == StatusActive && v.ApprovedAt == nil {
		approved := now
		v.ApprovedAt = &approved
	}
}

// CanRenewCredentials validates a new credential expiry.
func (v *Verifier) CanRenewCredentials(expiry, now time.Time) error {
	if !expiry.After(now) {
		return dErrors.New(dErrors.CodeValidation, "credential expiry must be in the future")
	}
	if v.Status == StatusRejected {
		return dErrors.New(dErrors.CodeInvalidState, "rejected verifiers cannot renew credentials")
	}
	return nil
}

// ApplyCredentialRenewal sets the new expiry. Call CanRenewCredentials first.
func (v *Verifier) ApplyCredentialRenewal(expiry, now time.Time) {
	v.CredentialExpiry = expiry
	v.UpdatedAt = now
}

// ApplyPerformance adds delta to the reputation, clamped to [0, 100], and
// counts one more completed verification.
func (v *Verifier) ApplyPerformance(delta float64, verified bool, now time.Time) {
	v.Reputation = ClampReputation(v.Reputation + delta)
	v.CompletedVerifications++
	if verified {
		v.SuccessfulVerifications++
	}
	v.UpdatedAt = now
}

// Clone returns a deep copy safe to hand out of a store.
func (v *Verifier) Clone() *Verifier {
	if v == nil {
		return nil
	}
	out := *v
	if v.ApprovedAt != nil {
		t := *v.ApprovedAt
		out.ApprovedAt = &t
	}
	return &out
}

// NormalizeSpecialization lowercases s and folds spaces and underscores to hyphens.
func NormalizeSpecialization(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "-", "_", "-").Replace(s)
}
