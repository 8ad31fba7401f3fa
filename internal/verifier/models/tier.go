package models

import (
	"strings"

	dErrors "rwaledger/pkg/domain-errors"
)

// Tier is the ordered accreditation level of a verifier: T1 < T2 < T3 < T4.
type Tier string

const (
	TierT1 Tier = "T1"
	TierT2 Tier = "T2"
	TierT3 Tier = "T3"
	TierT4 Tier = "T4"
)

var tierRank = map[Tier]int{TierT1: 1, TierT2: 2, TierT3: 3, TierT4: 4}

// AllTiers lists tiers in ascending order.
var AllTiers = []Tier{TierT1, TierT2, TierT3, TierT4}

func (t Tier) IsValid() bool {
	_, ok := tierRank[t]
	return ok
}

// Rank returns 1..4, or 0 for an unknown tier.
func (t Tier) Rank() int {
	return tierRank[t]
}

// AtLeast reports whether t satisfies a requirement of min.
func (t Tier) AtLeast(min Tier) bool {
	return t.IsValid() && t.Rank() >= min.Rank()
}

// ParseTier accepts "T1".."T4" (or "TIER_1".."TIER_4"), case-insensitively.
func ParseTier(s string) (Tier, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.Replace(s, "TIER_", "T", 1)
	t := Tier(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid tier: "+s)
	}
	return t, nil
}

// TrustLevel is the caller-facing assurance requirement of a verification request.
type TrustLevel string

const (
	TrustNone          TrustLevel = "NONE"
	TrustBasic         TrustLevel = "BASIC"
	TrustEnhanced      TrustLevel = "ENHANCED"
	TrustCertified     TrustLevel = "CERTIFIED"
	TrustInstitutional TrustLevel = "INSTITUTIONAL"
)

var trustMinimumTier = map[TrustLevel]Tier{
	TrustNone:          TierT1,
	TrustBasic:         TierT1,
	TrustEnhanced:      TierT2,
	TrustCertified:     TierT3,
	TrustInstitutional: TierT4,
}

// MinimumTier maps a trust level to the lowest tier allowed to serve it.
func (l TrustLevel) MinimumTier() (Tier, error) {
	t, ok := trustMinimumTier[l]
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unknown trust level: "+string(l))
	}
	return t, nil
}

// ParseTrustLevel normalizes and validates a trust level.
func ParseTrustLevel(s string) (TrustLevel, error) {
	l := TrustLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := trustMinimumTier[l]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unknown trust level: "+s)
	}
	return l, nil
}

// VerifierStatus is the lifecycle state of a verifier.
type VerifierStatus string

const (
	StatusPendingApproval VerifierStatus = "PENDING_APPROVAL"
	StatusActive          VerifierStatus = "ACTIVE"
	StatusSuspended       VerifierStatus = "SUSPENDED"
	StatusInactive        VerifierStatus = "INACTIVE"
	StatusRejected        VerifierStatus = "REJECTED"
)

var statusTransitions = map[VerifierStatus][]VerifierStatus{
	StatusPendingApproval: {StatusActive, StatusRejected},
	StatusActive:          {StatusSuspended, StatusInactive},
	StatusSuspended:       {StatusActive, StatusInactive},
	StatusInactive:        {StatusActive},
}

// CanTransitionTo reports whether s may move to next. REJECTED is final.
func (s VerifierStatus) CanTransitionTo(next VerifierStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s VerifierStatus) IsValid() bool {
	switch s {
	case StatusPendingApproval, StatusActive, StatusSuspended, StatusInactive, StatusRejected:
		return true
	}
	return false
}
