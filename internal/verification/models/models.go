package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	verifier "rwaledger/internal/verifier/models"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/hashing"
)

// Outcome is the interpreted verdict of a request.
type Outcome string

const (
	OutcomePending  Outcome = "PENDING"
	OutcomeVerified Outcome = "VERIFIED"
	OutcomeFailed   Outcome = "FAILED"
)

// Result is one verifier's verdict. Immutable once submitted.
type Result struct {
	VerifierID    id.VerifierID       `json:"verifier_id"`
	Verified      bool                `json:"verified"`
	AchievedLevel verifier.TrustLevel `json:"achieved_level"`
	Summary       string              `json:"summary"`
	SubmittedAt   time.Time           `json:"submitted_at"`
}

// Request asks a fixed set of verifiers to attest a composite token.
//
// Invariants:
//   - Assigned is fixed at creation and never empty
//   - Results only contains assigned verifiers, each at most once
//   - CompletedAt is set exactly when len(Results) reaches len(Assigned)
type Request struct {
	ID           id.RequestID        `json:"id"`
	SubjectID    id.TokenID          `json:"subject_id"`
	AssetType    string              `json:"asset_type"`
	TrustLevel   verifier.TrustLevel `json:"trust_level"`
	RequiredTier verifier.Tier       `json:"required_tier"`
	ChangeID     *id.ChangeID        `json:"change_id,omitempty"`
	Assigned     []id.VerifierID     `json:"assigned_verifiers"`
	Results      []Result            `json:"results"`
	RequestedAt  time.Time           `json:"requested_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// NewRequestID formats REQ-<8 hex of the subject digest>-<seq>.
func NewRequestID(subject id.TokenID, sequence int64) id.RequestID {
	return id.RequestID(fmt.Sprintf("REQ-%s-%d", hashing.SHA256Hex([]byte(subject))[:8], sequence))
}

func NewRequest(requestID id.RequestID, subject id.TokenID, assetType string, level verifier.TrustLevel, tier verifier.Tier, assigned []id.VerifierID, now time.Time) (*Request, error) {
	if requestID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request ID cannot be empty")
	}
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject ID cannot be empty")
	}
	if strings.TrimSpace(assetType) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "asset type cannot be empty")
	}
	if len(assigned) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request needs at least one assigned verifier")
	}
	return &Request{
		ID:           requestID,
		SubjectID:    subject,
		AssetType:    strings.TrimSpace(assetType),
		TrustLevel:   level,
		RequiredTier: tier,
		Assigned:     slices.Clone(assigned),
		RequestedAt:  now,
	}, nil
}

// BacksChange reports whether r was opened for changeID.
func (r *Request) BacksChange(changeID id.ChangeID) bool {
	return r.ChangeID != nil && *r.ChangeID == changeID
}

func (r *Request) IsAssigned(verifierID id.VerifierID) bool {
	return slices.Contains(r.Assigned, verifierID)
}

func (r *Request) HasResultFrom(verifierID id.VerifierID) bool {
	return slices.ContainsFunc(r.Results, func(res Result) bool { return res.VerifierID == verifierID })
}

func (r *Request) IsComplete() bool {
	return len(r.Results) >= len(r.Assigned)
}

// CanSubmit checks a result against the assigned set. Use with ApplyResult
// in Execute callbacks.
func (r *Request) CanSubmit(verifierID id.VerifierID) error {
	if !r.IsAssigned(verifierID) {
		return dErrors.New(dErrors.CodeUnauthorizedVerifier,
			fmt.Sprintf("verifier %s is not assigned to request %s", verifierID, r.ID))
	}
	if r.HasResultFrom(verifierID) {
		return dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("verifier %s already submitted a result for %s", verifierID, r.ID))
	}
	if r.CompletedAt != nil {
		return dErrors.New(dErrors.CodeInvalidState, "request is already complete")
	}
	return nil
}

// ApplyResult appends res and stamps completion. Call CanSubmit first.
func (r *Request) ApplyResult(res Result) {
	r.Results = append(r.Results, res)
	if r.IsComplete() && r.CompletedAt == nil {
		done := res.SubmittedAt
		r.CompletedAt = &done
	}
}

// Outcome is PENDING until complete, then VERIFIED on a strict majority of
// verified results and FAILED otherwise.
func (r *Request) Outcome() Outcome {
	if !r.IsComplete() {
		return OutcomePending
	}
	verified := 0
	for _, res := range r.Results {
		if res.Verified {
			verified++
		}
	}
	if verified*2 > len(r.Results) {
		return OutcomeVerified
	}
	return OutcomeFailed
}

func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	out.Assigned = slices.Clone(r.Assigned)
	out.Results = slices.Clone(r.Results)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	if r.ChangeID != nil {
		c := *r.ChangeID
		out.ChangeID = &c
	}
	return &out
}
