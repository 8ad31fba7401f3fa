package models

import (
	"slices"
	"strings"
	"time"

	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
)

// Status is the lifecycle state of a change awaiting VVB sign-off.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusPendingVVB Status = "PENDING_VVB"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusArchived   Status = "ARCHIVED"
)

var statusTransitions = map[Status][]Status{
	StatusCreated:    {StatusPendingVVB},
	StatusPendingVVB: {StatusApproved, StatusRejected, StatusArchived},
}

// CanTransitionTo reports whether s may move to next. Terminal states have no exits.
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(statusTransitions[s], next)
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusArchived
}

func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusPendingVVB, StatusApproved, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// Tier is the approval class of a change.
type Tier string

const (
	TierStandard Tier = "STANDARD"
	TierElevated Tier = "ELEVATED"
	TierCritical Tier = "CRITICAL"
)

// TierPolicy is the quorum a tier needs.
type TierPolicy struct {
	RequiredApprovers int
	MinAdmins         int
}

var tierPolicies = map[Tier]TierPolicy{
	TierStandard: {RequiredApprovers: 1, MinAdmins: 0},
	TierElevated: {RequiredApprovers: 2, MinAdmins: 1},
	TierCritical: {RequiredApprovers: 3, MinAdmins: 2},
}

// AllTiers lists tiers from least to most sensitive.
var AllTiers = []Tier{TierStandard, TierElevated, TierCritical}

func (t Tier) Policy() TierPolicy {
	return tierPolicies[t]
}

func (t Tier) IsValid() bool {
	_, ok := tierPolicies[t]
	return ok
}

// ChangeType names a kind of token change. Each maps to exactly one tier.
type ChangeType string

const (
	ChangeSecondaryTokenCreate ChangeType = "SECONDARY_TOKEN_CREATE"
	ChangeSecondaryTokenUpdate ChangeType = "SECONDARY_TOKEN_UPDATE"
	ChangeSecondaryTokenRetire ChangeType = "SECONDARY_TOKEN_RETIRE"
	ChangeTokenSuspension      ChangeType = "TOKEN_SUSPENSION"
	ChangePrimaryTokenRetire   ChangeType = "PRIMARY_TOKEN_RETIRE"
)

var changeTiers = map[ChangeType]Tier{
	ChangeSecondaryTokenCreate: TierStandard,
	ChangeSecondaryTokenUpdate: TierStandard,
	ChangeSecondaryTokenRetire: TierElevated,
	ChangeTokenSuspension:      TierElevated,
	ChangePrimaryTokenRetire:   TierCritical,
}

// ParseChangeType normalizes s and resolves it to a known change type.
// Unknown types are never defaulted.
func ParseChangeType(s string) (ChangeType, error) {
	ct := ChangeType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := changeTiers[ct]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidChangeType, "unknown change type: "+s)
	}
	return ct, nil
}

func (c ChangeType) Tier() (Tier, error) {
	t, ok := changeTiers[c]
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidChangeType, "unknown change type: "+string(c))
	}
	return t, nil
}

// Role is an approver's authority class.
type Role string

const (
	RoleNone      Role = ""
	RoleValidator Role = "validator"
	RoleAdmin     Role = "admin"
)

// EligibleFor reports whether the role may vote on changes of tier t.
// Every tier accepts validators and admins; admin quorum is enforced separately.
func (r Role) EligibleFor(t Tier) bool {
	return t.IsValid() && (r == RoleValidator || r == RoleAdmin)
}

// Verdict is the decision an approver casts.
type Verdict string

const (
	VerdictApproved Verdict = "APPROVED"
	VerdictRejected Verdict = "REJECTED"
)

func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(strings.ToUpper(strings.TrimSpace(s)))
	if v != VerdictApproved && v != VerdictRejected {
		return "", dErrors.New(dErrors.CodeValidation, "decision must be APPROVED or REJECTED")
	}
	return v, nil
}

// Decision is one approver's recorded vote. Append-only per change.
type Decision struct {
	ApproverID id.ActorID `json:"approver_id"`
	Role       Role       `json:"role"`
	Verdict    Verdict    `json:"decision"`
	Reason     string     `json:"reason,omitempty"`
	DecidedAt  time.Time  `json:"decided_at"`
}

// Change is a token change awaiting VVB approval.
//
// Invariants:
//   - Tier is derived from ChangeType at creation and never changes
//   - A terminal status is never left
//   - Decisions holds at most one entry per approver
type Change struct {
	ID            id.ChangeID `json:"id"`
	ParentTokenID id.TokenID  `json:"parent_token_id"`
	ChangeType    ChangeType  `json:"change_type"`
	Tier          Tier        `json:"tier"`
	Status        Status      `json:"status"`
	CreatedBy     id.ActorID  `json:"created_by,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	SubmittedAt   *time.Time  `json:"submitted_at,omitempty"`
	Deadline      *time.Time  `json:"deadline,omitempty"`
	DecidedAt     *time.Time  `json:"decided_at,omitempty"`
	Decisions     []Decision  `json:"decisions"`
	Version       int         `json:"version"`
}

func NewChange(changeID id.ChangeID, parent id.TokenID, changeType ChangeType, createdBy id.ActorID, now time.Time) (*Change, error) {
	if changeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "change ID cannot be empty")
	}
	if parent == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "parent token ID cannot be empty")
	}
	tier, err := changeType.Tier()
	if err != nil {
		return nil, err
	}
	return &Change{
		ID:            changeID,
		ParentTokenID: parent,
		ChangeType:    changeType,
		Tier:          tier,
		Status:        StatusCreated,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		Version:       1,
	}, nil
}

func (c *Change) IsTerminal() bool {
	return c.Status.IsTerminal()
}

// CanSubmit checks CREATED → PENDING_VVB.
func (c *Change) CanSubmit() error {
	if !c.Status.CanTransitionTo(StatusPendingVVB) {
		return dErrors.New(dErrors.CodeInvalidState, "change cannot be submitted from "+string(c.Status))
	}
	return nil
}

// ApplySubmit starts the voting window. Call CanSubmit first.
func (c *Change) ApplySubmit(now time.Time, window time.Duration) {
	submitted := now
	deadline := now.Add(window)
	c.Status = StatusPendingVVB
	c.SubmittedAt = &submitted
	c.Deadline = &deadline
}

// IsExpired reports whether a pending change has been open longer than window.
func (c *Change) IsExpired(now time.Time, window time.Duration) bool {
	return c.Status == StatusPendingVVB && c.SubmittedAt != nil && now.Sub(*c.SubmittedAt) > window
}

// ApplyExpiry archives the change. Call IsExpired first.
func (c *Change) ApplyExpiry(now time.Time) {
	c.Status = StatusArchived
	c.DecidedAt = &now
}

// HasDecided reports whether approver already voted.
func (c *Change) HasDecided(approver id.ActorID) bool {
	return slices.ContainsFunc(c.Decisions, func(d Decision) bool { return d.ApproverID == approver })
}

// CanDecide checks that the change is open for votes. Terminal changes are
// handled by the caller as no-ops before this is reached.
func (c *Change) CanDecide() error {
	if c.Status != StatusPendingVVB {
		return dErrors.New(dErrors.CodeInvalidState, "change is not pending approval: "+string(c.Status))
	}
	return nil
}

// ApplyDecision records d and moves the change to a terminal state when a
// rejection arrives or the tier quorum is met. A repeat vote by the same
// approver is ignored. It reports whether the change was modified.
func (c *Change) ApplyDecision(d Decision) bool {
	if c.HasDecided(d.ApproverID) {
		return false
	}
	c.Decisions = append(c.Decisions, d)
	switch {
	case d.Verdict == VerdictRejected:
		c.Status = StatusRejected
		c.DecidedAt = &d.DecidedAt
	case c.QuorumMet():
		c.Status = StatusApproved
		c.DecidedAt = &d.DecidedAt
	}
	return true
}

// Approvals counts distinct approving identities and how many are admins.
func (c *Change) Approvals() (total, admins int) {
	seen := make(map[id.ActorID]struct{}, len(c.Decisions))
	for _, d := range c.Decisions {
		if d.Verdict != VerdictApproved {
			continue
		}
		if _, dup := seen[d.ApproverID]; dup {
			continue
		}
		seen[d.ApproverID] = struct{}{}
		total++
		if d.Role == RoleAdmin {
			admins++
		}
	}
	return total, admins
}

// QuorumMet reports whether the approvals satisfy the tier policy.
func (c *Change) QuorumMet() bool {
	policy := c.Tier.Policy()
	total, admins := c.Approvals()
	return policy.RequiredApprovers > 0 && total >= policy.RequiredApprovers && admins >= policy.MinAdmins
}

func (c *Change) Clone() *Change {
	if c == nil {
		return nil
	}
	out := *c
	out.Decisions = slices.Clone(c.Decisions)
	out.SubmittedAt = cloneTime(c.SubmittedAt)
	out.Deadline = cloneTime(c.Deadline)
	out.DecidedAt = cloneTime(c.DecidedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Stats summarizes changes by state and tier.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
	ByTier   map[Tier]int   `json:"by_tier"`

	// ApprovalRate is approved / (approved + rejected + archived), or 0.
	ApprovalRate float64 `json:"approval_rate"`
}
