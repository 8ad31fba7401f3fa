// Package gate decides whether a chain may evolve, based on the chain's
// verification mode and the approval and verification outcomes on record.
package gate

import (
	"context"

	"rwaledger/internal/evolution/models"
	verification "rwaledger/internal/verification/models"
	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
)

// ApprovalChecker reports whether a VVB change reached APPROVED for a token.
type ApprovalChecker interface {
	ApprovedFor(ctx context.Context, changeID id.ChangeID, token id.TokenID) (bool, error)
}

// VerificationChecker reports the latest completed outcome of a verification
// request opened for one change on a subject.
type VerificationChecker interface {
	OutcomeForChange(ctx context.Context, changeID id.ChangeID, subject id.TokenID) (verification.Outcome, error)
}

// Request describes a proposed evolution.
type Request struct {
	Chain    *models.Chain
	Data     map[string]any
	ChangeID *id.ChangeID
}

// Decision is the gate's answer. Verified is true when an approval or a
// verification backs the change, whether or not the mode required one.
type Decision struct {
	Allowed  bool
	RWA      bool
	Mode     models.VerificationMode
	Verified bool
	Reason   string
}

type Gate struct {
	approvals     ApprovalChecker
	verifications VerificationChecker
	defaultMode   models.VerificationMode
}

type Option func(*Gate)

func WithApprovals(a ApprovalChecker) Option {
	return func(g *Gate) {
		g.approvals = a
	}
}

func WithVerifications(v VerificationChecker) Option {
	return func(g *Gate) {
		g.verifications = v
	}
}

func New(defaultMode models.VerificationMode, opts ...Option) *Gate {
	if defaultMode == "" {
		defaultMode = models.ModeOptional
	}
	g := &Gate{defaultMode: defaultMode}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) DefaultMode() models.VerificationMode {
	return g.defaultMode
}

// Authorize evaluates req. Only MANDATORY mode on an RWA chain can deny, and
// there the backing must belong to req.ChangeID and that change must not
// already back a committed snapshot.
func (g *Gate) Authorize(ctx context.Context, req Request) (Decision, error) {
	if !req.Chain.IsRWA(req.Data) {
		return Decision{Allowed: true, Reason: "not a real-world asset"}, nil
	}
	mode := req.Chain.EffectiveMode(g.defaultMode)
	d := Decision{RWA: true, Mode: mode}
	if mode == models.ModeDisabled {
		d.Allowed = true
		d.Reason = "verification disabled"
		return d, nil
	}

	verified, reason, err := g.hasVerification(ctx, req)
	if err != nil {
		return Decision{}, err
	}
	d.Verified = verified
	d.Reason = reason
	d.Allowed = verified || mode == models.ModeOptional
	return d, nil
}

func (g *Gate) hasVerification(ctx context.Context, req Request) (bool, string, error) {
	if req.ChangeID == nil || req.ChangeID.IsNil() {
		return false, "no change id supplied", nil
	}
	changeID := *req.ChangeID
	if req.Chain.HasChange(changeID) {
		return false, "change " + changeID.String() + " already applied", nil
	}
	composite := req.Chain.CompositeID
	if g.approvals != nil {
		ok, err := g.approvals.ApprovedFor(ctx, changeID, composite)
		if err != nil {
			return false, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check change approval")
		}
		if ok {
			return true, "change approved by VVB", nil
		}
	}
	if g.verifications != nil {
		outcome, err := g.verifications.OutcomeForChange(ctx, changeID, composite)
		if err != nil {
			return false, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check verification outcome")
		}
		if outcome == verification.OutcomeVerified {
			return true, "third-party verification completed for change", nil
		}
	}
	return false, "change neither approved nor verified", nil
}
