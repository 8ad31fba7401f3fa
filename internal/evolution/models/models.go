package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	"rwaledger/pkg/hashing"
)

// TokenType is the closed set of secondary token kinds.
type TokenType string

const (
	TokenOwner        TokenType = "OWNER"
	TokenCollateral   TokenType = "COLLATERAL"
	TokenMedia        TokenType = "MEDIA"
	TokenVerification TokenType = "VERIFICATION"
	TokenValuation    TokenType = "VALUATION"
	TokenCompliance   TokenType = "COMPLIANCE"
)

var tokenTypes = []TokenType{TokenOwner, TokenCollateral, TokenMedia, TokenVerification, TokenValuation, TokenCompliance}

func ParseTokenType(s string) (TokenType, error) {
	t := TokenType(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(tokenTypes, t) {
		return "", dErrors.New(dErrors.CodeValidation, "unknown token type: "+s)
	}
	return t, nil
}

// Reason explains why a snapshot was committed.
type Reason string

const (
	ReasonRevaluation          Reason = "REVALUATION"
	ReasonComplianceUpdate     Reason = "COMPLIANCE_UPDATE"
	ReasonVerificationUpdate   Reason = "VERIFICATION_UPDATE"
	ReasonCollateralAdjustment Reason = "COLLATERAL_ADJUSTMENT"
	ReasonMediaUpdate          Reason = "MEDIA_UPDATE"
	ReasonOwnerChange          Reason = "OWNER_CHANGE"
	ReasonLegalUpdate          Reason = "LEGAL_UPDATE"
	ReasonOracleUpdate         Reason = "ORACLE_UPDATE"
	ReasonScheduled            Reason = "SCHEDULED"
	ReasonManual               Reason = "MANUAL"
)

var reasons = []Reason{
	ReasonRevaluation, ReasonComplianceUpdate, ReasonVerificationUpdate, ReasonCollateralAdjustment,
	ReasonMediaUpdate, ReasonOwnerChange, ReasonLegalUpdate, ReasonOracleUpdate, ReasonScheduled, ReasonManual,
}

func ParseReason(s string) (Reason, error) {
	r := Reason(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(reasons, r) {
		return "", dErrors.New(dErrors.CodeValidation, "unknown evolution reason: "+s)
	}
	return r, nil
}

// VerificationMode controls how strictly RWA changes are gated.
type VerificationMode string

const (
	ModeDisabled  VerificationMode = "DISABLED"
	ModeOptional  VerificationMode = "OPTIONAL"
	ModeMandatory VerificationMode = "MANDATORY"
)

func ParseVerificationMode(s string) (VerificationMode, error) {
	m := VerificationMode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case ModeDisabled, ModeOptional, ModeMandatory:
		return m, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown verification mode: "+s)
}

// RWAAssetTypes are the assetType values that mark a chain as a real-world asset.
var RWAAssetTypes = []string{"REAL_ESTATE", "COMMODITY", "ARTWORK", "DEBT", "INTELLECTUAL_PROPERTY"}

// SystemActor authors snapshots created at chain initialization.
const SystemActor id.ActorID = "SYSTEM"

// Snapshot is one immutable version of a secondary token.
type Snapshot struct {
	ID            id.SnapshotID  `json:"id"`
	TokenType     TokenType      `json:"token_type"`
	Data          map[string]any `json:"data"`
	ContentHash   string         `json:"content_hash"`
	PreviousHash  string         `json:"previous_hash,omitempty"`
	EffectiveFrom time.Time      `json:"effective_from"`
	EffectiveTo   *time.Time     `json:"effective_to,omitempty"`
	Reason        Reason         `json:"reason"`
	Actor         id.ActorID     `json:"actor"`
	ChangeID      *id.ChangeID   `json:"change_id,omitempty"`
}

// contentBody is what the content hash covers.
type contentBody struct {
	ID   string         `json:"id"`
	Type TokenType      `json:"type"`
	Data map[string]any `json:"data"`
}

// ComputeContentHash hashes id, type and data. Chain links and timestamps are
// not part of the content.
func ComputeContentHash(snapshotID id.SnapshotID, tokenType TokenType, data map[string]any) (string, error) {
	return hashing.Content(contentBody{ID: snapshotID.String(), Type: tokenType, Data: data})
}

func NewSnapshot(snapshotID id.SnapshotID, tokenType TokenType, data map[string]any, reason Reason, actor id.ActorID) (*Snapshot, error) {
	if snapshotID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "snapshot ID cannot be empty")
	}
	if data == nil {
		data = map[string]any{}
	}
	copied := cloneData(data)
	hash, err := ComputeContentHash(snapshotID, tokenType, copied)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "snapshot data is not serializable")
	}
	return &Snapshot{
		ID:          snapshotID,
		TokenType:   tokenType,
		Data:        copied,
		ContentHash: hash,
		Reason:      reason,
		Actor:       actor,
	}, nil
}

func (s *Snapshot) IsOpen() bool {
	return s.EffectiveTo == nil
}

// EffectiveAt reports whether at falls in [EffectiveFrom, EffectiveTo).
func (s *Snapshot) EffectiveAt(at time.Time) bool {
	if at.Before(s.EffectiveFrom) {
		return false
	}
	return s.EffectiveTo == nil || at.Before(*s.EffectiveTo)
}

// HashMatches recomputes the content hash and compares it to the stored one.
func (s *Snapshot) HashMatches() bool {
	h, err := ComputeContentHash(s.ID, s.TokenType, s.Data)
	return err == nil && h == s.ContentHash
}

func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Data = cloneData(s.Data)
	if s.EffectiveTo != nil {
		t := *s.EffectiveTo
		out.EffectiveTo = &t
	}
	if s.ChangeID != nil {
		c := *s.ChangeID
		out.ChangeID = &c
	}
	return &out
}

// Chain is the evolution history of one composite token.
//
// Invariants:
//   - IntegrityHash is computed once from (PrimaryID, CompositeID)
//   - Only Current is open; every History entry has EffectiveTo set
//   - Each snapshot's PreviousHash is its predecessor's ContentHash
type Chain struct {
	PrimaryID     id.TokenID       `json:"primary_id"`
	CompositeID   id.TokenID       `json:"composite_id"`
	IntegrityHash string           `json:"integrity_hash"`
	Mode          VerificationMode `json:"verification_mode,omitempty"`
	Current       *Snapshot        `json:"current,omitempty"`
	History       []Snapshot       `json:"history"`
	CreatedAt     time.Time        `json:"created_at"`
	Version       int              `json:"version"`
}

func NewChain(primary, composite id.TokenID, now time.Time) (*Chain, error) {
	if primary == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "primary token ID cannot be empty")
	}
	if composite == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "composite token ID cannot be empty")
	}
	return &Chain{
		PrimaryID:     primary,
		CompositeID:   composite,
		IntegrityHash: hashing.Integrity(string(primary), string(composite)),
		History:       []Snapshot{},
		CreatedAt:     now,
		Version:       1,
	}, nil
}

// VerifyIntegrity recomputes the anchor from the immutable pair.
func (c *Chain) VerifyIntegrity() bool {
	return hashing.Integrity(string(c.PrimaryID), string(c.CompositeID)) == c.IntegrityHash
}

// Append closes the current snapshot at now, moves it to History and makes s
// current, linked to the closed snapshot's content hash.
func (c *Chain) Append(s *Snapshot, now time.Time) {
	s.EffectiveFrom = now
	s.EffectiveTo = nil
	s.PreviousHash = ""
	if c.Current != nil {
		closed := c.Current.Clone()
		closed.EffectiveTo = &now
		c.History = append(c.History, *closed)
		s.PreviousHash = closed.ContentHash
	}
	c.Current = s
}

// Snapshots lists history then current, oldest first.
func (c *Chain) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(c.History)+1)
	out = append(out, c.History...)
	if c.Current != nil {
		out = append(out, *c.Current)
	}
	return out
}

// LatestOfType returns the newest snapshot of type t, open or closed.
func (c *Chain) LatestOfType(t TokenType) *Snapshot {
	if c.Current != nil && c.Current.TokenType == t {
		return c.Current
	}
	for i := len(c.History) - 1; i >= 0; i-- {
		if c.History[i].TokenType == t {
			return &c.History[i]
		}
	}
	return nil
}

// SnapshotAt returns the snapshot of type t effective at the given instant.
func (c *Chain) SnapshotAt(t TokenType, at time.Time) *Snapshot {
	for _, s := range c.Snapshots() {
		if s.TokenType == t && s.EffectiveAt(at) {
			return s.Clone()
		}
	}
	return nil
}

// HasChange reports whether a committed snapshot already carries changeID.
func (c *Chain) HasChange(changeID id.ChangeID) bool {
	for _, s := range c.Snapshots() {
		if s.ChangeID != nil && *s.ChangeID == changeID {
			return true
		}
	}
	return false
}

// IsRWA reports whether the incoming payload or any committed snapshot
// carries an RWA asset type. Once tagged, a chain stays RWA.
func (c *Chain) IsRWA(incoming map[string]any) bool {
	if isRWAData(incoming) {
		return true
	}
	return slices.ContainsFunc(c.Snapshots(), func(s Snapshot) bool { return isRWAData(s.Data) })
}

func isRWAData(data map[string]any) bool {
	v, ok := data["assetType"].(string)
	return ok && slices.Contains(RWAAssetTypes, strings.ToUpper(v))
}

// EffectiveMode is the chain override, or def when none is set.
func (c *Chain) EffectiveMode(def VerificationMode) VerificationMode {
	if c.Mode != "" {
		return c.Mode
	}
	return def
}

// VerifyLinks checks that every content hash recomputes, every PreviousHash
// matches its predecessor and only the last snapshot is open.
func (c *Chain) VerifyLinks() error {
	all := c.Snapshots()
	prev := ""
	for i, s := range all {
		if !s.HashMatches() {
			return dErrors.New(dErrors.CodeIntegrityViolation, fmt.Sprintf("snapshot %s content hash mismatch", s.ID))
		}
		if s.PreviousHash != prev {
			return dErrors.New(dErrors.CodeIntegrityViolation, fmt.Sprintf("snapshot %s is not linked to its predecessor", s.ID))
		}
		if last := i == len(all)-1; s.IsOpen() != (last && c.Current != nil) {
			return dErrors.New(dErrors.CodeIntegrityViolation, fmt.Sprintf("snapshot %s has an invalid effective window", s.ID))
		}
		prev = s.ContentHash
	}
	return nil
}

func (c *Chain) Clone() *Chain {
	if c == nil {
		return nil
	}
	out := *c
	out.Current = c.Current.Clone()
	out.History = make([]Snapshot, len(c.History))
	for i := range c.History {
		out.History[i] = *c.History[i].Clone()
	}
	return &out
}

// History is the read view of a chain.
type History struct {
	PrimaryID      id.TokenID `json:"primary_id"`
	CompositeID    id.TokenID `json:"composite_id"`
	IntegrityHash  string     `json:"integrity_hash"`
	IntegrityValid bool       `json:"integrity_valid"`
	LinksValid     bool       `json:"links_valid"`
	Current        *Snapshot  `json:"current,omitempty"`
	History        []Snapshot `json:"history"`
}

func cloneData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
