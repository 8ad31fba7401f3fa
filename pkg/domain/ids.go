// Package domain holds typed identifiers shared across modules.
//
// Token, verifier and actor identifiers are opaque strings issued by upstream
// systems; change and snapshot identifiers are UUIDs minted here. Parse
// functions are the trust boundary: handlers call them before anything
// reaches a service.
package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "rwaledger/pkg/domain-errors"
)

const maxOpaqueIDLength = 128

type (
	// TokenID identifies a primary, secondary or composite token.
	TokenID string
	// VerifierID identifies a registered third-party verifier.
	VerifierID string
	// RequestID identifies a verification request.
	RequestID string
	// ActorID identifies a human or system principal acting on a change.
	ActorID string
	// ChangeID identifies an approvable change.
	ChangeID uuid.UUID
	// SnapshotID identifies one secondary-token snapshot.
	SnapshotID uuid.UUID
	// SubscriptionID identifies a webhook subscription.
	SubscriptionID uuid.UUID
)

func (id TokenID) String() string    { return string(id) }
func (id VerifierID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }
func (id ActorID) String() string    { return string(id) }

func (id ChangeID) String() string       { return uuid.UUID(id).String() }
func (id SnapshotID) String() string     { return uuid.UUID(id).String() }
func (id SubscriptionID) String() string { return uuid.UUID(id).String() }

func (id ChangeID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id SnapshotID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id SubscriptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ChangeID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id SnapshotID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SubscriptionID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *ChangeID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = ChangeID(u)
	return nil
}

func (id *SnapshotID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = SnapshotID(u)
	return nil
}

func (id *SubscriptionID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = SubscriptionID(u)
	return nil
}

func NewChangeID() ChangeID             { return ChangeID(uuid.New()) }
func NewSnapshotID() SnapshotID         { return SnapshotID(uuid.New()) }
func NewSubscriptionID() SubscriptionID { return SubscriptionID(uuid.New()) }

func ParseTokenID(s string) (TokenID, error) {
	v, err := parseOpaque(s, "token ID")
	return TokenID(v), err
}

func ParseVerifierID(s string) (VerifierID, error) {
	v, err := parseOpaque(s, "verifier ID")
	return VerifierID(v), err
}

func ParseRequestID(s string) (RequestID, error) {
	v, err := parseOpaque(s, "request ID")
	return RequestID(v), err
}

func ParseActorID(s string) (ActorID, error) {
	v, err := parseOpaque(s, "actor ID")
	return ActorID(v), err
}

func ParseChangeID(s string) (ChangeID, error) {
	u, err := parseUUID(s, "change ID")
	return ChangeID(u), err
}

func ParseSnapshotID(s string) (SnapshotID, error) {
	u, err := parseUUID(s, "snapshot ID")
	return SnapshotID(u), err
}

func ParseSubscriptionID(s string) (SubscriptionID, error) {
	u, err := parseUUID(s, "subscription ID")
	return SubscriptionID(u), err
}

// parseOpaque accepts printable, whitespace-free identifiers up to 128 bytes.
func parseOpaque(s, label string) (string, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > maxOpaqueIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" must be valid UTF-8")
	}
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || !unicode.IsPrint(r) }) >= 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" contains invalid characters")
	}
	return s, nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
