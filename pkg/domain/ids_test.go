package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rwaledger/pkg/domain-errors"
)

// TestParseOpaqueID_TrustBoundary validates that externally issued identifiers
// are printable, whitespace-free and bounded before they reach services.
func TestParseOpaqueID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty string", "", true},
		{"whitespace only", "   ", true},
		{"embedded space", "VER T1", true},
		{"null byte", "VER-T1\x00-ACME", true},
		{"zero-width space", "VER-T1\u200B-ACME", true},
		{"oversized input", strings.Repeat("a", 1000), true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},

		{"verifier style id", "VER-T1-ACMEAP-1", false},
		{"composite token id", "composite-1", false},
		{"urn style id", "urn:rwa:token:42", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTokenID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseUUIDBackedIDs(t *testing.T) {
	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseChangeID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSnapshotID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		u := uuid.New()
		id, err := ParseChangeID(u.String())
		require.NoError(t, err)
		assert.Equal(t, ChangeID(u), id)
		assert.False(t, id.IsNil())
	})

	t.Run("text round trip", func(t *testing.T) {
		id := NewChangeID()
		b, err := id.MarshalText()
		require.NoError(t, err)

		var decoded ChangeID
		require.NoError(t, decoded.UnmarshalText(b))
		assert.Equal(t, id, decoded)
	})
}

// TestAllIDTypes_ConsistentBehavior ensures opaque ID types share one validation.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	for _, input := range []string{"", "has space", "ok-id"} {
		_, errToken := ParseTokenID(input)
		_, errVerifier := ParseVerifierID(input)
		_, errRequest := ParseRequestID(input)
		_, errActor := ParseActorID(input)

		assert.Equal(t, errToken == nil, errVerifier == nil, "input %q", input)
		assert.Equal(t, errToken == nil, errRequest == nil, "input %q", input)
		assert.Equal(t, errToken == nil, errActor == nil, "input %q", input)
	}
}
