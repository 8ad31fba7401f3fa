package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	t.Run("HasCode matches the outermost code only", func(t *testing.T) {
		inner := New(CodeNotFound, "verifier not found")
		outer := Wrap(inner, CodeInternal, "failed to assign")

		assert.True(t, HasCode(outer, CodeInternal))
		assert.False(t, HasCode(outer, CodeNotFound))
		assert.True(t, Is(outer, CodeNotFound))
	})

	t.Run("fmt wrapping keeps the code reachable", func(t *testing.T) {
		err := fmt.Errorf("evolve: %w", New(CodeValidation, "valuation delta too large"))
		assert.True(t, HasCode(err, CodeValidation))
		assert.Equal(t, CodeValidation, CodeOf(err))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.False(t, Is(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.False(t, HasCode(nil, CodeInternal))
	})

	t.Run("Unwrap exposes the cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(cause, CodeInternal, "failed to load change")
		require.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to load change: connection reset", err.Error())
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:            http.StatusBadRequest,
		CodeInvalidChangeType:     http.StatusBadRequest,
		CodeUnauthorized:          http.StatusUnauthorized,
		CodeUnauthorizedApprover:  http.StatusForbidden,
		CodeUnauthorizedVerifier:  http.StatusForbidden,
		CodeVerificationRequired:  http.StatusForbidden,
		CodeNotFound:              http.StatusNotFound,
		CodeConflict:              http.StatusConflict,
		CodeInsufficientVerifiers: http.StatusUnprocessableEntity,
		CodeIntegrityViolation:    http.StatusUnprocessableEntity,
		CodeInternal:              http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), "code %s", code)
	}
}
