package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrity(t *testing.T) {
	t.Run("deterministic for the same pair", func(t *testing.T) {
		assert.Equal(t, Integrity("primary-1", "composite-1"), Integrity("primary-1", "composite-1"))
	})

	t.Run("part boundaries are unambiguous", func(t *testing.T) {
		assert.NotEqual(t, Integrity("ab", "c"), Integrity("a", "bc"))
		assert.NotEqual(t, Integrity("a|b", "c"), Integrity("a", "b|c"))
		assert.NotEqual(t, Integrity("a", ""), Integrity("", "a"))
		assert.NotEqual(t, Integrity("ab"), Integrity("a", "b"))
	})

	t.Run("256-bit hex digest", func(t *testing.T) {
		assert.Len(t, Integrity("p", "c"), 64)
	})
}

func TestContent(t *testing.T) {
	t.Run("map key order does not matter", func(t *testing.T) {
		a, err := Content(map[string]any{"value": 100, "currency": "USD"})
		require.NoError(t, err)
		b, err := Content(map[string]any{"currency": "USD", "value": 100})
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.True(t, strings.HasPrefix(a, "sha256:"))
	})

	t.Run("unencodable input fails", func(t *testing.T) {
		_, err := Content(map[string]any{"ch": make(chan int)})
		require.Error(t, err)
	})
}
