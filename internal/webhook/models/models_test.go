package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
)

func TestNewSubscription(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("normalizes the event filter", func(t *testing.T) {
		sub, err := NewSubscription(id.NewSubscriptionID(), " https://hooks.example.com/rwa ", "s3cret",
			[]string{"consensus_reached", " CONSENSUS_REACHED", "", "token_evolved"}, now)
		require.NoError(t, err)
		assert.Equal(t, "https://hooks.example.com/rwa", sub.URL)
		assert.Equal(t, []string{"CONSENSUS_REACHED", "TOKEN_EVOLVED"}, sub.Events)
		assert.True(t, sub.Active)
	})

	t.Run("empty filter subscribes to everything", func(t *testing.T) {
		sub, err := NewSubscription(id.NewSubscriptionID(), "http://localhost:9000", "s", nil, now)
		require.NoError(t, err)
		assert.Equal(t, []string{AllEvents}, sub.Events)
		assert.True(t, sub.Matches("ANYTHING"))
	})

	t.Run("rejects bad input", func(t *testing.T) {
		for _, raw := range []string{"", "ftp://x", "/relative", "https://"} {
			_, err := NewSubscription(id.NewSubscriptionID(), raw, "s", nil, now)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), raw)
		}
		_, err := NewSubscription(id.NewSubscriptionID(), "https://x", "  ", nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = NewSubscription(id.SubscriptionID{}, "https://x", "s", nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestMatches(t *testing.T) {
	sub := &Subscription{Events: []string{"VOTE_SUBMITTED"}, Active: true}
	assert.True(t, sub.Matches("vote_submitted"))
	assert.False(t, sub.Matches("TOKEN_EVOLVED"))

	sub.Active = false
	assert.False(t, sub.Matches("VOTE_SUBMITTED"))
}
