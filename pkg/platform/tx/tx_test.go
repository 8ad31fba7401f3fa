package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithoutTransaction(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, ctx, WithTx(ctx, nil), "a nil tx leaves the context untouched")

	_, ok := From(ctx)
	assert.False(t, ok)

	db := &sql.DB{}
	assert.Same(t, db, QuerierFrom(ctx, db))
}
