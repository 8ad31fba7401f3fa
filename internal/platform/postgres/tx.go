package postgres

import (
	"context"
	"database/sql"
	"time"

	dErrors "rwaledger/pkg/domain-errors"
	txcontext "rwaledger/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// RunInTx runs fn inside a transaction carried on the context, so stores that
// read txcontext.From join it. A deadline is applied when ctx has none.
func RunInTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
