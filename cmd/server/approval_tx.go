package main

import (
	"context"
	"database/sql"
	"time"

	approvalservice "rwaledger/internal/approval/service"
	approvalstore "rwaledger/internal/approval/store"
	dErrors "rwaledger/pkg/domain-errors"
)

const defaultApprovalTxTimeout = 5 * time.Second

type approvalPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newApprovalPostgresTx(db *sql.DB) *approvalPostgresTx {
	return &approvalPostgresTx{db: db}
}

func (t *approvalPostgresTx) RunInTx(ctx context.Context, fn func(store approvalservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultApprovalTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(approvalstore.NewPostgresTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}
