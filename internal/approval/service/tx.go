package service

import (
	"context"
	"sync"
	"time"

	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
)

// StoreTx provides a transactional boundary for change mutations.
// Implementations may wrap a database transaction or, in-memory, a sharded lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// numChangeShards spreads per-change locks so unrelated changes do not contend.
const numChangeShards = 128

const defaultChangeTxTimeout = 5 * time.Second

type shardedChangeTx struct {
	shards  [numChangeShards]sync.Mutex
	store   Store
	timeout time.Duration
}

// NewShardedTx serializes mutations per change ID over an in-memory store.
func NewShardedTx(store Store) StoreTx {
	return &shardedChangeTx{store: store}
}

func (t *shardedChangeTx) RunInTx(ctx context.Context, fn func(store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultChangeTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(t.store)
}

// selectShard picks a shard from the change ID on ctx, or shard 0.
func (t *shardedChangeTx) selectShard(ctx context.Context) int {
	if changeID, ok := ctx.Value(txChangeKeyCtx).(string); ok && changeID != "" {
		return int(hashChangeKey(changeID) % numChangeShards)
	}
	return 0
}

// hashChangeKey is FNV-1a.
func hashChangeKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type txChangeKey struct{}

var txChangeKeyCtx = txChangeKey{}

func withChangeKey(ctx context.Context, changeID id.ChangeID) context.Context {
	return context.WithValue(ctx, txChangeKeyCtx, changeID.String())
}
