// Package deadline indexes pending changes by voting deadline so expiry
// sweeps read only the changes that are due.
package deadline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "rwaledger/pkg/domain"
)

const deadlineKey = "approvals:deadlines"

// RedisIndex keeps one sorted set of change IDs scored by deadline (unix ms).
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(client *redis.Client) *RedisIndex {
	return &RedisIndex{client: client, key: deadlineKey}
}

func (i *RedisIndex) Track(ctx context.Context, changeID id.ChangeID, deadline time.Time) error {
	err := i.client.ZAdd(ctx, i.key, redis.Z{Score: float64(deadline.UnixMilli()), Member: changeID.String()}).Err()
	if err != nil {
		return fmt.Errorf("track deadline: %w", err)
	}
	return nil
}

func (i *RedisIndex) Remove(ctx context.Context, changeID id.ChangeID) error {
	if err := i.client.ZRem(ctx, i.key, changeID.String()).Err(); err != nil {
		return fmt.Errorf("remove deadline: %w", err)
	}
	return nil
}

// Due returns changes whose deadline is strictly before now.
func (i *RedisIndex) Due(ctx context.Context, now time.Time) ([]id.ChangeID, error) {
	members, err := i.client.ZRangeByScore(ctx, i.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read deadlines: %w", err)
	}
	out := make([]id.ChangeID, 0, len(members))
	for _, m := range members {
		changeID, err := id.ParseChangeID(m)
		if err != nil {
			continue
		}
		out = append(out, changeID)
	}
	return out, nil
}
