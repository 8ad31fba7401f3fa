package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rwaledger/internal/verifier/models"
	id "rwaledger/pkg/domain"
)

const leaderboardKeyPrefix = "verifiers:reputation:"

// RedisLeaderboard keeps one sorted set of ACTIVE verifiers per tier, scored
// by reputation. It is a read model; the directory store stays authoritative.
type RedisLeaderboard struct {
	client *redis.Client
}

func NewRedisLeaderboard(client *redis.Client) *RedisLeaderboard {
	return &RedisLeaderboard{client: client}
}

// Sync places v in its tier's set when ACTIVE and removes it everywhere else.
func (l *RedisLeaderboard) Sync(ctx context.Context, v *models.Verifier) error {
	pipe := l.client.TxPipeline()
	for _, t := range models.AllTiers {
		pipe.ZRem(ctx, leaderboardKey(t), string(v.ID))
	}
	if v.Status == models.StatusActive {
		pipe.ZAdd(ctx, leaderboardKey(v.Tier), redis.Z{Score: v.Reputation, Member: string(v.ID)})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sync leaderboard: %w", err)
	}
	return nil
}

// Top returns up to n verifier IDs of the given tier, best reputation first.
func (l *RedisLeaderboard) Top(ctx context.Context, tier models.Tier, n int) ([]id.VerifierID, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := l.client.ZRevRange(ctx, leaderboardKey(tier), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	out := make([]id.VerifierID, len(members))
	for i, m := range members {
		out[i] = id.VerifierID(m)
	}
	return out, nil
}

func leaderboardKey(t models.Tier) string {
	return leaderboardKeyPrefix + string(t)
}
