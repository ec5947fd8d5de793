package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTracker keeps one sorted set per game: member = user id,
// score = last sync in unix milliseconds.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisTracker RedisTracker constructor
func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	return &RedisTracker{client: client, ttl: ttl, now: time.Now}
}

func (r *RedisTracker) getGameKey(gameID string) string {
	return fmt.Sprintf("presence:game:%s", gameID)
}

func (r *RedisTracker) Touch(ctx context.Context, gameID, userID string) error {
	key := r.getGameKey(gameID)
	now := r.now()
	cutoff := now.Add(-r.ttl).UnixMilli()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: userID})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		// the key outlives its newest member by one TTL
		pipe.Expire(ctx, key, 2*r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence touch: %w", err)
	}
	return nil
}

func (r *RedisTracker) Online(ctx context.Context, gameID string) ([]string, error) {
	cutoff := r.now().Add(-r.ttl).UnixMilli()
	members, err := r.client.ZRangeByScore(ctx, r.getGameKey(gameID), &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("presence online: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

func (r *RedisTracker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisTracker) Close() error {
	return r.client.Close()
}
