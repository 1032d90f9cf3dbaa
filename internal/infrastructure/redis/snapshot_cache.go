package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/domain"

	"github.com/go-redis/redis/v8"
)

// storeSnapshotScript writes the snapshot only when it is newer than the
// cached one, so a slow writer can never roll the cache back.
var storeSnapshotScript = redis.NewScript(`
    local cached = redis.call('HGET', KEYS[1], 'version')
    if cached and tonumber(cached) >= tonumber(ARGV[1]) then
        return 0
    end
    redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
    if tonumber(ARGV[3]) > 0 then
        redis.call('PEXPIRE', KEYS[1], ARGV[3])
    end
    return 1
`)

type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(auctionID string) string {
	return fmt.Sprintf("auction:%s:snapshot", auctionID)
}

func (r *RedisSnapshotCache) StoreSnapshot(ctx context.Context, snapshot domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	return storeSnapshotScript.Run(ctx, r.client, []string{snapshotKey(snapshot.AuctionID)},
		snapshot.Version, string(data), r.ttl.Milliseconds()).Err()
}

func (r *RedisSnapshotCache) GetSnapshot(ctx context.Context, auctionID string) (*domain.Snapshot, error) {
	data, err := r.client.HGet(ctx, snapshotKey(auctionID), "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot for auction %s: %w", auctionID, err)
	}
	return &snapshot, nil
}
