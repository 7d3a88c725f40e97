package cache

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/aq2208/gcart-api/internal/usecase"
)

const DefaultSnapshotKey = "cart:snapshot"

// RedisSnapshotStore keeps the whole cart snapshot under a single key.
// SET replaces the value atomically, so readers never see a partial write.
type RedisSnapshotStore struct {
	rdb *redis.Client
	key string
}

func NewRedisSnapshotStore(rdb *redis.Client, key string) *RedisSnapshotStore {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &RedisSnapshotStore{rdb: rdb, key: key}
}

func (r *RedisSnapshotStore) Load(ctx context.Context) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return nil, usecase.ErrNoSnapshot
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get snapshot")
	}
	return b, nil
}

func (r *RedisSnapshotStore) Save(ctx context.Context, data []byte) error {
	// no expiry, the snapshot is the source of truth
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return errors.Wrap(err, "redis set snapshot")
	}
	return nil
}

var _ usecase.SnapshotStore = (*RedisSnapshotStore)(nil)
