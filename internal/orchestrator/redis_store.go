package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the sorted set holding the ranking, scored by players alive.
const DefaultRedisKey = "stream-by-alive"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	// Key is the sorted set name; the full snapshot lives at Key+":snapshot".
	Key string
}

// RedisStore mirrors published snapshots into Redis.
//
// Redis keys:
//
//	stream-by-alive            ZSET  stream name scored by players alive
//	stream-by-alive:snapshot   STRING JSON-encoded Snapshot
//
// Both keys are written in one MULTI/EXEC so other readers of the sorted set
// never see a half-written ranking.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to Redis and returns a Store backed by it.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.Key), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) snapshotKey() string {
	return s.key + ":snapshot"
}

// SaveSnapshot implements Store.SaveSnapshot.
func (s *RedisStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	members := make([]redis.Z, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		members = append(members, redis.Z{Score: float64(e.Alive), Member: e.StreamName})
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, s.key, members...)
		}
		pipe.Set(ctx, s.snapshotKey(), data, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot to redis: %w", err)
	}
	return nil
}

// LoadSnapshot implements Store.LoadSnapshot.
func (s *RedisStore) LoadSnapshot(ctx context.Context) (*Snapshot, bool, error) {
	data, err := s.client.Get(ctx, s.snapshotKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load snapshot from redis: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, true, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
