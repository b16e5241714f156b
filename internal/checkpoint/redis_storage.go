package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces checkpoint keys.
const DefaultRedisPrefix = "crewline:checkpoint:"

// RedisStorage keeps checkpoints in Redis strings with a sorted-set index
// scored by save time.
type RedisStorage struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

var _ Storage = (*RedisStorage)(nil)

// RedisOption configures a RedisStorage.
type RedisOption func(*RedisStorage)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStorage) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisTTL expires checkpoints after ttl. Zero keeps them forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStorage) { s.ttl = ttl }
}

// NewRedisStorage connects to a Redis server.
func NewRedisStorage(address, password string, db int, opts ...RedisOption) *RedisStorage {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStorageFromClient(rdb, opts...)
}

// NewRedisStorageFromClient creates a storage from an existing client.
func NewRedisStorageFromClient(client *backend.Client, opts ...RedisOption) *RedisStorage {
	s := &RedisStorage{client: client, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStorage) key(name string) string {
	return s.prefix + name
}

func (s *RedisStorage) indexKey() string {
	return s.prefix + "index"
}

// Write stores the record and indexes it.
func (s *RedisStorage) Write(ctx context.Context, name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("checkpoint name cannot be empty")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(name), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(time.Now().Unix()),
		Member: name,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint to redis: %w", err)
	}
	return nil
}

// Read returns the stored record.
func (s *RedisStorage) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read checkpoint from redis: %w", err)
	}
	return data, nil
}

// Delete removes the record and its index entry.
func (s *RedisStorage) Delete(ctx context.Context, name string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(name))
	pipe.ZRem(ctx, s.indexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete checkpoint from redis: %w", err)
	}
	return nil
}

// List returns indexed names whose records still exist, in lexical order.
// Index entries for expired records are pruned.
func (s *RedisStorage) List(ctx context.Context) ([]string, error) {
	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	sort.Strings(names)

	live := make([]string, 0, len(names))
	for _, name := range names {
		n, err := s.client.Exists(ctx, s.key(name)).Result()
		if err != nil {
			return nil, fmt.Errorf("list checkpoints: %w", err)
		}
		if n == 0 {
			s.client.ZRem(ctx, s.indexKey(), name)
			continue
		}
		live = append(live, name)
	}
	return live, nil
}

// Close closes the redis client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
