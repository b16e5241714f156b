package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces conversation keys.
const DefaultRedisPrefix = "crewline:memory:"

// RedisLog is a ConversationLog stored as a Redis list of JSON messages,
// with conversation metadata in a companion hash.
type RedisLog struct {
	client *backend.Client
	id     string
	prefix string
}

var _ ConversationLog = (*RedisLog)(nil)

// RedisLogOption configures a RedisLog.
type RedisLogOption func(*RedisLog)

// WithLogPrefix sets the key prefix for conversations.
func WithLogPrefix(prefix string) RedisLogOption {
	return func(l *RedisLog) {
		l.prefix = prefix
	}
}

// NewRedisLog connects to Redis and opens the conversation id.
func NewRedisLog(address, password string, db int, id string, opts ...RedisLogOption) *RedisLog {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisLogFromClient(rdb, id, opts...)
}

// NewRedisLogFromClient opens the conversation id on an existing client.
// An empty id gets a generated one.
func NewRedisLogFromClient(client *backend.Client, id string, opts ...RedisLogOption) *RedisLog {
	if id == "" {
		id = NewConversationID()
	}
	l := &RedisLog{
		client: client,
		id:     id,
		prefix: DefaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLog) key() string {
	return l.prefix + l.id
}

func (l *RedisLog) metaKey() string {
	return l.prefix + l.id + ":meta"
}

// ID returns the conversation identifier.
func (l *RedisLog) ID() string {
	return l.id
}

// Init records conversation metadata. It is safe to call on an existing
// conversation; the creation time is kept.
func (l *RedisLog) Init(ctx context.Context, crewID string) error {
	pipe := l.client.Pipeline()
	pipe.HSetNX(ctx, l.metaKey(), "created_at", time.Now().UTC().Format(time.RFC3339))
	pipe.HSet(ctx, l.metaKey(), "type", "crew_memory")
	if crewID != "" {
		pipe.HSet(ctx, l.metaKey(), "crew_id", crewID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to init conversation %s: %w", l.id, err)
	}
	return nil
}

// Metadata returns the conversation metadata.
func (l *RedisLog) Metadata(ctx context.Context) (map[string]string, error) {
	meta, err := l.client.HGetAll(ctx, l.metaKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation metadata: %w", err)
	}
	return meta, nil
}

// Append pushes a message onto the conversation list.
func (l *RedisLog) Append(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := l.client.RPush(ctx, l.key(), data).Err(); err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

// Messages returns the whole conversation, oldest first.
func (l *RedisLog) Messages(ctx context.Context) ([]Message, error) {
	raw, err := l.client.LRange(ctx, l.key(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	messages := make([]Message, 0, len(raw))
	for _, r := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(r), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Close closes the redis client.
func (l *RedisLog) Close() error {
	return l.client.Close()
}
