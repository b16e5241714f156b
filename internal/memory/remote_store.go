package memory

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"
)

// DefaultRemoteTimeout bounds each call to the conversation log.
const DefaultRemoteTimeout = 5 * time.Second

// RemoteStore is a Store backed by a local cache that mirrors every mutation
// to a ConversationLog as MEMORY_SET:<key>=<json> or MEMORY_DELETE:<key>
// system messages.
//
// Mirroring is best-effort: log failures are reported and the local cache
// stays authoritative. Reads prefer the cache and only consult the log on a
// local miss. Keys and GetAll reflect the cache only.
type RemoteStore struct {
	log     ConversationLog
	timeout time.Duration
	logf    func(format string, args ...interface{})

	mu    sync.Mutex
	cache map[string]any
}

var _ Store = (*RemoteStore)(nil)

// RemoteOption configures a RemoteStore.
type RemoteOption func(*RemoteStore)

// WithRemoteTimeout sets the per-call timeout for the conversation log.
func WithRemoteTimeout(d time.Duration) RemoteOption {
	return func(s *RemoteStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRemoteLogger sets where mirror failures are reported.
func WithRemoteLogger(logf func(format string, args ...interface{})) RemoteOption {
	return func(s *RemoteStore) {
		if logf != nil {
			s.logf = logf
		}
	}
}

// NewRemoteStore creates a RemoteStore mirroring into convLog.
func NewRemoteStore(convLog ConversationLog, opts ...RemoteOption) *RemoteStore {
	s := &RemoteStore{
		log:     convLog,
		timeout: DefaultRemoteTimeout,
		logf:    log.Printf,
		cache:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConversationID returns the ID of the mirrored conversation.
func (s *RemoteStore) ConversationID() string {
	return s.log.ID()
}

// Set stores value under key and mirrors it.
func (s *RemoteStore) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
}

func (s *RemoteStore) setLocked(key string, value any) {
	s.cache[key] = value

	data, err := json.Marshal(value)
	if err != nil {
		s.logf("[memory] key %q not mirrored: %v", key, err)
		return
	}
	s.mirror(setPrefix + key + "=" + string(data))
}

func (s *RemoteStore) mirror(content string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.log.Append(ctx, Message{Role: RoleSystem, Content: content}); err != nil {
		s.logf("[memory] mirror to conversation %s failed: %v", s.log.ID(), err)
	}
}

// Get returns the value for key, or def if absent locally and in the log.
func (s *RemoteStore) Get(key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.lookupLocked(key); ok {
		return v
	}
	return def
}

// lookupLocked checks the cache, then scans the log newest-first. A delete
// marker newer than any set hides the key. Found values are cached.
func (s *RemoteStore) lookupLocked(key string) (any, bool) {
	if v, ok := s.cache[key]; ok {
		return v, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	messages, err := s.log.Messages(ctx)
	if err != nil {
		s.logf("[memory] read conversation %s failed: %v", s.log.ID(), err)
		return nil, false
	}

	setMarker := setPrefix + key + "="
	deleteMarker := deletePrefix + key
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != RoleSystem {
			continue
		}
		if msg.Content == deleteMarker {
			return nil, false
		}
		if !strings.HasPrefix(msg.Content, setMarker) {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(msg.Content[len(setMarker):]), &v); err != nil {
			s.logf("[memory] skipping malformed entry for %q: %v", key, err)
			continue
		}
		s.cache[key] = v
		return v, true
	}
	return nil, false
}

// Delete removes key from the cache, mirrors the deletion and reports
// whether the key was cached.
func (s *RemoteStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(key)
}

func (s *RemoteStore) deleteLocked(key string) bool {
	_, existed := s.cache[key]
	delete(s.cache, key)
	s.mirror(deletePrefix + key)
	return existed
}

// Exists reports whether key is cached or recoverable from the log.
func (s *RemoteStore) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookupLocked(key)
	return ok
}

// Keys returns the cached keys matching pattern.
func (s *RemoteStore) Keys(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return matchKeys(s.cachedKeysLocked(), pattern)
}

func (s *RemoteStore) cachedKeysLocked() []string {
	keys := make([]string, 0, len(s.cache))
	for k := range s.cache {
		keys = append(keys, k)
	}
	return keys
}

// GetAll returns a copy of the cache.
func (s *RemoteStore) GetAll() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make(map[string]any, len(s.cache))
	for k, v := range s.cache {
		all[k] = v
	}
	return all
}

// Clear deletes the cached keys matching pattern.
func (s *RemoteStore) Clear(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, k := range matchKeys(s.cachedKeysLocked(), pattern) {
		if s.deleteLocked(k) {
			count++
		}
	}
	return count
}

// Increment adds amount to the integer at key and mirrors the new value.
func (s *RemoteStore) Increment(key string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, _ := s.lookupLocked(key)
	n, err := toInt64(current)
	if err != nil {
		return 0, err
	}
	next := n + amount
	s.setLocked(key, next)
	return next, nil
}

// AppendToList appends value to the list at key and mirrors the new list.
func (s *RemoteStore) AppendToList(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, _ := s.lookupLocked(key)
	s.setLocked(key, appendValue(current, value))
}

// GetList returns a copy of the list at key.
func (s *RemoteStore) GetList(key string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, _ := s.lookupLocked(key)
	return copyList(current)
}
