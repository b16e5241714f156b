package memory

import "sync"

// MapStore is an in-process Store. Its contents live as long as the process.
type MapStore struct {
	mu   sync.Mutex
	data map[string]any
}

var _ Store = (*MapStore)(nil)

// NewMapStore creates an empty MapStore.
func NewMapStore() *MapStore {
	return &MapStore{data: make(map[string]any)}
}

// Set stores value under key.
func (s *MapStore) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get returns the value for key, or def if absent.
func (s *MapStore) Get(key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		return v
	}
	return def
}

// Delete removes key and reports whether it existed.
func (s *MapStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok
}

// Exists reports whether key is present.
func (s *MapStore) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// Keys returns the keys matching pattern.
func (s *MapStore) Keys(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return matchKeys(s.keysLocked(), pattern)
}

func (s *MapStore) keysLocked() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// GetAll returns a copy of every entry.
func (s *MapStore) GetAll() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make(map[string]any, len(s.data))
	for k, v := range s.data {
		all[k] = v
	}
	return all
}

// Clear removes the keys matching pattern.
func (s *MapStore) Clear(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := matchKeys(s.keysLocked(), pattern)
	for _, k := range keys {
		delete(s.data, k)
	}
	return len(keys)
}

// Increment adds amount to the integer at key.
func (s *MapStore) Increment(key string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := toInt64(s.data[key])
	if err != nil {
		return 0, err
	}
	next := current + amount
	s.data[key] = next
	return next, nil
}

// AppendToList appends value to the list at key.
func (s *MapStore) AppendToList(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = appendValue(s.data[key], value)
}

// GetList returns a copy of the list at key.
func (s *MapStore) GetList(key string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyList(s.data[key])
}
