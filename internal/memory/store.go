// Package memory provides the shared key-value store visible to every task
// of a crew run.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path"
	"sort"
)

// ErrNotNumeric is returned by Increment when the existing value is not a number.
var ErrNotNumeric = errors.New("value is not numeric")

// Store is the shared memory contract.
//
// Get after Set with the same key returns the most recently set value until
// the key is deleted. Delete is idempotent. Entries never expire.
// Implementations in this package serialize every operation under one mutex,
// so Increment and AppendToList are atomic within a process.
type Store interface {
	// Set stores value under key.
	Set(key string, value any)
	// Get returns the value for key, or def if absent.
	Get(key string, def any) any
	// Delete removes key and reports whether it existed.
	Delete(key string) bool
	// Exists reports whether key is present.
	Exists(key string) bool
	// Keys returns the keys matching a glob pattern in lexical order.
	// An empty pattern or "*" matches everything.
	Keys(pattern string) []string
	// GetAll returns a copy of every entry.
	GetAll() map[string]any
	// Clear removes the keys matching pattern and returns how many were removed.
	Clear(pattern string) int
	// Increment adds amount to the integer at key, treating absent as zero.
	Increment(key string, amount int64) (int64, error)
	// AppendToList appends value to the list at key. A missing or non-list
	// value is replaced by a new list.
	AppendToList(key string, value any)
	// GetList returns a copy of the list at key, or an empty list.
	GetList(key string) []any
}

// matchKeys filters keys by a glob pattern and sorts the result.
func matchKeys(keys []string, pattern string) []string {
	matched := make([]string, 0, len(keys))
	for _, k := range keys {
		if pattern == "" || pattern == "*" {
			matched = append(matched, k)
			continue
		}
		if ok, err := path.Match(pattern, k); err == nil && ok {
			matched = append(matched, k)
		}
	}
	sort.Strings(matched)
	return matched
}

// toInt64 converts the numeric representations a store may hold, including
// values decoded from JSON, to int64.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64: %w", n, ErrNotNumeric)
		}
		return int64(n), nil
	case float32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q: %w", n, ErrNotNumeric)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("%T: %w", v, ErrNotNumeric)
	}
}

// appendValue returns a new list holding the elements of current followed by value.
func appendValue(current any, value any) []any {
	existing, _ := current.([]any)
	list := make([]any, 0, len(existing)+1)
	list = append(list, existing...)
	return append(list, value)
}

// copyList returns a copy of v if it is a list, or an empty list.
func copyList(v any) []any {
	existing, ok := v.([]any)
	if !ok {
		return []any{}
	}
	return append([]any{}, existing...)
}
