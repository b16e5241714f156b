// Package memorytest holds the behavioural contract every memory.Store must pass.
package memorytest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/crewline/internal/memory"
)

// RunStoreContract runs a suite of tests against a fresh store from newStore.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) memory.Store) {
	t.Run("Set and Get", func(t *testing.T) {
		s := newStore(t)
		s.Set("k", "v1")
		assert.Equal(t, "v1", s.Get("k", nil))

		s.Set("k", "v2")
		assert.Equal(t, "v2", s.Get("k", nil), "most recent set wins")
		assert.Equal(t, "fallback", s.Get("missing", "fallback"))
	})

	t.Run("Delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		s.Set("k", 1)
		assert.True(t, s.Delete("k"))
		assert.False(t, s.Delete("k"))
		assert.Equal(t, "default", s.Get("k", "default"))
		assert.False(t, s.Exists("k"))
	})

	t.Run("Keys and Clear", func(t *testing.T) {
		s := newStore(t)
		s.Set("task_1_result", "a")
		s.Set("task_2_result", "b")
		s.Set("topic", "go")

		assert.Equal(t, []string{"task_1_result", "task_2_result", "topic"}, s.Keys("*"))
		assert.Equal(t, []string{"task_1_result", "task_2_result"}, s.Keys("task_*"))
		assert.Equal(t, []string{"task_1_result", "task_2_result"}, s.Keys("task_?_result"))
		assert.Empty(t, s.Keys("nothing*"))

		assert.Equal(t, 2, s.Clear("task_*"))
		assert.Equal(t, []string{"topic"}, s.Keys(""))
	})

	t.Run("GetAll returns a copy", func(t *testing.T) {
		s := newStore(t)
		s.Set("a", "1")
		all := s.GetAll()
		all["b"] = "2"
		assert.False(t, s.Exists("b"))
		assert.Equal(t, map[string]any{"a": "1"}, s.GetAll())
	})

	t.Run("Increment", func(t *testing.T) {
		s := newStore(t)
		n, err := s.Increment("c", 1)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = s.Increment("c", 1)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		n, err = s.Increment("c", -5)
		require.NoError(t, err)
		assert.EqualValues(t, -3, n)

		s.Set("text", "hello")
		_, err = s.Increment("text", 1)
		assert.ErrorIs(t, err, memory.ErrNotNumeric)
	})

	t.Run("AppendToList", func(t *testing.T) {
		s := newStore(t)
		s.AppendToList("l", "x")
		assert.Equal(t, []any{"x"}, s.GetList("l"))

		s.AppendToList("l", "y")
		assert.Equal(t, []any{"x", "y"}, s.GetList("l"))

		s.Set("scalar", 3)
		s.AppendToList("scalar", "z")
		assert.Equal(t, []any{"z"}, s.GetList("scalar"))

		assert.Equal(t, []any{}, s.GetList("missing"))
	})

	t.Run("Concurrent writers to one key", func(t *testing.T) {
		s := newStore(t)
		const writers = 64

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = s.Increment("counter", 1)
				s.AppendToList("list", i)
				s.Set("last", fmt.Sprintf("writer-%d", i))
			}(i)
		}
		wg.Wait()

		n, err := s.Increment("counter", 0)
		require.NoError(t, err)
		assert.EqualValues(t, writers, n, "increments are atomic")
		assert.Len(t, s.GetList("list"), writers, "appends are atomic")
		assert.Regexp(t, `^writer-\d+$`, s.Get("last", ""), "last writer wins")
	})
}
