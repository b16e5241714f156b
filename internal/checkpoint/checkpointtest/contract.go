// Package checkpointtest holds the behavioural contract every
// checkpoint.Storage must pass.
package checkpointtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/crewline/internal/checkpoint"
)

// RunStorageContract runs a suite of tests against a fresh storage from newStorage.
func RunStorageContract(t *testing.T, newStorage func(t *testing.T) checkpoint.Storage) {
	ctx := context.Background()

	t.Run("Write and Read", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.Write(ctx, "run-1", []byte(`{"v":1}`)))

		data, err := s.Read(ctx, "run-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1}`, string(data))

		require.NoError(t, s.Write(ctx, "run-1", []byte(`{"v":2}`)))
		data, err = s.Read(ctx, "run-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(data), "write replaces the record")
	})

	t.Run("Read missing", func(t *testing.T) {
		s := newStorage(t)
		_, err := s.Read(ctx, "nope")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.Write(ctx, "run-1", []byte(`{}`)))
		require.NoError(t, s.Delete(ctx, "run-1"))
		require.NoError(t, s.Delete(ctx, "run-1"), "delete is idempotent")

		_, err := s.Read(ctx, "run-1")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		s := newStorage(t)
		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		for _, name := range []string{"beta", "alpha", "gamma"} {
			require.NoError(t, s.Write(ctx, name, []byte(`{}`)))
		}
		require.NoError(t, s.Delete(ctx, "gamma"))

		names, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "beta"}, names)
	})
}
