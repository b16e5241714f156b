package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/crewline/internal/checkpoint"
	"github.com/ShayCichocki/crewline/internal/checkpoint/checkpointtest"
)

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStorage_Contract(t *testing.T) {
	checkpointtest.RunStorageContract(t, func(t *testing.T) checkpoint.Storage {
		_, client := newRedisClient(t)
		return checkpoint.NewRedisStorageFromClient(client)
	})
}

func TestRedisStorage_KeysAndPrefix(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedisClient(t)
	s := checkpoint.NewRedisStorageFromClient(client, checkpoint.WithRedisPrefix("test:cp:"))

	require.NoError(t, s.Write(ctx, "run-1", []byte(`{"a":1}`)))

	got, err := mr.Get("test:cp:run-1")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)

	members, err := mr.ZMembers("test:cp:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, members)

	assert.Error(t, s.Write(ctx, "", []byte("{}")), "empty name is rejected")
}

func TestRedisStorage_TTLPrunesIndex(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedisClient(t)
	s := checkpoint.NewRedisStorageFromClient(client, checkpoint.WithRedisTTL(time.Minute))

	require.NoError(t, s.Write(ctx, "short", []byte(`{}`)))
	assert.Equal(t, time.Minute, mr.TTL(checkpoint.DefaultRedisPrefix+"short"))

	mr.FastForward(2 * time.Minute)

	_, err := s.Read(ctx, "short")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	members, _ := mr.ZMembers(checkpoint.DefaultRedisPrefix + "index")
	assert.Empty(t, members, "expired entries are pruned from the index")
}

func TestRedisStorage_ManagerRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, client := newRedisClient(t)
	mgr := checkpoint.NewManager(checkpoint.NewRedisStorageFromClient(client), "crew-1")

	orig := diamondCrew(t)
	require.NoError(t, mgr.Save(ctx, orig))

	loaded, err := mgr.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Tasks, len(orig.Tasks))
	for i, task := range orig.Tasks {
		assert.Equal(t, task.ID, loaded.Tasks[i].ID)
		assert.Equal(t, task.Status(), loaded.Tasks[i].Status())
	}
}
