package memory_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/crewline/internal/memory"
	"github.com/ShayCichocki/crewline/internal/memory/memorytest"
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

func TestRedisLog_RemoteStoreContract(t *testing.T) {
	_, client := newRedisClient(t)
	memorytest.RunStoreContract(t, func(t *testing.T) memory.Store {
		return memory.NewRemoteStore(memory.NewRedisLogFromClient(client, ""), memory.WithRemoteLogger(quietLogger))
	})
}

func TestRedisLog_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedisClient(t)

	l := memory.NewRedisLogFromClient(client, "conv-42")
	require.NoError(t, l.Append(ctx, memory.Message{Role: "system", Content: "MEMORY_SET:a=1"}))
	require.NoError(t, l.Append(ctx, memory.Message{Role: "user", Content: "hello"}))

	msgs, err := l.Messages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []memory.Message{
		{Role: "system", Content: "MEMORY_SET:a=1"},
		{Role: "user", Content: "hello"},
	}, msgs)

	raw, err := mr.List("crewline:memory:conv-42")
	require.NoError(t, err)
	assert.Len(t, raw, 2)
}

func TestRedisLog_SharedAcrossStores(t *testing.T) {
	_, client := newRedisClient(t)

	writer := memory.NewRemoteStore(memory.NewRedisLogFromClient(client, "crew-run"), memory.WithRemoteLogger(quietLogger))
	writer.Set("task_1_result", "plan")
	writer.AppendToList("notes", "first")

	reader := memory.NewRemoteStore(memory.NewRedisLogFromClient(client, "crew-run"), memory.WithRemoteLogger(quietLogger))
	assert.Equal(t, "plan", reader.Get("task_1_result", nil))
	assert.Equal(t, []any{"first"}, reader.GetList("notes"))
}

func TestRedisLog_Metadata(t *testing.T) {
	ctx := context.Background()
	_, client := newRedisClient(t)

	l := memory.NewRedisLogFromClient(client, "", memory.WithLogPrefix("test:"))
	assert.True(t, len(l.ID()) > len("crew_memory_"))
	require.NoError(t, l.Init(ctx, "crew-7"))

	meta, err := l.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "crew_memory", meta["type"])
	assert.Equal(t, "crew-7", meta["crew_id"])
	assert.NotEmpty(t, meta["created_at"])
}

func TestRedisLog_UnavailableServer(t *testing.T) {
	mr, client := newRedisClient(t)
	s := memory.NewRemoteStore(memory.NewRedisLogFromClient(client, "x"), memory.WithRemoteLogger(quietLogger))
	mr.Close()

	s.Set("k", "v")
	assert.Equal(t, "v", s.Get("k", nil), "cache survives transport failure")
}
