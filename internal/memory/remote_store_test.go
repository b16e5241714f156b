package memory_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/crewline/internal/memory"
	"github.com/ShayCichocki/crewline/internal/memory/memorytest"
)

func quietLogger(format string, args ...interface{}) {}

func TestRemoteStore_Contract(t *testing.T) {
	memorytest.RunStoreContract(t, func(t *testing.T) memory.Store {
		return memory.NewRemoteStore(memory.NewSliceLog(""), memory.WithRemoteLogger(quietLogger))
	})
}

func TestRemoteStore_MirrorsMutations(t *testing.T) {
	ctx := context.Background()
	log := memory.NewSliceLog("conv-1")
	s := memory.NewRemoteStore(log, memory.WithRemoteLogger(quietLogger))

	s.Set("topic", map[string]any{"name": "go"})
	s.Delete("topic")

	msgs, err := log.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, memory.Message{Role: "system", Content: `MEMORY_SET:topic={"name":"go"}`}, msgs[0])
	assert.Equal(t, memory.Message{Role: "system", Content: "MEMORY_DELETE:topic"}, msgs[1])
	assert.Equal(t, "conv-1", s.ConversationID())
}

func TestRemoteStore_RecoversFromLog(t *testing.T) {
	log := memory.NewSliceLog("shared")
	writer := memory.NewRemoteStore(log, memory.WithRemoteLogger(quietLogger))
	writer.Set("plan", "v1")
	writer.Set("plan", "v2")
	writer.Set("count", 3)

	reader := memory.NewRemoteStore(log, memory.WithRemoteLogger(quietLogger))
	assert.Empty(t, reader.Keys("*"), "keys reflect the local cache only")
	assert.Equal(t, "v2", reader.Get("plan", nil), "newest set wins")
	assert.Equal(t, []string{"plan"}, reader.Keys("*"), "recovered values are cached")

	n, err := reader.Increment("count", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestRemoteStore_DeleteMarkerHidesOlderSet(t *testing.T) {
	log := memory.NewSliceLog("shared")
	writer := memory.NewRemoteStore(log, memory.WithRemoteLogger(quietLogger))
	writer.Set("plan", "v1")
	writer.Delete("plan")

	reader := memory.NewRemoteStore(log, memory.WithRemoteLogger(quietLogger))
	assert.Equal(t, "gone", reader.Get("plan", "gone"))
	assert.False(t, reader.Exists("plan"))

	writer.Set("plan", "v3")
	assert.Equal(t, "v3", reader.Get("plan", nil), "a set newer than the delete is visible")
}

func TestRemoteStore_LocalCacheWins(t *testing.T) {
	log := memory.NewSliceLog("shared")
	a := memory.NewRemoteStore(log, memory.WithRemoteLogger(quietLogger))
	b := memory.NewRemoteStore(log, memory.WithRemoteLogger(quietLogger))

	a.Set("k", "from-a")
	assert.Equal(t, "from-a", b.Get("k", nil))

	a.Set("k", "newer")
	assert.Equal(t, "from-a", b.Get("k", nil), "cached value is authoritative for b")
}

// failingLog rejects every call.
type failingLog struct {
	mu    sync.Mutex
	calls int
}

func (l *failingLog) ID() string { return "broken" }

func (l *failingLog) Append(context.Context, memory.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return errors.New("connection refused")
}

func (l *failingLog) Messages(context.Context) ([]memory.Message, error) {
	return nil, errors.New("connection refused")
}

func TestRemoteStore_TransportFailureFallsBackToCache(t *testing.T) {
	var (
		mu     sync.Mutex
		logged []string
	)
	logf := func(format string, args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		logged = append(logged, format)
	}

	convLog := &failingLog{}
	s := memory.NewRemoteStore(convLog, memory.WithRemoteLogger(logf))

	s.Set("k", "v")
	assert.Equal(t, "v", s.Get("k", nil))
	assert.Equal(t, "d", s.Get("missing", "d"))
	assert.True(t, s.Delete("k"))

	assert.Equal(t, 2, convLog.calls)
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, logged)
	assert.True(t, strings.HasPrefix(logged[0], "[memory]"))
}

func TestRemoteStore_UnserializableValueStaysLocal(t *testing.T) {
	log := memory.NewSliceLog("")
	s := memory.NewRemoteStore(log, memory.WithRemoteLogger(quietLogger))

	s.Set("fn", func() {})
	assert.True(t, s.Exists("fn"))

	msgs, err := log.Messages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
