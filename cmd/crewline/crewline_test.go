package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/crewline/internal/checkpoint"
	"github.com/ShayCichocki/crewline/internal/config"
	"github.com/ShayCichocki/crewline/internal/memory"
	"github.com/ShayCichocki/crewline/internal/state"
	"github.com/ShayCichocki/crewline/internal/workflow"
	"github.com/ShayCichocki/crewline/pkg/models"
)

const fixture = "testdata/launch_post.yaml"

// testConfig returns defaults with every path under a temp dir and no retries.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Engine.StateDir = filepath.Join(dir, "state")
	cfg.Checkpoint.Dir = filepath.Join(dir, "checkpoints")
	cfg.Checkpoint.DBPath = filepath.Join(dir, "checkpoints.db")
	cfg.Retry.MaxAttempts = 1
	return cfg
}

func TestParseInputs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: map[string]any{}},
		{
			name:  "typed values",
			pairs: []string{"topic=Go generics", "words=800", "ratio=0.5", "draft=true"},
			want:  map[string]any{"topic": "Go generics", "words": int64(800), "ratio": 0.5, "draft": true},
		},
		{name: "value with equals", pairs: []string{"query=a=b"}, want: map[string]any{"query": "a=b"}},
		{name: "empty value", pairs: []string{"note="}, want: map[string]any{"note": ""}},
		{name: "later wins", pairs: []string{"k=1", "k=2"}, want: map[string]any{"k": int64(2)}},
		{name: "missing equals", pairs: []string{"topic"}, wantErr: true},
		{name: "missing key", pairs: []string{"=value"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInputs(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyProcess(t *testing.T) {
	c, err := workflow.LoadFile(fixture)
	require.NoError(t, err)
	require.Equal(t, models.ProcessParallel, c.Process)

	require.NoError(t, applyProcess(c, ""))
	assert.Equal(t, models.ProcessParallel, c.Process)

	require.NoError(t, applyProcess(c, "Sequential"))
	assert.Equal(t, models.ProcessSequential, c.Process)

	err = applyProcess(c, "round-robin")
	assert.ErrorIs(t, err, models.ErrInvalidConfig)

	// No agent allows delegation and no manager is named.
	err = applyProcess(c, "hierarchical")
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
	assert.Equal(t, models.ProcessSequential, c.Process)
}

func TestNewCheckpointStorage(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		setup   func(cfg *config.Config)
		wantErr bool
	}{
		{name: "file", setup: func(cfg *config.Config) { cfg.Checkpoint.Backend = "file" }},
		{name: "sqlite", setup: func(cfg *config.Config) { cfg.Checkpoint.Backend = "sqlite" }},
		{name: "redis", setup: func(cfg *config.Config) {
			cfg.Checkpoint.Backend = "redis"
			cfg.Memory.RedisAddr = mr.Addr()
		}},
		{name: "unknown backend", setup: func(cfg *config.Config) { cfg.Checkpoint.Backend = "s3" }, wantErr: true},
		{name: "unknown driver", setup: func(cfg *config.Config) {
			cfg.Checkpoint.Backend = "sqlite"
			cfg.Checkpoint.Driver = "postgres"
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.setup(cfg)

			storage, closeStorage, err := newCheckpointStorage(cfg)
			defer closeStorage()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			ctx := context.Background()
			require.NoError(t, storage.Write(ctx, "weekly", []byte(`{"version":1}`)))
			names, err := storage.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"weekly"}, names)
		})
	}
}

func TestNewMemory(t *testing.T) {
	c, err := workflow.LoadFile(fixture)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("local", func(t *testing.T) {
		cfg := testConfig(t)
		store, closeMemory, err := newMemory(ctx, cfg, c)
		require.NoError(t, err)
		defer closeMemory()
		assert.IsType(t, &memory.MapStore{}, store)
	})

	t.Run("log", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Memory.Backend = "log"
		store, closeMemory, err := newMemory(ctx, cfg, c)
		require.NoError(t, err)
		defer closeMemory()

		store.Set("topic", "launch")
		assert.Equal(t, "launch", store.Get("topic", nil))
		assert.IsType(t, &memory.RemoteStore{}, store)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig(t)
		cfg.Memory.Backend = "redis"
		cfg.Memory.RedisAddr = mr.Addr()
		cfg.Memory.ConversationID = "conv-1"

		store, closeMemory, err := newMemory(ctx, cfg, c)
		require.NoError(t, err)
		defer closeMemory()

		remote, ok := store.(*memory.RemoteStore)
		require.True(t, ok)
		assert.Equal(t, "conv-1", remote.ConversationID())

		store.Set("topic", "launch")
		assert.True(t, mr.Exists(memory.DefaultRedisPrefix+"conv-1"))
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Memory.Backend = "etcd"
		_, closeMemory, err := newMemory(ctx, cfg, c)
		defer closeMemory()
		assert.Error(t, err)
	})
}

func TestValidateOnce(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, validateOnce(&buf, fixture))

	out := buf.String()
	assert.Contains(t, out, "Launch Post Team: 2 agents, 3 tasks, parallel process")
	assert.Contains(t, out, "wave 1:\n    - [plan] Plan content strategy (Content Strategist)")
	assert.Contains(t, out, "wave 2:\n    - [draft]")
	assert.Contains(t, out, "wave 3:\n    - [review]")

	buf.Reset()
	err := validateOnce(&buf, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "✗")
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "empty", formatCounts(nil))
	assert.Equal(t, "completed=2 failed=1 pending=3", formatCounts(map[models.TaskStatus]int{
		models.TaskStatusPending:   3,
		models.TaskStatusFailed:    1,
		models.TaskStatusCompleted: 2,
	}))
}

func TestRunOutcome(t *testing.T) {
	tests := []struct {
		name      string
		out       *models.CrewOutput
		err       error
		status    state.RunStatus
		completed int
	}{
		{name: "no output", status: state.RunFailed},
		{name: "error", out: &models.CrewOutput{Metadata: models.OutputMetadata{CompletedTasks: 1}}, err: assert.AnError, status: state.RunFailed, completed: 1},
		{name: "cancelled", out: &models.CrewOutput{Metadata: models.OutputMetadata{Cancelled: true, CompletedTasks: 2}}, status: state.RunCancelled, completed: 2},
		{name: "task failed", out: &models.CrewOutput{Metadata: models.OutputMetadata{CompletedTasks: 3}}, status: state.RunFailed, completed: 3},
		{name: "success", out: &models.CrewOutput{Success: true, Metadata: models.OutputMetadata{CompletedTasks: 3}}, status: state.RunCompleted, completed: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, completed, _ := runOutcome(tt.out, tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.completed, completed)
		})
	}
}

func TestExecute_DryRun(t *testing.T) {
	cfg := testConfig(t)
	c, err := workflow.LoadFile(fixture)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = execute(context.Background(), &buf, cfg, c, runOptions{
		inputs:     map[string]any{"topic": "launch"},
		checkpoint: c.ID,
		dryRun:     true,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Completed: 3/3 tasks")
	assert.Contains(t, buf.String(), "Writer would handle")

	for _, task := range c.Tasks {
		assert.Equal(t, models.TaskStatusCompleted, task.Status(), task.ID)
	}

	mgr := checkpoint.NewManager(checkpoint.NewFileStorage(cfg.Checkpoint.Dir), c.ID)
	rec, err := mgr.Record(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Counts()[models.TaskStatusCompleted])

	db, err := state.Open(state.DBPath(cfg.Engine.StateDir))
	require.NoError(t, err)
	defer db.Close()
	run, err := db.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, state.RunCompleted, run.Status)
	assert.Equal(t, "launch-post", run.CrewID)
	assert.Equal(t, c.ID, run.Checkpoint)
	assert.Equal(t, 3, run.CompletedTasks)
	assert.NotNil(t, run.FinishedAt)
}

func TestExecute_ResumedCrewHasNothingLeft(t *testing.T) {
	cfg := testConfig(t)
	c, err := workflow.LoadFile(fixture)
	require.NoError(t, err)
	require.NoError(t, execute(context.Background(), &bytes.Buffer{}, cfg, c, runOptions{checkpoint: "post", dryRun: true}))

	storage, closeStorage, err := newCheckpointStorage(cfg)
	require.NoError(t, err)
	defer closeStorage()
	restored, err := checkpoint.NewManager(storage, "post").Load(context.Background())
	require.NoError(t, err)
	require.True(t, restored.IsComplete())

	var buf bytes.Buffer
	require.NoError(t, execute(context.Background(), &buf, cfg, restored, runOptions{checkpoint: "post", dryRun: true}))
	assert.Contains(t, buf.String(), "Completed: 0/3 tasks")
}
