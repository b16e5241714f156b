package state_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/crewline/internal/checkpoint"
	"github.com/ShayCichocki/crewline/internal/checkpoint/checkpointtest"
	"github.com/ShayCichocki/crewline/internal/crew"
	"github.com/ShayCichocki/crewline/internal/state"
	"github.com/ShayCichocki/crewline/pkg/models"
)

func openDB(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCheckpointStorage_Contract(t *testing.T) {
	checkpointtest.RunStorageContract(t, func(t *testing.T) checkpoint.Storage {
		return state.NewCheckpointStorage(openDB(t))
	})
}

func TestCheckpointStorage_ManagerRoundTrip(t *testing.T) {
	ctx := context.Background()
	mgr := checkpoint.NewManager(state.NewCheckpointStorage(openDB(t)), "nightly")

	a, err := models.NewAgent("analyst", "analyze", models.WithAgentID("a1"))
	require.NoError(t, err)
	t1, _ := models.NewTask("collect", a, models.WithTaskID("t1"))
	t2, _ := models.NewTask("report", a, models.WithTaskID("t2"), models.WithDependencies(t1))
	c, err := crew.New([]*models.Agent{a}, []*models.Task{t1, t2}, crew.WithID("crew-x"))
	require.NoError(t, err)
	require.NoError(t, t1.MarkInProgress())
	require.NoError(t, t1.MarkCompleted("numbers"))

	require.NoError(t, mgr.Save(ctx, c))
	require.NoError(t, mgr.Save(ctx, c), "saving twice upserts")

	loaded, err := mgr.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "crew-x", loaded.ID)
	require.Equal(t, models.TaskStatusCompleted, loaded.TaskByID("t1").Status())
	require.Equal(t, "numbers", loaded.TaskByID("t1").Result())
	require.Equal(t, []string{"t1"}, loaded.TaskByID("t2").DependencyIDs())
}
