package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// setupTestDB creates a new migrated temporary database.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if db.Driver() != DriverModernc {
		t.Errorf("Driver() = %q, want %q", db.Driver(), DriverModernc)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b", "c")
	db, err := Open(filepath.Join(nested, "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpenWithDriver_Unknown(t *testing.T) {
	if _, err := OpenWithDriver("postgres", tempDBPath(t)); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestDBPath(t *testing.T) {
	if got := DBPath(""); got != filepath.Join(".crewline", "state.db") {
		t.Errorf("DBPath(\"\") = %q", got)
	}
	if got := DBPath("/tmp/x"); got != "/tmp/x/state.db" {
		t.Errorf("DBPath(/tmp/x) = %q", got)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 {
		t.Errorf("SchemaVersion() = %d, want 2", v)
	}

	for _, table := range []string{"checkpoints", "runs"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)
	old := time.Now().Add(-48 * time.Hour)

	for _, r := range []Run{
		{ID: "old-done", CrewID: "c", Process: "sequential", Status: RunCompleted, StartedAt: old},
		{ID: "old-running", CrewID: "c", Process: "sequential", Status: RunRunning, StartedAt: old},
		{ID: "new-done", CrewID: "c", Process: "sequential", Status: RunCompleted, StartedAt: time.Now()},
	} {
		r := r
		if err := db.CreateRun(&r); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d runs, want 1", n)
	}
	if r, _ := db.GetRun("old-running"); r == nil {
		t.Error("running runs must survive purge")
	}
}
