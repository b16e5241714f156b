package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RunStatus represents the state of a recorded run.
type RunStatus string

const (
	// RunRunning indicates the run is executing.
	RunRunning RunStatus = "running"
	// RunCompleted indicates every task settled and none failed.
	RunCompleted RunStatus = "completed"
	// RunFailed indicates the run finished with failed tasks or an error.
	RunFailed RunStatus = "failed"
	// RunCancelled indicates the run was stopped or its context cancelled.
	RunCancelled RunStatus = "cancelled"
	// RunInterrupted indicates the process died while the run was executing.
	RunInterrupted RunStatus = "interrupted"
)

// Run is one execution of a crew.
type Run struct {
	ID             string
	CrewID         string
	CrewName       string
	Process        string
	Checkpoint     string
	PID            int
	Status         RunStatus
	TotalTasks     int
	CompletedTasks int
	Error          string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

const runColumns = `id, crew_id, crew_name, process, checkpoint, pid, status,
	total_tasks, completed_tasks, error, started_at, finished_at`

// CreateRun records a new run.
func (db *DB) CreateRun(r *Run) error {
	if r.Status == "" {
		r.Status = RunRunning
	}
	_, err := db.Exec(`
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.CrewID, r.CrewName, r.Process, r.Checkpoint, r.PID, string(r.Status),
		r.TotalTasks, r.CompletedTasks, r.Error, formatTime(r.StartedAt), nullableTime(r.FinishedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. It returns nil, nil when no run matches.
func (db *DB) GetRun(id string) (*Run, error) {
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// FinishRun stores the final status and counts of a run.
func (db *DB) FinishRun(id string, status RunStatus, completed int, errText string) error {
	res, err := db.Exec(`
		UPDATE runs SET status = ?, completed_tasks = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(status), completed, errText, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", id)
	}
	return nil
}

// ListRuns lists runs newest first, optionally filtered by status.
func (db *DB) ListRuns(status *RunStatus) ([]Run, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`SELECT `+runColumns+` FROM runs WHERE status = ?
			ORDER BY started_at DESC, rowid DESC`, string(*status))
	} else {
		rows, err = db.Query(`SELECT ` + runColumns + ` FROM runs
			ORDER BY started_at DESC, rowid DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// ListRunsByCrew lists the runs of one crew newest first.
func (db *DB) ListRunsByCrew(crewID string) ([]Run, error) {
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs WHERE crew_id = ?
		ORDER BY started_at DESC, rowid DESC`, crewID)
	if err != nil {
		return nil, fmt.Errorf("list runs by crew: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// LatestRun returns the most recently started run, or nil.
func (db *DB) LatestRun() (*Run, error) {
	runs, err := db.ListRuns(nil)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var crewName, checkpoint, errText sql.NullString
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.CrewID, &crewName, &r.Process, &checkpoint, &r.PID, &r.Status,
			&r.TotalTasks, &r.CompletedTasks, &errText, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CrewName = crewName.String
		r.Checkpoint = checkpoint.String
		r.Error = errText.String
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt = parseNullableTime(finishedAt)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
