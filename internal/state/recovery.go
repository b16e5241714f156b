package state

import (
	"fmt"
	"os"
	"syscall"
)

// RecoveryManager finds runs whose process died before they finished.
type RecoveryManager struct {
	db    *DB
	alive func(pid int) bool
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB) *RecoveryManager {
	return &RecoveryManager{db: db, alive: isProcessAlive}
}

// CheckForInterrupted returns runs still marked running whose owning
// process is gone. Runs owned by the current process are never reported.
func (rm *RecoveryManager) CheckForInterrupted() ([]Run, error) {
	status := RunRunning
	runs, err := rm.db.ListRuns(&status)
	if err != nil {
		return nil, fmt.Errorf("list running runs: %w", err)
	}

	var interrupted []Run
	for _, r := range runs {
		if r.PID == os.Getpid() {
			continue
		}
		if r.PID > 0 && rm.alive(r.PID) {
			continue
		}
		interrupted = append(interrupted, r)
	}
	return interrupted, nil
}

// MarkInterrupted closes every interrupted run and returns them.
func (rm *RecoveryManager) MarkInterrupted() ([]Run, error) {
	runs, err := rm.CheckForInterrupted()
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if err := rm.db.FinishRun(r.ID, RunInterrupted, r.CompletedTasks, "process exited before the run finished"); err != nil {
			return nil, fmt.Errorf("mark run %s interrupted: %w", r.ID, err)
		}
	}
	return runs, nil
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
