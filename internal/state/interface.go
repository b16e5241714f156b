package state

import "io"

// RunStore handles run history persistence.
type RunStore interface {
	CreateRun(r *Run) error
	GetRun(id string) (*Run, error)
	FinishRun(id string, status RunStatus, completed int, errText string) error
	ListRuns(status *RunStatus) ([]Run, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// StateStore is the full persistence surface of the state database.
type StateStore interface {
	io.Closer
	Migrator
	RunStore
}

var _ StateStore = (*DB)(nil)
