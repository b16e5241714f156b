// Package checkpoint saves crew state to durable storage and rebuilds live
// crews from it.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/crewline/internal/crew"
)

var (
	// ErrNotFound means no checkpoint is stored under the name.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrCorrupt means the stored record cannot be decoded into a valid crew.
	ErrCorrupt = errors.New("checkpoint corrupt")
)

// Storage is a byte-oriented durable store holding one record per name.
type Storage interface {
	// Write stores data under name, replacing any previous record.
	Write(ctx context.Context, name string, data []byte) error
	// Read returns the record stored under name, or ErrNotFound.
	Read(ctx context.Context, name string) ([]byte, error)
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the stored names in lexical order.
	List(ctx context.Context) ([]string, error)
}

// Manager saves and loads one named checkpoint.
type Manager struct {
	storage Storage
	name    string
	now     func() time.Time
}

// NewManager creates a manager for the checkpoint called name.
func NewManager(storage Storage, name string) *Manager {
	return &Manager{storage: storage, name: name, now: time.Now}
}

// Name returns the checkpoint name.
func (m *Manager) Name() string {
	return m.name
}

// Save serializes the crew and writes it to storage.
func (m *Manager) Save(ctx context.Context, c *crew.Crew) error {
	rec := Snapshot(c)
	rec.SavedAt = m.now().UTC()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint %s: %w", m.name, err)
	}
	if err := m.storage.Write(ctx, m.name, data); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", m.name, err)
	}
	return nil
}

// Record reads and decodes the stored record without rebuilding the crew.
func (m *Manager) Record(ctx context.Context) (*Record, error) {
	data, err := m.storage.Read(ctx, m.name)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, m.name, err)
	}
	return &rec, nil
}

// Load reads the checkpoint and rebuilds a validated crew with the saved
// task statuses. It returns ErrNotFound when nothing is stored and
// ErrCorrupt when the record is malformed.
func (m *Manager) Load(ctx context.Context) (*crew.Crew, error) {
	rec, err := m.Record(ctx)
	if err != nil {
		return nil, err
	}
	c, err := rec.Restore()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	return c, nil
}

// Exists reports whether the checkpoint is stored.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	_, err := m.storage.Read(ctx, m.name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the checkpoint.
func (m *Manager) Delete(ctx context.Context) error {
	return m.storage.Delete(ctx, m.name)
}
