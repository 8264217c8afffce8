package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = bolthold.ErrNotFound

// Database wraps the bolthold store holding history, presets and
// finished jobs. Concurrent jobs append history concurrently; each
// append runs its insert and eviction in a single bolt transaction.
type Database struct {
	store        *bolthold.Store
	historyLimit int
}

// NewDatabase opens the database file, creating it if needed.
// historyLimit caps the rename history; oldest entries are evicted first.
func NewDatabase(path string, historyLimit int) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if historyLimit <= 0 {
		historyLimit = 100
	}

	return &Database{store: store, historyLimit: historyLimit}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// History operations

// AppendHistory records a completed rename and evicts the oldest
// entries beyond the retention cap, FIFO. Insert and eviction share
// one transaction so concurrent appends never see a half-evicted log.
func (db *Database) AppendHistory(entry *HistoryEntry) error {
	entry.Timestamp = time.Now()
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		if err := db.store.TxInsert(tx, bolthold.NextSequence(), entry); err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}
		return db.evictHistoryTx(tx)
	})
}

// CompactHistory trims the log down to the retention cap. Appends do
// this on the fly; this catches a cap lowered between runs.
func (db *Database) CompactHistory() error {
	return db.store.Bolt().Update(db.evictHistoryTx)
}

func (db *Database) evictHistoryTx(tx *bbolt.Tx) error {
	var entries []*HistoryEntry
	if err := db.store.TxFind(tx, &entries, nil); err != nil {
		return err
	}
	if len(entries) <= db.historyLimit {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	for _, old := range entries[:len(entries)-db.historyLimit] {
		if err := db.store.TxDelete(tx, old.ID, &HistoryEntry{}); err != nil {
			return err
		}
	}
	return nil
}

// GetHistory returns up to limit entries, most recent first.
func (db *Database) GetHistory(limit int) ([]*HistoryEntry, error) {
	var entries []*HistoryEntry
	if err := db.store.Find(&entries, nil); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// LastUndoable returns the most recent entry that has not been undone.
func (db *Database) LastUndoable() (*HistoryEntry, error) {
	entries, err := db.GetHistory(0)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.Undone {
			return e, nil
		}
	}
	return nil, ErrNotFound
}

// LastRedoable returns the most recently undone entry, the one a redo
// should re-apply.
func (db *Database) LastRedoable() (*HistoryEntry, error) {
	entries, err := db.GetHistory(0)
	if err != nil {
		return nil, err
	}
	var latest *HistoryEntry
	for _, e := range entries {
		if !e.Undone || e.UndoneAt == nil {
			continue
		}
		if latest == nil || e.UndoneAt.After(*latest.UndoneAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// MarkUndone flags a history entry as undone.
func (db *Database) MarkUndone(id uint64) error {
	var entry HistoryEntry
	if err := db.store.Get(id, &entry); err != nil {
		return err
	}
	now := time.Now()
	entry.Undone = true
	entry.UndoneAt = &now
	return db.store.Update(id, &entry)
}

// MarkRedone clears the undone flag so the entry is undoable again.
func (db *Database) MarkRedone(id uint64) error {
	var entry HistoryEntry
	if err := db.store.Get(id, &entry); err != nil {
		return err
	}
	entry.Undone = false
	entry.UndoneAt = nil
	return db.store.Update(id, &entry)
}

// HistoryCount returns the number of retained history entries.
func (db *Database) HistoryCount() (int, error) {
	var entries []*HistoryEntry
	if err := db.store.Find(&entries, nil); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Preset operations

// SavePreset creates or replaces a user naming-scheme preset.
func (db *Database) SavePreset(preset *Preset) error {
	preset.UpdatedAt = time.Now()
	return db.store.Upsert(preset.Name, preset)
}

// GetPreset retrieves a preset by name.
func (db *Database) GetPreset(name string) (*Preset, error) {
	var preset Preset
	if err := db.store.Get(name, &preset); err != nil {
		return nil, err
	}
	return &preset, nil
}

// DeletePreset removes a user preset by name.
func (db *Database) DeletePreset(name string) error {
	return db.store.Delete(name, &Preset{})
}

// GetAllPresets returns every user preset.
func (db *Database) GetAllPresets() ([]*Preset, error) {
	var presets []*Preset
	err := db.store.Find(&presets, nil)
	return presets, err
}

// Job operations
//
// Only terminal jobs are persisted; in-flight state lives with the
// orchestrator.

// SaveJob creates or replaces a job record.
func (db *Database) SaveJob(job *Job) error {
	return db.store.Upsert(job.ID, job)
}

// GetJob retrieves a persisted job by ID.
func (db *Database) GetJob(id string) (*Job, error) {
	var job Job
	if err := db.store.Get(id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// DeleteJob removes a persisted job record.
func (db *Database) DeleteJob(id string) error {
	return db.store.Delete(id, &Job{})
}

// GetAllJobs returns every persisted job.
func (db *Database) GetAllJobs() ([]*Job, error) {
	var jobs []*Job
	err := db.store.Find(&jobs, nil)
	return jobs, err
}

// GetJobsByState returns persisted jobs in the given state.
func (db *Database) GetJobsByState(state JobState) ([]*Job, error) {
	var jobs []*Job
	err := db.store.Find(&jobs, bolthold.Where("State").Eq(state).Index("State"))
	return jobs, err
}
