package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestDatabase(t *testing.T, historyLimit int) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), historyLimit)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHistoryEvictionFIFO(t *testing.T) {
	db := newTestDatabase(t, 3)

	for i := 1; i <= 5; i++ {
		entry := &HistoryEntry{
			OriginalPath:    fmt.Sprintf("/src/%d.mkv", i),
			DestinationPath: fmt.Sprintf("/dst/%d.mkv", i),
		}
		if err := db.AppendHistory(entry); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	count, err := db.HistoryCount()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 retained entries, got %d", count)
	}

	entries, err := db.GetHistory(0)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if entries[0].OriginalPath != "/src/5.mkv" {
		t.Errorf("expected most recent entry first, got %s", entries[0].OriginalPath)
	}
	if entries[len(entries)-1].OriginalPath != "/src/3.mkv" {
		t.Errorf("oldest surviving entry should be /src/3.mkv, got %s", entries[len(entries)-1].OriginalPath)
	}
}

func TestGetHistoryLimit(t *testing.T) {
	db := newTestDatabase(t, 100)
	for i := 0; i < 10; i++ {
		if err := db.AppendHistory(&HistoryEntry{OriginalPath: fmt.Sprintf("/src/%d", i)}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	entries, err := db.GetHistory(4)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("expected 4 entries, got %d", len(entries))
	}
}

func TestLastUndoableSkipsUndone(t *testing.T) {
	db := newTestDatabase(t, 100)
	first := &HistoryEntry{OriginalPath: "/src/a"}
	second := &HistoryEntry{OriginalPath: "/src/b"}
	if err := db.AppendHistory(first); err != nil {
		t.Fatal(err)
	}
	if err := db.AppendHistory(second); err != nil {
		t.Fatal(err)
	}

	entry, err := db.LastUndoable()
	if err != nil {
		t.Fatalf("expected undoable entry: %v", err)
	}
	if entry.OriginalPath != "/src/b" {
		t.Errorf("expected most recent entry, got %s", entry.OriginalPath)
	}

	if err := db.MarkUndone(entry.ID); err != nil {
		t.Fatalf("mark undone failed: %v", err)
	}

	entry, err = db.LastUndoable()
	if err != nil {
		t.Fatalf("expected older undoable entry: %v", err)
	}
	if entry.OriginalPath != "/src/a" {
		t.Errorf("expected older entry after undo, got %s", entry.OriginalPath)
	}

	if err := db.MarkUndone(entry.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := db.LastUndoable(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentAppendsRespectLimit(t *testing.T) {
	db := newTestDatabase(t, 5)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- db.AppendHistory(&HistoryEntry{OriginalPath: fmt.Sprintf("/src/%d", i)})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent append failed: %v", err)
		}
	}
	count, err := db.HistoryCount()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 5 {
		t.Errorf("expected 5 retained entries, got %d", count)
	}
}

func TestLastRedoableTracksUndoOrder(t *testing.T) {
	db := newTestDatabase(t, 100)
	first := &HistoryEntry{OriginalPath: "/src/a"}
	second := &HistoryEntry{OriginalPath: "/src/b"}
	if err := db.AppendHistory(first); err != nil {
		t.Fatal(err)
	}
	if err := db.AppendHistory(second); err != nil {
		t.Fatal(err)
	}

	if _, err := db.LastRedoable(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound with nothing undone, got %v", err)
	}

	// Undo newest first: b, then a. The redo target is whichever was
	// undone last.
	if err := db.MarkUndone(second.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkUndone(first.ID); err != nil {
		t.Fatal(err)
	}

	entry, err := db.LastRedoable()
	if err != nil {
		t.Fatalf("expected redoable entry: %v", err)
	}
	if entry.OriginalPath != "/src/a" {
		t.Errorf("expected most recently undone entry, got %s", entry.OriginalPath)
	}

	if err := db.MarkRedone(entry.ID); err != nil {
		t.Fatalf("mark redone failed: %v", err)
	}
	entry, err = db.LastRedoable()
	if err != nil {
		t.Fatalf("expected remaining redoable entry: %v", err)
	}
	if entry.OriginalPath != "/src/b" {
		t.Errorf("expected earlier undone entry next, got %s", entry.OriginalPath)
	}

	// A redone entry is undoable again.
	undoable, err := db.LastUndoable()
	if err != nil || undoable.OriginalPath != "/src/a" {
		t.Errorf("expected /src/a undoable after redo, got %+v (%v)", undoable, err)
	}
}

func TestCompactHistoryAfterCapLowered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDatabase(path, 10)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	for i := 0; i < 8; i++ {
		if err := db.AppendHistory(&HistoryEntry{OriginalPath: fmt.Sprintf("/src/%d", i)}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = NewDatabase(path, 3)
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.CompactHistory(); err != nil {
		t.Fatalf("compact failed: %v", err)
	}
	count, err := db.HistoryCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 entries after compaction, got %d", count)
	}
	entries, err := db.GetHistory(0)
	if err != nil {
		t.Fatal(err)
	}
	if entries[len(entries)-1].OriginalPath != "/src/5" {
		t.Errorf("compaction must evict oldest first, got %s", entries[len(entries)-1].OriginalPath)
	}
}

func TestPresetRoundTrip(t *testing.T) {
	db := newTestDatabase(t, 100)

	if err := db.SavePreset(&Preset{Name: "mine", Scheme: "{n} ({y})"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	preset, err := db.GetPreset("mine")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if preset.Scheme != "{n} ({y})" {
		t.Errorf("unexpected scheme %q", preset.Scheme)
	}

	// Upsert replaces in place.
	if err := db.SavePreset(&Preset{Name: "mine", Scheme: "{n}"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	preset, err = db.GetPreset("mine")
	if err != nil || preset.Scheme != "{n}" {
		t.Errorf("expected replaced scheme, got %+v (%v)", preset, err)
	}

	all, err := db.GetAllPresets()
	if err != nil || len(all) != 1 {
		t.Errorf("expected one preset, got %d (%v)", len(all), err)
	}

	if err := db.DeletePreset("mine"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := db.GetPreset("mine"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestJobPersistence(t *testing.T) {
	db := newTestDatabase(t, 100)

	job := &Job{
		ID:        "job-1",
		State:     JobStateCompleted,
		CreatedAt: time.Now(),
		Total:     2,
		Processed: 2,
		Results: []RenameResult{
			{OriginalPath: "/a", Success: true},
			{OriginalPath: "/b", Reason: ReasonNoMatch},
		},
	}
	if err := db.SaveJob(job); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := db.GetJob("job-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if loaded.State != JobStateCompleted || len(loaded.Results) != 2 {
		t.Errorf("unexpected job %+v", loaded)
	}

	byState, err := db.GetJobsByState(JobStateCompleted)
	if err != nil || len(byState) != 1 {
		t.Errorf("expected one completed job, got %d (%v)", len(byState), err)
	}

	if err := db.DeleteJob("job-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := db.GetJob("job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestJobStateTerminal(t *testing.T) {
	terminal := []JobState{JobStateCompleted, JobStateFailed, JobStateCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []JobState{JobStatePending, JobStateRunning} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
