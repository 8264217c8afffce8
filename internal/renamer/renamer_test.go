package renamer

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/renamarr/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRenamer(t *testing.T, postProcessors ...PostProcessor) (*Renamer, *models.Database) {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"), 100)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRenamer(db, postProcessors, testLogger()), db
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func TestRenameMove(t *testing.T) {
	ren, db := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "inception.2010.mkv")
	dst := filepath.Join(dir, "out", "Inception (2010).mkv")
	writeFile(t, src, "data")

	result := ren.Rename(src, dst, models.OperationMove, false, &models.Match{})
	if !result.Success {
		t.Fatalf("expected success, got reason %q", result.Reason)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be gone after a move")
	}
	content, err := os.ReadFile(dst)
	if err != nil || string(content) != "data" {
		t.Errorf("destination content wrong: %v %q", err, content)
	}

	entries, err := db.GetHistory(0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one history entry, got %d (%v)", len(entries), err)
	}
	if entries[0].OriginalPath != src || entries[0].DestinationPath != dst {
		t.Errorf("history entry wrong: %+v", entries[0])
	}
}

func TestRenameCopyKeepsSource(t *testing.T) {
	ren, db := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	dst := filepath.Join(dir, "Movie (2020).mkv")
	writeFile(t, src, "data")

	result := ren.Rename(src, dst, models.OperationCopy, false, &models.Match{})
	if !result.Success {
		t.Fatalf("expected success, got reason %q", result.Reason)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("source must survive a copy")
	}
	if _, err := os.Stat(dst); err != nil {
		t.Error("destination missing after copy")
	}

	// Copies are not undoable; nothing goes into the history.
	if n, _ := db.HistoryCount(); n != 0 {
		t.Errorf("expected empty history after copy, got %d entries", n)
	}
}

func TestRenameConflict(t *testing.T) {
	ren, _ := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	dst := filepath.Join(dir, "existing.mkv")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")

	result := ren.Rename(src, dst, models.OperationMove, false, &models.Match{})
	if result.Success {
		t.Fatal("expected conflict failure")
	}
	if result.Reason != models.ReasonConflict {
		t.Errorf("expected reason %q, got %q", models.ReasonConflict, result.Reason)
	}
	content, _ := os.ReadFile(dst)
	if string(content) != "old" {
		t.Error("existing destination must never be clobbered")
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("source must be untouched on conflict")
	}
}

func TestRenameSamePathIsNoOp(t *testing.T) {
	ren, _ := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "already-named.mkv")
	writeFile(t, src, "data")

	result := ren.Rename(src, src, models.OperationMove, false, &models.Match{})
	if !result.Success {
		t.Fatalf("renaming a file onto itself must succeed, got %q", result.Reason)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("file must still exist")
	}
}

func TestRenameDryRun(t *testing.T) {
	ren, db := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	dst := filepath.Join(dir, "Movie (2020).mkv")
	writeFile(t, src, "data")

	result := ren.Rename(src, dst, models.OperationMove, true, &models.Match{})
	if !result.Success || !result.DryRun {
		t.Fatalf("expected successful dry run, got %+v", result)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("dry run must not create the destination")
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("dry run must not touch the source")
	}
	if n, _ := db.HistoryCount(); n != 0 {
		t.Errorf("dry run must not write history, got %d entries", n)
	}
}

func TestRenameDryRunReportsConflict(t *testing.T) {
	ren, _ := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	dst := filepath.Join(dir, "existing.mkv")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")

	result := ren.Rename(src, dst, models.OperationMove, true, &models.Match{})
	if result.Success {
		t.Fatal("dry run must still surface conflicts")
	}
	if result.Reason != models.ReasonConflict {
		t.Errorf("expected reason %q, got %q", models.ReasonConflict, result.Reason)
	}
}

func TestRenameMissingSource(t *testing.T) {
	ren, _ := newTestRenamer(t)
	dir := t.TempDir()

	result := ren.Rename(filepath.Join(dir, "gone.mkv"), filepath.Join(dir, "x.mkv"), models.OperationMove, false, &models.Match{})
	if result.Success {
		t.Fatal("expected failure for missing source")
	}
}

func TestUndo(t *testing.T) {
	ren, _ := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	dst := filepath.Join(dir, "Movie (2020).mkv")
	writeFile(t, src, "data")

	if result := ren.Rename(src, dst, models.OperationMove, false, &models.Match{}); !result.Success {
		t.Fatalf("setup rename failed: %q", result.Reason)
	}

	entry, err := ren.Undo()
	if err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if entry.OriginalPath != src {
		t.Errorf("unexpected undo entry: %+v", entry)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("file should be back at the original path")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("destination should be gone after undo")
	}

	// The same entry must not be undoable twice.
	if _, err := ren.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("expected ErrNothingToUndo, got %v", err)
	}
}

func TestUndoEmptyHistory(t *testing.T) {
	ren, _ := newTestRenamer(t)
	if _, err := ren.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("expected ErrNothingToUndo, got %v", err)
	}
}

func TestUndoDriftedDestination(t *testing.T) {
	ren, _ := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	dst := filepath.Join(dir, "Movie (2020).mkv")
	writeFile(t, src, "data")

	if result := ren.Rename(src, dst, models.OperationMove, false, &models.Match{}); !result.Success {
		t.Fatalf("setup rename failed: %q", result.Reason)
	}
	if err := os.Remove(dst); err != nil {
		t.Fatalf("failed to remove destination: %v", err)
	}

	if _, err := ren.Undo(); !errors.Is(err, ErrHistoryDrifted) {
		t.Errorf("expected ErrHistoryDrifted, got %v", err)
	}
}

func TestUndoOccupiedOriginal(t *testing.T) {
	ren, _ := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	dst := filepath.Join(dir, "Movie (2020).mkv")
	writeFile(t, src, "data")

	if result := ren.Rename(src, dst, models.OperationMove, false, &models.Match{}); !result.Success {
		t.Fatalf("setup rename failed: %q", result.Reason)
	}
	writeFile(t, src, "intruder")

	if _, err := ren.Undo(); !errors.Is(err, ErrHistoryDrifted) {
		t.Errorf("expected ErrHistoryDrifted, got %v", err)
	}
}

func TestRedo(t *testing.T) {
	ren, _ := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	dst := filepath.Join(dir, "Movie (2020).mkv")
	writeFile(t, src, "data")

	if result := ren.Rename(src, dst, models.OperationMove, false, &models.Match{}); !result.Success {
		t.Fatalf("setup rename failed: %q", result.Reason)
	}
	if _, err := ren.Undo(); err != nil {
		t.Fatalf("setup undo failed: %v", err)
	}

	entry, err := ren.Redo()
	if err != nil {
		t.Fatalf("redo failed: %v", err)
	}
	if entry.DestinationPath != dst {
		t.Errorf("unexpected redo entry: %+v", entry)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Error("file should be back at the destination after redo")
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("original path should be empty after redo")
	}

	// The redone entry is undoable again, and there is nothing left to redo.
	if _, err := ren.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Errorf("expected ErrNothingToRedo, got %v", err)
	}
	if _, err := ren.Undo(); err != nil {
		t.Errorf("redone entry must be undoable again: %v", err)
	}
}

func TestRedoEmptyHistory(t *testing.T) {
	ren, _ := newTestRenamer(t)
	if _, err := ren.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Errorf("expected ErrNothingToRedo, got %v", err)
	}
}

func TestRedoPicksMostRecentlyUndone(t *testing.T) {
	ren, _ := newTestRenamer(t)
	dir := t.TempDir()
	srcA := filepath.Join(dir, "a.mkv")
	dstA := filepath.Join(dir, "A (2020).mkv")
	srcB := filepath.Join(dir, "b.mkv")
	dstB := filepath.Join(dir, "B (2021).mkv")
	writeFile(t, srcA, "a")
	writeFile(t, srcB, "b")

	if result := ren.Rename(srcA, dstA, models.OperationMove, false, &models.Match{}); !result.Success {
		t.Fatalf("setup rename failed: %q", result.Reason)
	}
	if result := ren.Rename(srcB, dstB, models.OperationMove, false, &models.Match{}); !result.Success {
		t.Fatalf("setup rename failed: %q", result.Reason)
	}

	// Undo runs newest first: B, then A. Redo must walk back in the
	// opposite order.
	if _, err := ren.Undo(); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if _, err := ren.Undo(); err != nil {
		t.Fatalf("undo failed: %v", err)
	}

	entry, err := ren.Redo()
	if err != nil {
		t.Fatalf("redo failed: %v", err)
	}
	if entry.DestinationPath != dstA {
		t.Errorf("expected redo of %s, got %+v", dstA, entry)
	}
	entry, err = ren.Redo()
	if err != nil {
		t.Fatalf("second redo failed: %v", err)
	}
	if entry.DestinationPath != dstB {
		t.Errorf("expected redo of %s, got %+v", dstB, entry)
	}
}

func TestRedoDriftedOriginal(t *testing.T) {
	ren, _ := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	dst := filepath.Join(dir, "Movie (2020).mkv")
	writeFile(t, src, "data")

	if result := ren.Rename(src, dst, models.OperationMove, false, &models.Match{}); !result.Success {
		t.Fatalf("setup rename failed: %q", result.Reason)
	}
	if _, err := ren.Undo(); err != nil {
		t.Fatalf("setup undo failed: %v", err)
	}
	if err := os.Remove(src); err != nil {
		t.Fatalf("failed to remove original: %v", err)
	}

	if _, err := ren.Redo(); !errors.Is(err, ErrHistoryDrifted) {
		t.Errorf("expected ErrHistoryDrifted, got %v", err)
	}
}

func TestRedoOccupiedDestination(t *testing.T) {
	ren, _ := newTestRenamer(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	dst := filepath.Join(dir, "Movie (2020).mkv")
	writeFile(t, src, "data")

	if result := ren.Rename(src, dst, models.OperationMove, false, &models.Match{}); !result.Success {
		t.Fatalf("setup rename failed: %q", result.Reason)
	}
	if _, err := ren.Undo(); err != nil {
		t.Fatalf("setup undo failed: %v", err)
	}
	writeFile(t, dst, "intruder")

	if _, err := ren.Redo(); !errors.Is(err, ErrHistoryDrifted) {
		t.Errorf("expected ErrHistoryDrifted, got %v", err)
	}
}

func TestIsCrossDevice(t *testing.T) {
	exdev := &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EXDEV}
	if !isCrossDevice(exdev) {
		t.Error("EXDEV must trigger the copy fallback")
	}

	denied := &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EACCES}
	if isCrossDevice(denied) {
		t.Error("a permission error must surface as-is, not fall back to copy")
	}
	if isCrossDevice(errors.New("plain")) {
		t.Error("non-link errors must not trigger the fallback")
	}
}

type failingProcessor struct{}

func (failingProcessor) Name() string { return "failing" }
func (failingProcessor) Apply(_ *models.Match, _ string) error {
	return errors.New("boom")
}

func TestRenamePostProcessorFailureIsWarning(t *testing.T) {
	ren, _ := newTestRenamer(t, failingProcessor{})
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	dst := filepath.Join(dir, "Movie (2020).mkv")
	writeFile(t, src, "data")

	result := ren.Rename(src, dst, models.OperationMove, false, &models.Match{})
	if !result.Success {
		t.Fatalf("post-processor failure must not fail the rename, got %q", result.Reason)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
}
