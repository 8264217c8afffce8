// Package renamer performs the validated move/copy step of the
// pipeline and records successful renames in the undo history.
package renamer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/renamarr/internal/models"
)

var (
	// ErrDestinationExists marks a conflict with a distinct existing
	// file; the renamer never clobbers.
	ErrDestinationExists = errors.New("destination already exists")

	// ErrNothingToUndo is returned when the history has no entry left
	// to reverse.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned when no undone entry is left to
	// re-apply.
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrHistoryDrifted is returned when the renamed file was moved or
	// deleted outside of this tool, so the undo cannot be applied.
	ErrHistoryDrifted = errors.New("renamed file no longer at recorded destination")
)

// Renamer validates destinations, moves or copies files, appends to
// the history log and fans out to post-processors.
type Renamer struct {
	db             *models.Database
	postProcessors []PostProcessor
	logger         *logrus.Logger
}

// NewRenamer creates a renamer. postProcessors may be empty.
func NewRenamer(db *models.Database, postProcessors []PostProcessor, logger *logrus.Logger) *Renamer {
	return &Renamer{
		db:             db,
		postProcessors: postProcessors,
		logger:         logger,
	}
}

// Rename moves or copies originalPath to destinationPath. With dryRun
// no filesystem mutation happens at all; the result still reports the
// would-be destination. Post-processor failures surface as warnings on
// the result, never as a failed rename.
func (r *Renamer) Rename(originalPath, destinationPath string, operation models.Operation, dryRun bool, match *models.Match) models.RenameResult {
	result := models.RenameResult{
		OriginalPath:    originalPath,
		DestinationPath: destinationPath,
		DryRun:          dryRun,
	}

	if _, err := os.Stat(originalPath); err != nil {
		result.Reason = fmt.Sprintf("source not accessible: %v", err)
		return result
	}

	if same, err := isSameFile(originalPath, destinationPath); err == nil && same {
		// Renaming a file onto itself is a no-op, not a conflict.
		result.Success = true
		return result
	} else if _, err := os.Stat(destinationPath); err == nil {
		result.Reason = models.ReasonConflict
		return result
	}

	if dryRun {
		result.Success = true
		return result
	}

	if err := os.MkdirAll(filepath.Dir(destinationPath), 0755); err != nil {
		result.Reason = fmt.Sprintf("failed to create destination directory: %v", err)
		return result
	}

	var err error
	switch operation {
	case models.OperationCopy:
		err = copyFile(originalPath, destinationPath)
	default:
		err = moveFile(originalPath, destinationPath)
	}
	if err != nil {
		result.Reason = err.Error()
		return result
	}
	result.Success = true

	if operation == models.OperationMove {
		entry := &models.HistoryEntry{
			OriginalPath:    originalPath,
			DestinationPath: destinationPath,
		}
		if err := r.db.AppendHistory(entry); err != nil {
			r.logger.WithError(err).Error("Failed to record rename in history")
		}
	}

	for _, pp := range r.postProcessors {
		if warn := pp.Apply(match, destinationPath); warn != nil {
			r.logger.WithError(warn).WithField("post_processor", pp.Name()).Warn("Post-processor failed")
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", pp.Name(), warn))
		}
	}

	return result
}

// Undo reverses the most recent not-yet-undone rename by moving the
// file back to its original path.
func (r *Renamer) Undo() (*models.HistoryEntry, error) {
	entry, err := r.db.LastUndoable()
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNothingToUndo
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	if _, err := os.Stat(entry.DestinationPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrHistoryDrifted, entry.DestinationPath)
	}
	if _, err := os.Stat(entry.OriginalPath); err == nil {
		return nil, fmt.Errorf("%w: original path is occupied: %s", ErrHistoryDrifted, entry.OriginalPath)
	}

	if err := os.MkdirAll(filepath.Dir(entry.OriginalPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to recreate original directory: %w", err)
	}
	if err := moveFile(entry.DestinationPath, entry.OriginalPath); err != nil {
		return nil, fmt.Errorf("failed to move file back: %w", err)
	}

	if err := r.db.MarkUndone(entry.ID); err != nil {
		r.logger.WithError(err).Error("Failed to mark history entry undone")
	}
	entry.Undone = true
	return entry, nil
}

// Redo re-applies the most recently undone rename by moving the file
// back to its recorded destination.
func (r *Renamer) Redo() (*models.HistoryEntry, error) {
	entry, err := r.db.LastRedoable()
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNothingToRedo
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	if _, err := os.Stat(entry.OriginalPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrHistoryDrifted, entry.OriginalPath)
	}
	if _, err := os.Stat(entry.DestinationPath); err == nil {
		return nil, fmt.Errorf("%w: destination is occupied: %s", ErrHistoryDrifted, entry.DestinationPath)
	}

	if err := os.MkdirAll(filepath.Dir(entry.DestinationPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to recreate destination directory: %w", err)
	}
	if err := moveFile(entry.OriginalPath, entry.DestinationPath); err != nil {
		return nil, fmt.Errorf("failed to move file forward: %w", err)
	}

	if err := r.db.MarkRedone(entry.ID); err != nil {
		r.logger.WithError(err).Error("Failed to mark history entry redone")
	}
	entry.Undone = false
	return entry, nil
}

func isSameFile(a, b string) (bool, error) {
	infoA, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(infoA, infoB), nil
}

// moveFile renames, falling back to copy-and-remove when source and
// destination sit on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !isCrossDevice(err) {
		return fmt.Errorf("failed to move file: %w", err)
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		// A failed move must not leave a duplicate at the destination.
		os.Remove(dst)
		return fmt.Errorf("failed to remove source after copy: %w", err)
	}
	return nil
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	return errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy contents: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to finish copy: %w", err)
	}
	return nil
}
