package backup

import (
	"errors"
	"fmt"
	"os"

	domain "github.com/oshokin/self-updater/internal/domain/update"
)

var (
	// errNoRecord is returned when restore is asked to work without a record.
	errNoRecord = errors.New("backup record is not set")
	// errTargetIsDirectory is returned when the target path names a directory.
	errTargetIsDirectory = errors.New("target is a directory")
)

// Manager creates, restores and discards backups of a target file.
type Manager struct {
	// disabled turns Backup into a no-op.
	disabled bool
}

// NewManager returns a Manager; when disabled is true no backups are made.
func NewManager(disabled bool) *Manager {
	return &Manager{
		disabled: disabled,
	}
}

// Backup renames targetPath to targetPath+".backup" and returns the record.
// It returns nil without touching the disk if backups are disabled or the
// target does not exist. A stray backup from an earlier run is overwritten.
func (m *Manager) Backup(targetPath string) (*domain.BackupRecord, error) {
	if m.disabled {
		return nil, nil //nolint:nilnil // No record means no backup was made.
	}

	info, err := os.Stat(targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil //nolint:nilnil // Nothing to back up.
		}

		return nil, fmt.Errorf("stat target: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w", targetPath, errTargetIsDirectory)
	}

	record := &domain.BackupRecord{
		TargetPath: targetPath,
		BackupPath: domain.BackupPathFor(targetPath),
	}

	if err = os.Rename(record.TargetPath, record.BackupPath); err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}

	return record, nil
}

// Restore renames the backup back over the target path.
// Whatever sits at the target path is removed first.
func (m *Manager) Restore(record *domain.BackupRecord) error {
	if record == nil {
		return errNoRecord
	}

	var removeErr error
	if err := os.Remove(record.TargetPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		removeErr = fmt.Errorf("remove corrupt target: %w", err)
	}

	if err := os.Rename(record.BackupPath, record.TargetPath); err != nil {
		return errors.Join(removeErr, fmt.Errorf("restore backup: %w", err))
	}

	return nil
}

// Discard deletes the backup unless keep is set.
// A backup that is already gone is not an error.
func (m *Manager) Discard(record *domain.BackupRecord, keep bool) error {
	if record == nil || keep {
		return nil
	}

	if err := os.Remove(record.BackupPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete backup: %w", err)
	}

	return nil
}
