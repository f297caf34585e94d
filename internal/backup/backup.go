// Package backup owns the backup-generation directory layout and the
// move-based backup/restore primitive.
//
// A generation is one timestamped directory mirroring the subset of the
// home tree displaced by a single deployment. Both primitives are pure
// move semantics: no merge, no diff. Last state wins, and anything
// written to the target between backup and restore is discarded.
package backup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"bivouac/internal/logging"
)

// IDFormat is the sortable timestamp layout naming generation directories.
const IDFormat = "2006-01-02-150405"

// Generation is one timestamped backup snapshot.
type Generation struct {
	ID   string
	Root string
}

// Path returns the mirrored backup path for a home-relative entry.
func (g *Generation) Path(rel string) string {
	return filepath.Join(g.Root, rel)
}

// Manager creates, restores and deletes generations under a base
// directory (~/.bivouac/backups).
type Manager struct {
	baseDir string
}

// New returns a Manager rooted at baseDir.
func New(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

// NewGeneration names a fresh generation. The directory itself is
// created lazily by the first Backup call, so a deployment that
// displaces nothing leaves no empty directory behind.
func (m *Manager) NewGeneration() *Generation {
	id := time.Now().Format(IDFormat)
	return &Generation{ID: id, Root: filepath.Join(m.baseDir, id)}
}

// FromRoot rebuilds the Generation value for a directory path read back
// from the ledger.
func FromRoot(root string) *Generation {
	return &Generation{ID: filepath.Base(root), Root: root}
}

// Backup moves sourcePath to backupPath, creating parent directories as
// needed. A missing source is a successful no-op. Any failure is fatal
// for the run: a failed backup must never be followed by an overwrite,
// so callers check this before checkout.
func (m *Manager) Backup(sourcePath, backupPath string) error {
	if _, err := os.Lstat(sourcePath); os.IsNotExist(err) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(backupPath), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory for %s: %w", backupPath, err)
	}

	if err := os.Rename(sourcePath, backupPath); err != nil {
		return fmt.Errorf("failed to back up %s: %w", sourcePath, err)
	}

	return nil
}

// Restore moves backupPath back to targetPath, creating parent
// directories as needed. A missing backup is a warning and a skip (the
// item may never have been backed up); a failed move is fatal.
// restored reports whether a move actually happened.
func (m *Manager) Restore(backupPath, targetPath string) (restored bool, err error) {
	if _, statErr := os.Lstat(backupPath); os.IsNotExist(statErr) {
		log := logging.GetLogger("backup")
		log.Warn().Str("path", backupPath).Msg("No backup to restore, skipping")
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return false, fmt.Errorf("failed to create target directory for %s: %w", targetPath, err)
	}

	if err := os.Rename(backupPath, targetPath); err != nil {
		return false, fmt.Errorf("failed to restore %s: %w", targetPath, err)
	}

	return true, nil
}

// RestoreGeneration walks gen file-by-file and moves every entry back to
// its mirrored path under homeDir. Returns the number of files restored.
// Nested directories are not restored as whole units; each regular file
// (or symlink) moves individually, matching the enumerated tracked set.
func (m *Manager) RestoreGeneration(gen *Generation, homeDir string) (int, error) {
	restored := 0

	err := filepath.WalkDir(gen.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(gen.Root, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}

		moved, err := m.Restore(path, filepath.Join(homeDir, rel))
		if err != nil {
			return err
		}
		if moved {
			restored++
		}
		return nil
	})
	if err != nil {
		return restored, fmt.Errorf("failed to restore generation %s: %w", gen.ID, err)
	}

	return restored, nil
}

// Delete removes the generation directory and everything left in it.
func (m *Manager) Delete(gen *Generation) error {
	if err := os.RemoveAll(gen.Root); err != nil {
		return fmt.Errorf("failed to delete generation %s: %w", gen.ID, err)
	}
	return nil
}

// Exists reports whether the generation directory is present on disk.
// A ledger entry whose directory is gone is an orphan: logged, skipped.
func (g *Generation) Exists() bool {
	info, err := os.Stat(g.Root)
	return err == nil && info.IsDir()
}
