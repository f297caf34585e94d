package app

import (
	"fmt"
	"os"
	"path/filepath"

	"bivouac/internal/output"
)

// runOptions carries the resolved paths and capabilities for one run.
// Everything is decided once in runRoot and threaded explicitly.
type runOptions struct {
	home    string
	repoURL string
	repoDir string
	dbPath  string
	confirm output.Confirmer
}

// dataDir returns (creating if necessary) the state directory ~/.bivouac.
func dataDir(home string) (string, error) {
	dir := filepath.Join(home, ".bivouac")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return dir, nil
}

// backupsDir returns the base directory for backup generations.
func backupsDir(home string) string {
	return filepath.Join(home, ".bivouac", "backups")
}

// removeLedgerFiles removes the sqlite database and its WAL sidecars.
func removeLedgerFiles(dbPath string) error {
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove ledger %s: %w", dbPath, err)
	}
	for _, sidecar := range []string{dbPath + "-wal", dbPath + "-shm"} {
		os.Remove(sidecar)
	}
	return nil
}
