// Package dotfiles synchronizes a bare version-control repository
// against the home directory.
//
// The repository stores only history; tracked files are written
// directly into the home directory through a forced overlay checkout.
// Files the overlay would clobber are first moved into a fresh backup
// generation so the deployment can be reversed exactly.
package dotfiles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"bivouac/internal/backup"
	"bivouac/internal/ledger"
	"bivouac/internal/logging"
	"bivouac/internal/output"
)

// Engine deploys and removes the dotfile overlay.
type Engine struct {
	repoURL string
	repoDir string
	homeDir string
	backups *backup.Manager
	ledger  *ledger.Store
	confirm output.Confirmer
	git     gitFunc
	log     zerolog.Logger
}

// New creates an Engine for the given bare repository and home directory.
func New(repoURL, repoDir, homeDir string, backups *backup.Manager, st *ledger.Store, confirm output.Confirmer) *Engine {
	return &Engine{
		repoURL: repoURL,
		repoDir: repoDir,
		homeDir: homeDir,
		backups: backups,
		ledger:  st,
		confirm: confirm,
		git:     execGit,
		log:     logging.GetLogger("dotfiles"),
	}
}

// Result summarizes one deployment.
type Result struct {
	Generation *backup.Generation // nil when nothing was displaced
	Entries    int
	BackedUp   int
	Cloned     bool // false means an existing clone was pulled
}

// Deploy clones (or refreshes) the bare repository, backs up every
// colliding home file into a new generation, and performs the forced
// overlay checkout. A declined checkpoint is fatal: a half-deployed
// overlay is an unsafe end state. Backups already moved before a
// failure stay in place, recoverable from the generation directory.
func (e *Engine) Deploy() (*Result, error) {
	res := &Result{}

	if isBareRepo(e.repoDir) {
		if err := e.pull(); err != nil {
			return nil, err
		}
	} else {
		if err := e.clone(); err != nil {
			return nil, err
		}
		res.Cloned = true
	}

	// Idempotent: without this every repo status run would list the
	// whole home directory as untracked.
	if out, err := e.git("--git-dir", e.repoDir, "config", "status.showUntrackedFiles", "no"); err != nil {
		return nil, fmt.Errorf("failed to configure repository: %w (output: %s)", err, string(out))
	}

	entries, err := e.Entries()
	if err != nil {
		return nil, err
	}
	res.Entries = len(entries)

	gen := e.backups.NewGeneration()
	for _, entry := range entries {
		src := filepath.Join(e.homeDir, filepath.FromSlash(entry))
		if _, err := os.Lstat(src); os.IsNotExist(err) {
			continue
		}
		if err := e.backups.Backup(src, gen.Path(filepath.FromSlash(entry))); err != nil {
			return nil, err
		}
		res.BackedUp++
	}

	if !e.confirm(fmt.Sprintf("Overlay checkout will overwrite %d tracked paths under %s. Continue?", len(entries), e.homeDir)) {
		return nil, fmt.Errorf("overlay checkout declined, aborting")
	}

	if out, err := e.git("--git-dir", e.repoDir, "--work-tree", e.homeDir, "checkout", "-f"); err != nil {
		return nil, fmt.Errorf("overlay checkout failed: %w (output: %s)", err, string(out))
	}

	if res.BackedUp > 0 {
		res.Generation = gen
		if err := e.ledger.Append(ledger.LogGenerations, gen.Root); err != nil {
			// The backup exists but takedown will not find it; leave
			// the directory for manual recovery.
			e.log.Warn().Err(err).Str("generation", gen.Root).
				Msg("Backup generation not recorded in the ledger")
		}
	}

	return res, nil
}

// Entries enumerates the tracked-file set fresh from the repository,
// relative to home, with reserved names excluded. Never cached: the
// repository may have changed between runs.
func (e *Engine) Entries() ([]string, error) {
	out, err := e.git("--git-dir", e.repoDir, "ls-tree", "-r", "--name-only", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w (output: %s)", err, string(out))
	}
	return filterEntries(string(out)), nil
}

// RemoveTracked deletes every current tracked path from home, returning
// the count removed. Missing paths are skipped; removal failures are
// warnings so the rest of the takedown can proceed.
func (e *Engine) RemoveTracked() (int, error) {
	entries, err := e.Entries()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		path := filepath.Join(e.homeDir, filepath.FromSlash(entry))
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			continue
		}
		if err := os.Remove(path); err != nil {
			e.log.Warn().Err(err).Str("path", path).Msg("Failed to remove tracked file")
			continue
		}
		removed++
	}

	return removed, nil
}

// DeleteRepo removes the bare repository directory.
func (e *Engine) DeleteRepo() error {
	if err := os.RemoveAll(e.repoDir); err != nil {
		return fmt.Errorf("failed to delete repository %s: %w", e.repoDir, err)
	}
	return nil
}

// RepoDir returns the bare repository directory path.
func (e *Engine) RepoDir() string {
	return e.repoDir
}

// RepoExists reports whether the bare repository is present on disk.
func (e *Engine) RepoExists() bool {
	return isBareRepo(e.repoDir)
}

func (e *Engine) clone() error {
	if out, err := e.git("clone", "--bare", e.repoURL, e.repoDir); err != nil {
		return fmt.Errorf("failed to clone %s: %w (output: %s)", e.repoURL, err, string(out))
	}
	return nil
}

func (e *Engine) pull() error {
	out, err := e.git("--git-dir", e.repoDir, "--work-tree", e.homeDir, "pull")
	if err != nil {
		// Up to date is success; anything else is fatal.
		if strings.Contains(strings.ToLower(string(out)), "already up to date") {
			return nil
		}
		return fmt.Errorf("failed to pull %s: %w (output: %s)", e.repoDir, err, string(out))
	}
	return nil
}
