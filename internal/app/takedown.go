package app

import (
	"fmt"

	"bivouac/internal/backup"
	"bivouac/internal/dotfiles"
	"bivouac/internal/ledger"
	"bivouac/internal/logging"
	"bivouac/internal/pkgmgr"
	"bivouac/internal/platform"
	"bivouac/internal/shell"
)

// runTakedown reverses a previous setup: uninstall tracked packages,
// drop the shell aliases, remove tracked dotfiles from home, restore
// the last backup generation, then offer to delete the generation, the
// bare repository and the now-empty ledger. Cleanup declines are benign
// skips; a takedown with nothing recorded degrades to removing tracked
// files only.
func runTakedown(opts runOptions) error {
	log := logging.GetLogger("takedown")
	runner := platform.ExecRunner()

	profile, err := platform.NewResolver(runner).Resolve()
	if err != nil {
		return err
	}
	fmt.Printf("Platform: %s (%s backend)\n", profile.Kind, profile.Backend.Name())

	var st *ledger.Store
	if ledger.Exists(opts.dbPath) {
		st, err = ledger.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
	} else {
		log.Warn().Str("path", opts.dbPath).Msg("No manifest ledger found; nothing was tracked")
	}

	if st != nil {
		if err := pkgmgr.New(profile.Backend, st, opts.confirm).UninstallAll(); err != nil {
			return err
		}
	}

	if removed, configFile, err := shell.RemoveAliasBlock(opts.home); err != nil {
		log.Warn().Err(err).Msg("Failed to remove shell aliases, continuing")
	} else if removed {
		fmt.Printf("✓ Removed dotfiles alias from %s\n", configFile)
	}

	backups := backup.New(backupsDir(opts.home))
	engine := dotfiles.New("", opts.repoDir, opts.home, backups, st, opts.confirm)

	if engine.RepoExists() {
		removed, err := engine.RemoveTracked()
		if err != nil {
			return err
		}
		fmt.Printf("✓ Removed %d tracked dotfiles from %s\n", removed, opts.home)
	} else {
		log.Warn().Str("path", opts.repoDir).Msg("No dotfiles repository found; skipping tracked-file removal")
	}

	if err := restoreLastGeneration(opts, st, backups); err != nil {
		return err
	}

	if engine.RepoExists() && opts.confirm(fmt.Sprintf("Delete the bare repository %s?", opts.repoDir)) {
		if err := engine.DeleteRepo(); err != nil {
			log.Warn().Err(err).Msg("Failed to delete repository")
		} else {
			fmt.Printf("✓ Deleted %s\n", opts.repoDir)
		}
	}

	if st != nil {
		if err := cleanupLedger(opts, st); err != nil {
			return err
		}
	}

	fmt.Println("\n✓ Takedown complete")
	return nil
}

// restoreLastGeneration restores the newest backup generation, if any,
// and on confirmation deletes it and pops its ledger entry.
func restoreLastGeneration(opts runOptions, st *ledger.Store, backups *backup.Manager) error {
	log := logging.GetLogger("takedown")

	if st == nil {
		log.Warn().Msg("No backup generation to restore; removed tracked files only")
		return nil
	}

	last, ok, err := st.PeekLast(ledger.LogGenerations)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Msg("No backup generation recorded; removed tracked files only")
		return nil
	}

	gen := backup.FromRoot(last)
	if !gen.Exists() {
		// Orphaned ledger entry: the directory is gone. Leave the entry
		// so the operator can investigate.
		log.Warn().Str("generation", gen.Root).Msg("Recorded backup generation is missing on disk, skipping restore")
		return nil
	}

	restored, err := backups.RestoreGeneration(gen, opts.home)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Restored %d files from generation %s\n", restored, gen.ID)

	if !opts.confirm(fmt.Sprintf("Delete backup generation %s and its ledger entry?", gen.ID)) {
		return nil
	}
	if _, _, err := st.PopLast(ledger.LogGenerations); err != nil {
		return err
	}
	if err := backups.Delete(gen); err != nil {
		// Entry popped but directory left behind: an orphan, acceptable.
		log.Warn().Err(err).Str("generation", gen.Root).Msg("Generation directory left as orphan")
		return nil
	}
	fmt.Printf("✓ Deleted generation %s\n", gen.ID)
	return nil
}

// cleanupLedger offers to remove the ledger database once both logs
// are empty.
func cleanupLedger(opts runOptions, st *ledger.Store) error {
	pkgs, err := st.Len(ledger.LogPackages)
	if err != nil {
		return err
	}
	gens, err := st.Len(ledger.LogGenerations)
	if err != nil {
		return err
	}

	if pkgs+gens > 0 {
		fmt.Printf("Ledger still tracks %d packages and %d generations; keeping %s\n", pkgs, gens, opts.dbPath)
		return nil
	}

	if !opts.confirm(fmt.Sprintf("Ledger is empty. Delete %s?", opts.dbPath)) {
		return nil
	}
	st.Close()
	if err := removeLedgerFiles(opts.dbPath); err != nil {
		return err
	}
	fmt.Printf("✓ Deleted %s\n", opts.dbPath)
	return nil
}
