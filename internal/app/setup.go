package app

import (
	"fmt"

	"bivouac/internal/backup"
	"bivouac/internal/config"
	"bivouac/internal/dotfiles"
	"bivouac/internal/ledger"
	"bivouac/internal/logging"
	"bivouac/internal/output"
	"bivouac/internal/pkgmgr"
	"bivouac/internal/platform"
	"bivouac/internal/shell"
	"bivouac/internal/sshkeys"
)

// runSetup provisions the machine: resolve platform, ensure the ledger,
// bootstrap SSH, deploy the dotfile overlay, then install packages
// category by category in fixed order. Fatal errors abort at the point
// of occurrence; actions already committed stay committed.
func runSetup(opts runOptions) error {
	log := logging.GetLogger("setup")
	runner := platform.ExecRunner()

	if !dotfiles.GitAvailable() {
		return fmt.Errorf("git not found on PATH; install it and re-run")
	}

	profile, err := platform.NewResolver(runner).Resolve()
	if err != nil {
		return err
	}
	fmt.Printf("Platform: %s (%s backend)\n", profile.Kind, profile.Backend.Name())

	if _, err := dataDir(opts.home); err != nil {
		return err
	}
	st, err := ledger.Open(opts.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	// SSH bootstrap is a precondition handled outside the core engine;
	// its failure is not worth aborting a provisioning run over.
	if err := sshkeys.Bootstrap(runner, opts.home); err != nil {
		log.Warn().Err(err).Msg("SSH bootstrap failed, continuing")
	}

	engine := dotfiles.New(opts.repoURL, opts.repoDir, opts.home, backup.New(backupsDir(opts.home)), st, opts.confirm)

	spinner := output.NewSpinner("Deploying dotfile overlay...")
	spinner.Start()
	res, err := engine.Deploy()
	spinner.Stop()
	if err != nil {
		return err
	}

	if res.Cloned {
		fmt.Printf("✓ Cloned %s\n", opts.repoURL)
	} else {
		fmt.Printf("✓ Refreshed existing clone at %s\n", opts.repoDir)
	}
	fmt.Printf("✓ Checked out %d dotfiles into %s\n", res.Entries, opts.home)
	if res.Generation != nil {
		fmt.Printf("✓ Backed up %d pre-existing files to %s\n", res.BackedUp, res.Generation.Root)
	}

	catalog, err := config.Load()
	if err != nil {
		return err
	}

	manager := pkgmgr.New(profile.Backend, st, opts.confirm)
	for _, category := range catalog.Categories {
		if err := manager.Install(category.Name, category.Packages); err != nil {
			return err
		}
	}

	if added, configFile, err := shell.EnsureAliasBlock(opts.home, opts.repoDir); err != nil {
		log.Warn().Err(err).Msg("Failed to write shell aliases, continuing")
	} else if added {
		fmt.Printf("\n✓ Added dotfiles alias to %s (restart your shell to pick it up)\n", configFile)
	}

	fmt.Println("\n✓ Setup complete")
	return nil
}
