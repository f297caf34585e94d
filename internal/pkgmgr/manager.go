// Package pkgmgr installs and uninstalls the curated package set
// through the resolved platform backend, tracking every install it
// performs in the manifest ledger so it can be reversed later.
package pkgmgr

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"bivouac/internal/ledger"
	"bivouac/internal/logging"
	"bivouac/internal/output"
	"bivouac/internal/platform"
)

// Manager drives package installs and uninstalls against one backend.
type Manager struct {
	backend platform.Backend
	ledger  *ledger.Store
	confirm output.Confirmer
	out     io.Writer
	log     zerolog.Logger
}

// New creates a Manager. The Confirmer gates every install and the
// blanket uninstall; --force callers pass output.AutoApprove().
func New(backend platform.Backend, st *ledger.Store, confirm output.Confirmer) *Manager {
	return &Manager{
		backend: backend,
		ledger:  st,
		confirm: confirm,
		out:     os.Stdout,
		log:     logging.GetLogger("pkgmgr"),
	}
}

// SetOutput redirects user-facing lines (useful for testing).
func (m *Manager) SetOutput(w io.Writer) {
	m.out = w
}

// Install processes one category in list order. Already-installed
// packages are skipped with no command invocation and no ledger write.
// A declined confirmation or a failed install command aborts the run;
// a failed ledger append is only a warning (the package is installed,
// but a later uninstall will not find it).
func (m *Manager) Install(category string, packages []string) error {
	fmt.Fprintf(m.out, "\n%s:\n", category)

	bar := output.NewProgress(len(packages), fmt.Sprintf("Installing %s packages", category))
	bar.SetWriter(m.out)

	for _, pkg := range packages {
		if m.backend.Installed(pkg) {
			fmt.Fprintf(m.out, "  - %s already installed, skipping\n", pkg)
			bar.Increment()
			continue
		}

		if !m.confirm(fmt.Sprintf("Install %s via %s?", pkg, m.backend.Name())) {
			return fmt.Errorf("install of %s declined, aborting", pkg)
		}

		if err := m.backend.Install(pkg); err != nil {
			return fmt.Errorf("failed to install %s: %w", pkg, err)
		}
		fmt.Fprintf(m.out, "  ✓ %s installed\n", pkg)

		if err := m.ledger.Append(ledger.LogPackages, pkg); err != nil {
			m.log.Warn().Err(err).Str("package", pkg).
				Msg("Installed but not recorded; uninstall will not reverse it")
			fmt.Fprintf(m.out, "  ⚠ %s installed but not recorded in the ledger\n", pkg)
		}
		bar.Increment()
	}

	bar.Finish()
	return nil
}

// UninstallAll reverses every install recorded in the ledger, newest
// first (reverse dependency-safety heuristic). One blanket confirmation
// covers the whole pass; declining it skips uninstallation entirely.
// Per-package failures are warnings and the pass continues; packages no
// longer installed are skipped silently and their entries dropped.
func (m *Manager) UninstallAll() error {
	packages, err := m.ledger.All(ledger.LogPackages)
	if err != nil {
		return fmt.Errorf("failed to read installed-packages ledger: %w", err)
	}

	if len(packages) == 0 {
		fmt.Fprintln(m.out, "No packages were installed by this tool, nothing to uninstall.")
		return nil
	}

	if !m.confirm(fmt.Sprintf("Uninstall %d packages installed by bivouac?", len(packages))) {
		fmt.Fprintln(m.out, "Uninstall skipped.")
		return nil
	}

	for i := len(packages) - 1; i >= 0; i-- {
		pkg := packages[i]

		if !m.backend.Installed(pkg) {
			// Removed manually, or the install never actually landed.
			m.log.Debug().Str("package", pkg).Msg("Not currently installed, dropping ledger entry")
			if err := m.ledger.Remove(ledger.LogPackages, pkg); err != nil {
				m.log.Warn().Err(err).Str("package", pkg).Msg("Failed to drop ledger entry")
			}
			continue
		}

		if err := m.backend.Uninstall(pkg); err != nil {
			m.log.Warn().Err(err).Str("package", pkg).Msg("Uninstall failed, continuing")
			fmt.Fprintf(m.out, "  ⚠ failed to uninstall %s: %v\n", pkg, err)
			continue
		}
		fmt.Fprintf(m.out, "  ✓ %s uninstalled\n", pkg)

		if err := m.ledger.Remove(ledger.LogPackages, pkg); err != nil {
			m.log.Warn().Err(err).Str("package", pkg).Msg("Failed to drop ledger entry")
		}
	}

	return nil
}
