// Package app wires the components into the two top-level operations,
// Setup and Takedown, behind the cobra command surface.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bivouac/internal/logging"
	"bivouac/internal/output"
)

var (
	flagSetup    bool
	flagTakedown bool
	flagForce    bool
	flagVerbose  int
	flagHome     string
	flagRepo     string
	flagRepoDir  string
	flagDB       string

	// RootCmd is the root command for bivouac.
	RootCmd = &cobra.Command{
		Use:   "bivouac --setup --repo <url> | --takedown",
		Short: "Reversible provisioning of a personal machine environment",
		Long: `bivouac deploys your dotfiles from a bare repository onto the home
directory and installs a curated package set through the host's native
package manager, and can fully reverse both later, restoring the
machine to its pre-provisioning state.

Every package install and every displaced file is recorded in a
manifest ledger under ~/.bivouac, so --takedown knows exactly what to
uninstall and what to put back.

Examples:
  # Provision this machine
  bivouac --setup --repo git@github.com:you/dotfiles.git

  # Provision without any confirmation prompts
  bivouac --setup --repo git@github.com:you/dotfiles.git --force

  # Restore the machine to its pre-setup state
  bivouac --takedown`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}
)

func init() {
	RootCmd.Flags().BoolVar(&flagSetup, "setup", false, "deploy dotfiles and install packages")
	RootCmd.Flags().BoolVar(&flagTakedown, "takedown", false, "reverse a previous setup")
	RootCmd.Flags().BoolVar(&flagForce, "force", false, "auto-approve every confirmation checkpoint")
	RootCmd.Flags().CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	RootCmd.Flags().StringVar(&flagHome, "home", "", "home directory to provision (default: $HOME)")
	RootCmd.Flags().StringVar(&flagRepo, "repo", "", "dotfiles repository URL (required with --setup)")
	RootCmd.Flags().StringVar(&flagRepoDir, "repo-dir", "", "bare clone location (default: ~/.bivouac/dotfiles.git)")
	RootCmd.Flags().StringVar(&flagDB, "db", "", "ledger database path (default: ~/.bivouac/bivouac.db)")

	// SilenceUsage keeps runtime errors clean, but a bad flag should
	// still show the usage text.
	RootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		cmd.Usage()
		return err
	})
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

func runRoot(cmd *cobra.Command, args []string) error {
	logging.Setup(flagVerbose)

	if flagSetup == flagTakedown {
		cmd.Usage()
		return fmt.Errorf("exactly one of --setup or --takedown is required")
	}

	home := flagHome
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to determine home directory: %w", err)
		}
	}

	opts := runOptions{
		home:    home,
		repoURL: flagRepo,
		repoDir: flagRepoDir,
		dbPath:  flagDB,
	}
	if opts.repoDir == "" {
		opts.repoDir = filepath.Join(home, ".bivouac", "dotfiles.git")
	}
	if opts.dbPath == "" {
		opts.dbPath = filepath.Join(home, ".bivouac", "bivouac.db")
	}

	if flagForce {
		opts.confirm = output.AutoApprove()
	} else {
		opts.confirm = output.Terminal()
	}

	if flagSetup {
		if opts.repoURL == "" {
			return fmt.Errorf("--setup requires --repo <url>")
		}
		return runSetup(opts)
	}
	return runTakedown(opts)
}
