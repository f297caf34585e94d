package platform

import (
	"fmt"
	"os/exec"

	"bivouac/internal/logging"
)

// Runner executes an external command and returns its combined output.
// Production code uses ExecRunner; tests inject recorders.
type Runner interface {
	Run(name string, args ...string) ([]byte, error)
}

type execRunner struct{}

// ExecRunner returns the Runner backed by os/exec.
func ExecRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(name string, args ...string) ([]byte, error) {
	log := logging.GetLogger("exec")
	log.Debug().Str("cmd", name).Strs("args", args).Msg("Running command")

	return exec.Command(name, args...).CombinedOutput()
}

// Backend installs, queries and uninstalls packages through one native
// package manager. Install and Uninstall wrap command failures with the
// package name and captured output so the operator can act manually.
type Backend interface {
	Name() string
	Install(pkg string) error
	Installed(pkg string) bool
	Uninstall(pkg string) error
}

// run invokes argv through r and wraps a non-zero exit with its output.
func run(r Runner, argv ...string) error {
	output, err := r.Run(argv[0], argv[1:]...)
	if err != nil {
		return fmt.Errorf("%v failed: %w (output: %s)", argv, err, string(output))
	}
	return nil
}

// query reports whether argv exits zero, swallowing output. Used for
// package-database membership checks where non-zero means "not installed".
func query(r Runner, argv ...string) bool {
	_, err := r.Run(argv[0], argv[1:]...)
	return err == nil
}

// aptBackend serves the Debian family (ubuntu, debian, pop).
type aptBackend struct{ r Runner }

func newAptBackend(r Runner) Backend { return &aptBackend{r} }

func (b *aptBackend) Name() string { return "apt" }

func (b *aptBackend) Install(pkg string) error {
	return run(b.r, "sudo", "apt-get", "install", "-y", pkg)
}

func (b *aptBackend) Installed(pkg string) bool {
	return query(b.r, "dpkg", "-s", pkg)
}

func (b *aptBackend) Uninstall(pkg string) error {
	return run(b.r, "sudo", "apt-get", "remove", "-y", pkg)
}

// dnfBackend serves the Red Hat family (fedora, centos, rhel).
type dnfBackend struct{ r Runner }

func newDnfBackend(r Runner) Backend { return &dnfBackend{r} }

func (b *dnfBackend) Name() string { return "dnf" }

func (b *dnfBackend) Install(pkg string) error {
	return run(b.r, "sudo", "dnf", "install", "-y", pkg)
}

func (b *dnfBackend) Installed(pkg string) bool {
	return query(b.r, "rpm", "-q", pkg)
}

func (b *dnfBackend) Uninstall(pkg string) error {
	return run(b.r, "sudo", "dnf", "remove", "-y", pkg)
}

// pacmanBackend serves arch.
type pacmanBackend struct{ r Runner }

func newPacmanBackend(r Runner) Backend { return &pacmanBackend{r} }

func (b *pacmanBackend) Name() string { return "pacman" }

func (b *pacmanBackend) Install(pkg string) error {
	return run(b.r, "sudo", "pacman", "-S", "--noconfirm", pkg)
}

func (b *pacmanBackend) Installed(pkg string) bool {
	return query(b.r, "pacman", "-Qi", pkg)
}

func (b *pacmanBackend) Uninstall(pkg string) error {
	return run(b.r, "sudo", "pacman", "-R", "--noconfirm", pkg)
}

// brewBackend serves macOS via Homebrew.
type brewBackend struct{ r Runner }

func newBrewBackend(r Runner) Backend { return &brewBackend{r} }

func (b *brewBackend) Name() string { return "brew" }

func (b *brewBackend) Install(pkg string) error {
	return run(b.r, "brew", "install", pkg)
}

func (b *brewBackend) Installed(pkg string) bool {
	return query(b.r, "brew", "list", pkg)
}

func (b *brewBackend) Uninstall(pkg string) error {
	return run(b.r, "brew", "uninstall", pkg)
}

// termuxBackend serves the Termux userland. No sudo: pkg runs directly.
type termuxBackend struct{ r Runner }

func newTermuxBackend(r Runner) Backend { return &termuxBackend{r} }

func (b *termuxBackend) Name() string { return "pkg" }

func (b *termuxBackend) Install(pkg string) error {
	return run(b.r, "pkg", "install", "-y", pkg)
}

func (b *termuxBackend) Installed(pkg string) bool {
	return query(b.r, "dpkg", "-s", pkg)
}

func (b *termuxBackend) Uninstall(pkg string) error {
	return run(b.r, "pkg", "uninstall", "-y", pkg)
}
