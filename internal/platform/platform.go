// Package platform identifies the host operating system and selects the
// package-manager backend for it.
//
// Resolution happens once per run and produces an immutable Profile that
// is threaded into every component needing package operations. The set
// of backends is closed: apt (ubuntu, debian, pop), dnf (fedora, centos,
// rhel), pacman (arch), brew (darwin) and pkg (termux). A profile
// without a working backend is unrepresentable.
package platform

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"bivouac/internal/logging"
)

// Kind classifies the resolved host environment.
type Kind int

const (
	KindLinux Kind = iota
	KindDarwin
	KindTermux
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindLinux:
		return "linux"
	case KindDarwin:
		return "darwin"
	case KindTermux:
		return "termux"
	default:
		return "unknown"
	}
}

// Profile describes the resolved host: its kind, the os-release distro
// identifier (Linux only) and the package-manager backend to use.
// Profiles are immutable; resolve once and pass the value around.
type Profile struct {
	Kind     Kind
	DistroID string
	Backend  Backend
}

// UnsupportedPlatformError reports a host this tool cannot provision.
type UnsupportedPlatformError struct {
	OS     string
	Distro string
	Reason string
}

func (e *UnsupportedPlatformError) Error() string {
	if e.Distro != "" {
		return fmt.Sprintf("unsupported platform: %s distribution %q (%s)", e.OS, e.Distro, e.Reason)
	}
	return fmt.Sprintf("unsupported platform: %s (%s)", e.OS, e.Reason)
}

// termuxMarker is the directory probed to detect a Termux userland,
// where os-release is absent and no privilege escalation exists.
const termuxMarker = "/data/data/com.termux/files/usr"

// Resolver detects the host platform. The zero defaults inspect the
// real system; tests override the probe fields.
type Resolver struct {
	runner        Runner
	goos          string
	osReleasePath string
	markerPath    string
	lookPath      func(string) (string, error)
}

// NewResolver returns a Resolver that inspects the live host and builds
// backends on top of the given command runner.
func NewResolver(runner Runner) *Resolver {
	return &Resolver{
		runner:        runner,
		goos:          runtime.GOOS,
		osReleasePath: "/etc/os-release",
		markerPath:    termuxMarker,
		lookPath:      exec.LookPath,
	}
}

// Resolve identifies the host and returns its Profile. It fails with
// UnsupportedPlatformError for unrecognized Linux distributions, for
// operating systems other than Linux/Darwin/Termux, and for Darwin
// hosts without a Homebrew binary (this tool does not bootstrap brew).
func (r *Resolver) Resolve() (*Profile, error) {
	log := logging.GetLogger("platform")

	// Termux first: it reports GOOS=android or linux but has its own
	// userland package command and no sudo.
	if info, err := os.Stat(r.markerPath); err == nil && info.IsDir() {
		log.Debug().Str("marker", r.markerPath).Msg("Termux userland detected")
		return &Profile{Kind: KindTermux, Backend: newTermuxBackend(r.runner)}, nil
	}

	switch r.goos {
	case "linux":
		id, err := parseOSReleaseID(r.osReleasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", r.osReleasePath, err)
		}

		backend, err := backendForDistro(id, r.runner)
		if err != nil {
			return nil, err
		}

		log.Debug().Str("distro", id).Str("backend", backend.Name()).Msg("Linux distribution resolved")
		return &Profile{Kind: KindLinux, DistroID: id, Backend: backend}, nil

	case "darwin":
		if _, err := r.lookPath("brew"); err != nil {
			return nil, &UnsupportedPlatformError{
				OS:     "darwin",
				Reason: "Homebrew not found on PATH; install it from https://brew.sh first",
			}
		}
		return &Profile{Kind: KindDarwin, Backend: newBrewBackend(r.runner)}, nil

	default:
		return nil, &UnsupportedPlatformError{OS: r.goos, Reason: "only Linux, macOS and Termux are supported"}
	}
}

// backendForDistro maps an os-release ID onto one of the closed backend
// set, or fails for distributions outside the recognized families.
func backendForDistro(id string, runner Runner) (Backend, error) {
	switch id {
	case "ubuntu", "debian", "pop":
		return newAptBackend(runner), nil
	case "fedora", "centos", "rhel":
		return newDnfBackend(runner), nil
	case "arch":
		return newPacmanBackend(runner), nil
	default:
		return nil, &UnsupportedPlatformError{
			OS:     "linux",
			Distro: id,
			Reason: "not in the recognized distribution set",
		}
	}
}

// parseOSReleaseID extracts the ID= field from an os-release file,
// stripping optional quotes.
func parseOSReleaseID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "ID=") {
			continue
		}
		id := strings.TrimPrefix(line, "ID=")
		id = strings.Trim(id, `"'`)
		return strings.ToLower(id), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	return "", fmt.Errorf("no ID field in %s", path)
}
