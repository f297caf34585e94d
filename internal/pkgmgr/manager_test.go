package pkgmgr

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"bivouac/internal/ledger"
	"bivouac/internal/output"
)

// fakeBackend scripts installed-state and records install/uninstall order.
type fakeBackend struct {
	installed  map[string]bool
	installs   []string
	uninstalls []string
	failOn     map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		installed: make(map[string]bool),
		failOn:    make(map[string]error),
	}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Install(pkg string) error {
	if err := b.failOn[pkg]; err != nil {
		return err
	}
	b.installs = append(b.installs, pkg)
	b.installed[pkg] = true
	return nil
}

func (b *fakeBackend) Installed(pkg string) bool { return b.installed[pkg] }

func (b *fakeBackend) Uninstall(pkg string) error {
	if err := b.failOn[pkg]; err != nil {
		return err
	}
	b.uninstalls = append(b.uninstalls, pkg)
	b.installed[pkg] = false
	return nil
}

func newTestManager(t *testing.T, backend *fakeBackend) (*Manager, *ledger.Store) {
	t.Helper()

	st, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	m := New(backend, st, output.AutoApprove())
	m.SetOutput(&bytes.Buffer{})
	return m, st
}

func TestInstallRecordsLedger(t *testing.T) {
	backend := newFakeBackend()
	m, st := newTestManager(t, backend)

	if err := m.Install("core", []string{"git", "tmux"}); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	values, err := st.All(ledger.LogPackages)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(values) != 2 || values[0] != "git" || values[1] != "tmux" {
		t.Errorf("unexpected ledger contents: %v", values)
	}
}

func TestInstallShowsProgress(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newTestManager(t, backend)

	var out bytes.Buffer
	m.SetOutput(&out)

	if err := m.Install("core", []string{"git", "tmux"}); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	// Non-TTY writers get the single completed-bar line.
	if !strings.Contains(out.String(), "100% Installing core packages") {
		t.Errorf("expected a completed progress line, got:\n%s", out.String())
	}
}

func TestInstallIdempotent(t *testing.T) {
	backend := newFakeBackend()
	backend.installed["git"] = true // pre-existing, not ours
	m, st := newTestManager(t, backend)

	if err := m.Install("core", []string{"git"}); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	// No command invocation, no ledger write.
	if len(backend.installs) != 0 {
		t.Errorf("expected no install invocations, got %v", backend.installs)
	}
	n, err := st.Len(ledger.LogPackages)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected empty ledger, got %d entries", n)
	}
}

func TestInstallDeclineIsFatal(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newTestManager(t, backend)
	m.confirm = func(string) bool { return false }

	err := m.Install("core", []string{"git"})
	if err == nil {
		t.Fatal("declined install should abort the run")
	}
	if len(backend.installs) != 0 {
		t.Errorf("nothing should have been installed, got %v", backend.installs)
	}
}

func TestInstallCommandFailureIsFatal(t *testing.T) {
	backend := newFakeBackend()
	backend.failOn["broken"] = errors.New("exit status 100")
	m, st := newTestManager(t, backend)

	err := m.Install("core", []string{"broken", "git"})
	if err == nil {
		t.Fatal("install command failure should be fatal")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error should name the package: %v", err)
	}

	// The failed package must not be recorded, and the run stopped
	// before reaching the next one.
	n, _ := st.Len(ledger.LogPackages)
	if n != 0 {
		t.Errorf("expected empty ledger after failure, got %d entries", n)
	}
	if len(backend.installs) != 0 {
		t.Errorf("no install should have succeeded, got %v", backend.installs)
	}
}

func TestUninstallReverseOrder(t *testing.T) {
	backend := newFakeBackend()
	m, st := newTestManager(t, backend)

	for _, pkg := range []string{"a", "b", "c"} {
		if err := st.Append(ledger.LogPackages, pkg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		backend.installed[pkg] = true
	}

	if err := m.UninstallAll(); err != nil {
		t.Fatalf("UninstallAll failed: %v", err)
	}

	want := []string{"c", "b", "a"}
	if len(backend.uninstalls) != len(want) {
		t.Fatalf("expected %d uninstalls, got %v", len(want), backend.uninstalls)
	}
	for i, pkg := range want {
		if backend.uninstalls[i] != pkg {
			t.Errorf("uninstall %d: expected %s, got %s", i, pkg, backend.uninstalls[i])
		}
	}

	n, _ := st.Len(ledger.LogPackages)
	if n != 0 {
		t.Errorf("ledger should be empty after full uninstall, got %d entries", n)
	}
}

func TestUninstallSkipsMissingAndContinuesOnFailure(t *testing.T) {
	backend := newFakeBackend()
	m, st := newTestManager(t, backend)

	for _, pkg := range []string{"a", "b", "c"} {
		if err := st.Append(ledger.LogPackages, pkg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	backend.installed["a"] = true
	backend.installed["c"] = true
	// b removed manually; c's uninstall command fails.
	backend.failOn["c"] = errors.New("exit status 1")

	if err := m.UninstallAll(); err != nil {
		t.Fatalf("UninstallAll should be best-effort, got: %v", err)
	}

	// Only a's uninstall ran; b was skipped silently, c warned.
	if len(backend.uninstalls) != 1 || backend.uninstalls[0] != "a" {
		t.Errorf("expected only a uninstalled, got %v", backend.uninstalls)
	}

	// a and b entries dropped; c stays (still installed, not reversed).
	values, _ := st.All(ledger.LogPackages)
	if len(values) != 1 || values[0] != "c" {
		t.Errorf("expected only c left in ledger, got %v", values)
	}
}

func TestUninstallBlanketDecline(t *testing.T) {
	backend := newFakeBackend()
	m, st := newTestManager(t, backend)
	m.confirm = func(string) bool { return false }

	if err := st.Append(ledger.LogPackages, "a"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	backend.installed["a"] = true

	if err := m.UninstallAll(); err != nil {
		t.Fatalf("declined uninstall should be a benign skip, got: %v", err)
	}
	if len(backend.uninstalls) != 0 {
		t.Errorf("nothing should have been uninstalled, got %v", backend.uninstalls)
	}
}

func TestUninstallEmptyLedgerIsNoop(t *testing.T) {
	backend := newFakeBackend()
	m, _ := newTestManager(t, backend)

	confirmed := false
	m.confirm = func(string) bool { confirmed = true; return true }

	if err := m.UninstallAll(); err != nil {
		t.Fatalf("UninstallAll failed: %v", err)
	}
	if confirmed {
		t.Error("no confirmation should be requested when nothing is tracked")
	}
}
