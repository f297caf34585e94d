package dotfiles

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bivouac/internal/backup"
	"bivouac/internal/ledger"
	"bivouac/internal/output"
)

// fakeGit scripts git invocations keyed by subcommand and records them.
type fakeGit struct {
	calls   [][]string
	lsTree  string
	pullOut string
	pullErr error
	failOn  map[string]error // keyed by subcommand (clone, checkout, ...)
}

func (f *fakeGit) run(args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)

	sub := subcommand(args)
	if err := f.failOn[sub]; err != nil {
		return []byte("simulated failure"), err
	}

	switch sub {
	case "ls-tree":
		return []byte(f.lsTree), nil
	case "pull":
		return []byte(f.pullOut), f.pullErr
	default:
		return nil, nil
	}
}

// subcommand skips --git-dir/--work-tree option pairs to find the verb.
func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--git-dir", "--work-tree":
			i++
		default:
			return args[i]
		}
	}
	return ""
}

func (f *fakeGit) invoked(sub string) bool {
	for _, call := range f.calls {
		if subcommand(call) == sub {
			return true
		}
	}
	return false
}

type testEnv struct {
	engine  *Engine
	git     *fakeGit
	ledger  *ledger.Store
	home    string
	repoDir string
}

func newTestEnv(t *testing.T, lsTree string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	home := filepath.Join(dir, "home")
	if err := os.MkdirAll(home, 0755); err != nil {
		t.Fatalf("Failed to create home: %v", err)
	}

	st, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	git := &fakeGit{lsTree: lsTree, failOn: make(map[string]error)}
	repoDir := filepath.Join(dir, "dotfiles.git")
	engine := New("git@example.com:u/dotfiles.git", repoDir, home, backup.New(filepath.Join(dir, "backups")), st, output.AutoApprove())
	engine.git = git.run

	return &testEnv{engine: engine, git: git, ledger: st, home: home, repoDir: repoDir}
}

func TestExecGitReturnsOutput(t *testing.T) {
	if !GitAvailable() {
		t.Skip("git not on PATH")
	}
	out, err := execGit("version")
	if err != nil {
		t.Fatalf("git version failed: %v", err)
	}
	if !strings.Contains(string(out), "git version") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestFilterEntriesReservedNames(t *testing.T) {
	raw := strings.Join([]string{
		".bashrc",
		".gitignore",
		".mailmap",
		".DS_Store",
		"README.md",
		"LICENSE",
		".config/nvim/init.lua",
		".config/foo/README.md",
		".git/config",
		"",
		".vimrc",
	}, "\n")

	entries := filterEntries(raw)

	// Reserved names are excluded at the top level only: the nested
	// README.md is a deployed file and must stay enumerated, or takedown
	// could never back it up or remove it.
	want := []string{".bashrc", ".config/nvim/init.lua", ".config/foo/README.md", ".vimrc"}
	if len(entries) != len(want) {
		t.Fatalf("expected %v, got %v", want, entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], entries[i])
		}
	}
}

func TestDeployFreshHomeCreatesNoBackups(t *testing.T) {
	env := newTestEnv(t, ".bashrc\n.vimrc\n")

	res, err := env.engine.Deploy()
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if !env.git.invoked("clone") {
		t.Error("expected a bare clone for a missing repo dir")
	}
	if !env.git.invoked("checkout") {
		t.Error("expected overlay checkout")
	}
	if !res.Cloned {
		t.Error("result should report a fresh clone")
	}
	if res.BackedUp != 0 || res.Generation != nil {
		t.Errorf("no backups expected: backedUp=%d gen=%v", res.BackedUp, res.Generation)
	}

	// Backup-generations ledger unchanged (still empty).
	n, err := env.ledger.Len(ledger.LogGenerations)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 0 {
		t.Errorf("generations ledger should be empty, has %d entries", n)
	}
}

func TestDeployBacksUpCollidingFiles(t *testing.T) {
	env := newTestEnv(t, ".bashrc\n.vimrc\n")

	existing := filepath.Join(env.home, ".bashrc")
	if err := os.WriteFile(existing, []byte("pre-setup content"), 0644); err != nil {
		t.Fatalf("Failed to write .bashrc: %v", err)
	}

	res, err := env.engine.Deploy()
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if res.BackedUp != 1 {
		t.Fatalf("expected 1 backup, got %d", res.BackedUp)
	}
	if res.Generation == nil {
		t.Fatal("expected a generation for the displaced file")
	}

	// The colliding file moved into the generation, preserving content.
	data, err := os.ReadFile(res.Generation.Path(".bashrc"))
	if err != nil {
		t.Fatalf("Failed to read backed-up file: %v", err)
	}
	if string(data) != "pre-setup content" {
		t.Errorf("backup content mismatch: %q", data)
	}
	if _, err := os.Lstat(existing); !os.IsNotExist(err) {
		t.Error(".bashrc should have been moved out of home")
	}

	// Generation root appended to the ledger.
	last, ok, err := env.ledger.PeekLast(ledger.LogGenerations)
	if err != nil || !ok {
		t.Fatalf("PeekLast: ok=%v err=%v", ok, err)
	}
	if last != res.Generation.Root {
		t.Errorf("ledger entry %q does not match generation root %q", last, res.Generation.Root)
	}
}

func TestDeployDeclineAborts(t *testing.T) {
	env := newTestEnv(t, ".bashrc\n")
	env.engine.confirm = func(string) bool { return false }

	_, err := env.engine.Deploy()
	if err == nil {
		t.Fatal("declined checkout must abort the run")
	}
	if env.git.invoked("checkout") {
		t.Error("checkout must not run after a decline")
	}
}

func TestDeployCheckoutFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, ".bashrc\n")
	env.git.failOn["checkout"] = errors.New("exit status 1")

	_, err := env.engine.Deploy()
	if err == nil {
		t.Fatal("checkout failure must be fatal")
	}
	if !strings.Contains(err.Error(), "checkout") {
		t.Errorf("error should mention checkout: %v", err)
	}
}

func TestDeployPullsExistingRepo(t *testing.T) {
	env := newTestEnv(t, ".bashrc\n")

	// Simulate an existing bare clone.
	if err := os.MkdirAll(env.repoDir, 0755); err != nil {
		t.Fatalf("Failed to create repo dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(env.repoDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0644); err != nil {
		t.Fatalf("Failed to write HEAD: %v", err)
	}

	res, err := env.engine.Deploy()
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if env.git.invoked("clone") {
		t.Error("existing repo should pull, not clone")
	}
	if !env.git.invoked("pull") {
		t.Error("expected a pull for the existing repo")
	}
	if res.Cloned {
		t.Error("result should not report a clone")
	}
}

func TestDeployPullAlreadyUpToDate(t *testing.T) {
	env := newTestEnv(t, ".bashrc\n")

	if err := os.MkdirAll(env.repoDir, 0755); err != nil {
		t.Fatalf("Failed to create repo dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(env.repoDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0644); err != nil {
		t.Fatalf("Failed to write HEAD: %v", err)
	}

	// Non-zero pull whose output says up to date is still success.
	env.git.pullOut = "Already up to date.\n"
	env.git.pullErr = errors.New("exit status 1")

	if _, err := env.engine.Deploy(); err != nil {
		t.Fatalf("up-to-date pull should succeed: %v", err)
	}

	// Any other pull failure is fatal.
	env.git.pullOut = "fatal: unable to access remote\n"
	if _, err := env.engine.Deploy(); err == nil {
		t.Fatal("failed pull must be fatal")
	}
}

func TestRemoveTracked(t *testing.T) {
	env := newTestEnv(t, ".bashrc\n.vimrc\n.config/nvim/init.lua\n")

	for _, rel := range []string{".bashrc", ".config/nvim/init.lua"} {
		path := filepath.Join(env.home, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}

	removed, err := env.engine.RemoveTracked()
	if err != nil {
		t.Fatalf("RemoveTracked failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removals (missing .vimrc skipped), got %d", removed)
	}
	if _, err := os.Lstat(filepath.Join(env.home, ".bashrc")); !os.IsNotExist(err) {
		t.Error(".bashrc should be gone")
	}
}
