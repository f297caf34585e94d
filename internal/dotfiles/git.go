package dotfiles

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"bivouac/internal/logging"
)

// gitFunc runs a git invocation and returns its combined output.
// Production uses execGit; tests inject a scripted function.
type gitFunc func(args ...string) ([]byte, error)

func execGit(args ...string) ([]byte, error) {
	log := logging.GetLogger("git")
	log.Debug().Strs("args", args).Msg("Running git")
	return exec.Command("git", args...).CombinedOutput()
}

// GitAvailable reports whether a git binary is on PATH. Deployment
// cannot start without one.
func GitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// isBareRepo reports whether dir already holds a bare clone, detected
// by the presence of its HEAD ref file.
func isBareRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "HEAD"))
	return err == nil
}

// reservedNames are top-level tracked entries that are repository
// plumbing or documentation, never dotfiles; they are excluded from
// enumeration.
var reservedNames = map[string]struct{}{
	".git":       {},
	".gitignore": {},
	".mailmap":   {},
	".DS_Store":  {},
	"README.md":  {},
	"LICENSE":    {},
}

// filterEntries drops blank lines and reserved entries from raw ls-tree
// output. Only top-level reserved names are excluded; a nested entry
// such as .config/foo/README.md is a real deployed file, and excluding
// it would leave it behind after checkout with no backup and no
// takedown removal. Anything under .git/ is excluded at any depth.
func filterEntries(raw string) []string {
	var entries []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".git/") {
			continue
		}
		if !strings.Contains(line, "/") {
			if _, ok := reservedNames[line]; ok {
				continue
			}
		}
		entries = append(entries, line)
	}
	return entries
}
