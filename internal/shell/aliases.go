// Package shell writes and removes the marker-delimited alias block in
// the user's shell configuration file.
package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Block markers. Removal cuts exactly what lies between them, so the
// rest of the rc file is never touched.
const (
	markerBegin = "# >>> bivouac aliases >>>"
	markerEnd   = "# <<< bivouac aliases <<<"
)

// rcFile picks the config file for the user's shell.
func rcFile(home string) string {
	shellName := filepath.Base(os.Getenv("SHELL"))

	switch shellName {
	case "zsh":
		return filepath.Join(home, ".zshrc")
	case "bash":
		return filepath.Join(home, ".bashrc")
	default:
		return filepath.Join(home, ".profile")
	}
}

// EnsureAliasBlock appends the alias block to the shell config file,
// giving the bare-repo alias for managing dotfiles after setup.
// Returns (added=false) when the block is already present.
func EnsureAliasBlock(home, repoDir string) (added bool, configFile string, err error) {
	configFile = rcFile(home)

	existing, readErr := os.ReadFile(configFile)
	if readErr == nil && strings.Contains(string(existing), markerBegin) {
		return false, configFile, nil
	}

	block := fmt.Sprintf("\n%s\nalias dot='git --git-dir=%s --work-tree=%s'\n%s\n",
		markerBegin, repoDir, home, markerEnd)

	f, err := os.OpenFile(configFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return false, configFile, fmt.Errorf("cannot open config file %s: %w", configFile, err)
	}
	defer f.Close()

	if _, err := fmt.Fprint(f, block); err != nil {
		return false, configFile, fmt.Errorf("cannot write to config file %s: %w", configFile, err)
	}

	return true, configFile, nil
}

// RemoveAliasBlock deletes the alias block (markers included) from the
// shell config file. A missing file or missing block is a no-op.
func RemoveAliasBlock(home string) (removed bool, configFile string, err error) {
	configFile = rcFile(home)

	data, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, configFile, nil
		}
		return false, configFile, fmt.Errorf("cannot read config file %s: %w", configFile, err)
	}

	content := string(data)
	begin := strings.Index(content, markerBegin)
	if begin < 0 {
		return false, configFile, nil
	}
	// Search for the end marker after the begin marker, so a stray end
	// marker earlier in the file cannot produce an inverted range.
	end := strings.Index(content[begin:], markerEnd)
	if end < 0 {
		return false, configFile, fmt.Errorf("config file %s has an unterminated alias block", configFile)
	}
	end += begin + len(markerEnd)

	// Swallow the blank line EnsureAliasBlock wrote before the block and
	// the trailing newline after it.
	if begin > 0 && content[begin-1] == '\n' {
		begin--
	}
	if end < len(content) && content[end] == '\n' {
		end++
	}

	updated := content[:begin] + content[end:]
	if err := os.WriteFile(configFile, []byte(updated), 0644); err != nil {
		return false, configFile, fmt.Errorf("cannot write config file %s: %w", configFile, err)
	}

	return true, configFile, nil
}
