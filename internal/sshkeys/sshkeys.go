// Package sshkeys generates an SSH keypair and loads it into the agent
// before dotfile deployment. The whole step is best-effort: deployment
// may well clone over https, so callers log failures and carry on.
package sshkeys

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"bivouac/internal/logging"
	"bivouac/internal/platform"
)

// keyName is the generated key filename under ~/.ssh.
const keyName = "id_ed25519"

// Bootstrap ensures an ed25519 keypair exists under homeDir/.ssh and
// asks the agent to load it. Returns without action when a key already
// exists. An unavailable ssh-agent is only logged; the key on disk is
// the useful artifact.
func Bootstrap(runner platform.Runner, homeDir string) error {
	log := logging.GetLogger("sshkeys")

	keyPath := filepath.Join(homeDir, ".ssh", keyName)
	if _, err := os.Stat(keyPath); err == nil {
		log.Debug().Str("key", keyPath).Msg("SSH key already present")
		return addToAgent(runner, keyPath)
	}

	if _, err := exec.LookPath("ssh-keygen"); err != nil {
		return fmt.Errorf("ssh-keygen not found on PATH: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(keyPath), err)
	}

	hostname, _ := os.Hostname()
	output, err := runner.Run("ssh-keygen", "-t", "ed25519", "-N", "", "-f", keyPath, "-C", "bivouac@"+hostname)
	if err != nil {
		return fmt.Errorf("ssh-keygen failed: %w (output: %s)", err, string(output))
	}
	log.Info().Str("key", keyPath).Msg("Generated SSH keypair")

	return addToAgent(runner, keyPath)
}

func addToAgent(runner platform.Runner, keyPath string) error {
	if output, err := runner.Run("ssh-add", keyPath); err != nil {
		// No agent running is common and harmless.
		log := logging.GetLogger("sshkeys")
		log.Warn().Err(err).Str("output", string(output)).
			Msg("Could not add key to ssh-agent")
	}
	return nil
}
