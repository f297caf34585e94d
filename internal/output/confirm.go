package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Confirmer answers a yes/no question posed at a checkpoint. Components
// that need operator approval take one of these instead of reading a
// global flag, so non-interactive runs just swap in AutoApprove.
type Confirmer func(prompt string) bool

// Terminal returns a Confirmer that prompts on stdout and reads a y/N
// answer from stdin. Anything other than "y"/"yes" is a decline, as is
// a read error (e.g. closed stdin).
func Terminal() Confirmer {
	return TerminalOn(os.Stdin, os.Stdout)
}

// TerminalOn is Terminal with an explicit reader/writer pair, used by tests.
func TerminalOn(in io.Reader, out io.Writer) Confirmer {
	reader := bufio.NewReader(in)
	return func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)

		response, err := reader.ReadString('\n')
		if err != nil {
			return false
		}

		response = strings.TrimSpace(strings.ToLower(response))
		return response == "y" || response == "yes"
	}
}

// AutoApprove returns a Confirmer that approves every checkpoint without
// prompting. Selected by the --force flag.
func AutoApprove() Confirmer {
	return func(string) bool { return true }
}
