package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ConfirmFunc asks the operator a yes/no question. Declining is an
// explicit cancel, never an error.
type ConfirmFunc func(prompt string) (bool, error)

// StdinConfirm reads one line from in; only "y"/"yes" (any case) confirms.
// EOF counts as a decline so a closed stdin never green-lights a
// destructive restore.
func StdinConfirm(in io.Reader, out io.Writer) ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(prompt string) (bool, error) {
		fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, nil
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

// AlwaysConfirm skips the prompt, for --yes runs.
func AlwaysConfirm(string) (bool, error) {
	return true, nil
}
