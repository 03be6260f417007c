// Package depcheck guarantees the command-line tools a pipeline needs are
// present before the pipeline touches anything.
package depcheck

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/dakshina99/apimdbctl/internal/logger"
)

// ErrDependencyMissing indicates a required tool is absent and could not
// be installed. Fatal, raised pre-flight.
var ErrDependencyMissing = errors.New("required dependency missing")

// lookPath is swapped out by tests.
var lookPath = exec.LookPath

// runInstall is swapped out by tests.
var runInstall = func(ctx context.Context, argv []string) error {
	return exec.CommandContext(ctx, argv[0], argv[1:]...).Run()
}

// Checker resolves tool presence, optionally installing through a
// configured package-manager command.
type Checker struct {
	log logger.Logger
}

func New(log logger.Logger) *Checker {
	return &Checker{log: log}
}

// Ensure verifies tool is on PATH. When it is not and installArgs is
// non-empty, the install command runs once and presence is re-checked.
func (c *Checker) Ensure(ctx context.Context, tool string, installArgs []string) error {
	if _, err := lookPath(tool); err == nil {
		c.log.Debug("dependency present", "tool", tool)
		return nil
	}
	if len(installArgs) == 0 {
		return fmt.Errorf("%w: %s not found on PATH", ErrDependencyMissing, tool)
	}

	c.log.Info("installing missing dependency", "tool", tool)
	if err := runInstall(ctx, installArgs); err != nil {
		return fmt.Errorf("%w: install of %s failed: %v", ErrDependencyMissing, tool, err)
	}
	if _, err := lookPath(tool); err != nil {
		return fmt.Errorf("%w: %s still absent after install", ErrDependencyMissing, tool)
	}
	return nil
}
