// Package docker reaches the container runtime the same way the rest of
// this tool reaches engine utilities: by driving the CLI as a collaborator
// process.
package docker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dakshina99/apimdbctl/internal/logger"
)

// ErrContainerNotRunning indicates a precondition failure: the named
// service instance is not up.
var ErrContainerNotRunning = errors.New("container is not running")

// Runtime is the container-runtime collaborator. Implementations start
// named service instances from a declarative spec and run single-shot
// commands inside them.
type Runtime interface {
	// ComposeUp starts every service instance in the compose spec and
	// returns once the runtime reports them created.
	ComposeUp(ctx context.Context) error
	// IsRunning reports whether the named container is currently up.
	IsRunning(ctx context.Context, container string) (bool, error)
	// Exec runs argv inside the container and returns its combined output.
	// The output is returned even when the command exits non-zero.
	Exec(ctx context.Context, container string, argv []string) ([]byte, error)
	// CopyFrom copies a path out of the container to the local filesystem.
	CopyFrom(ctx context.Context, container, src, dst string) error
	// CopyTo copies a local path into the container.
	CopyTo(ctx context.Context, src, container, dst string) error
}

// runFunc executes one collaborator command and returns combined output.
// Swapped out by tests.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// CLI is the docker-CLI-backed Runtime.
type CLI struct {
	ComposeFile string
	Project     string
	Logger      logger.Logger

	run runFunc
}

var _ Runtime = (*CLI)(nil)

// NewCLI returns a Runtime driving the local docker binary.
func NewCLI(composeFile, project string, log logger.Logger) *CLI {
	return &CLI{
		ComposeFile: composeFile,
		Project:     project,
		Logger:      log,
		run:         runCombined,
	}
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (c *CLI) ComposeUp(ctx context.Context) error {
	args := []string{"compose", "-f", c.ComposeFile}
	if c.Project != "" {
		args = append(args, "-p", c.Project)
	}
	args = append(args, "up", "-d")

	c.Logger.Info("starting service instances", "compose_file", c.ComposeFile)
	out, err := c.run(ctx, "docker", args...)
	if err != nil {
		return fmt.Errorf("compose up: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *CLI) IsRunning(ctx context.Context, container string) (bool, error) {
	out, err := c.run(ctx, "docker", "inspect", "-f", "{{.State.Running}}", container)
	if err != nil {
		// Inspect fails when the container does not exist at all.
		return false, nil
	}
	return strings.TrimSpace(string(out)) == "true", nil
}

func (c *CLI) Exec(ctx context.Context, container string, argv []string) ([]byte, error) {
	args := append([]string{"exec", container}, argv...)
	out, err := c.run(ctx, "docker", args...)
	if err != nil {
		return out, fmt.Errorf("exec in %s: %w", container, err)
	}
	return out, nil
}

func (c *CLI) CopyFrom(ctx context.Context, container, src, dst string) error {
	out, err := c.run(ctx, "docker", "cp", container+":"+src, dst)
	if err != nil {
		return fmt.Errorf("copy %s:%s: %w: %s", container, src, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *CLI) CopyTo(ctx context.Context, src, container, dst string) error {
	out, err := c.run(ctx, "docker", "cp", src, container+":"+dst)
	if err != nil {
		return fmt.Errorf("copy to %s:%s: %w: %s", container, dst, err, strings.TrimSpace(string(out)))
	}
	return nil
}
