package depcheck

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dakshina99/apimdbctl/internal/logger"
)

func stubLookPath(t *testing.T, present map[string]bool) {
	t.Helper()
	orig := lookPath
	lookPath = func(tool string) (string, error) {
		if present[tool] {
			return "/usr/bin/" + tool, nil
		}
		return "", errors.New("not found")
	}
	t.Cleanup(func() { lookPath = orig })
}

func stubInstall(t *testing.T, fn func(argv []string) error) *[][]string {
	t.Helper()
	var calls [][]string
	orig := runInstall
	runInstall = func(ctx context.Context, argv []string) error {
		calls = append(calls, argv)
		return fn(argv)
	}
	t.Cleanup(func() { runInstall = orig })
	return &calls
}

func TestEnsurePresentTool(t *testing.T) {
	stubLookPath(t, map[string]bool{"docker": true})
	calls := stubInstall(t, func([]string) error { return nil })

	require.NoError(t, New(logger.Nop()).Ensure(context.Background(), "docker", nil))
	require.Empty(t, *calls)
}

func TestEnsureMissingToolNoInstaller(t *testing.T) {
	stubLookPath(t, nil)
	err := New(logger.Nop()).Ensure(context.Background(), "docker", nil)
	require.ErrorIs(t, err, ErrDependencyMissing)
}

func TestEnsureInstallsThenRechecks(t *testing.T) {
	present := map[string]bool{}
	stubLookPath(t, present)
	calls := stubInstall(t, func([]string) error {
		present["docker"] = true
		return nil
	})

	err := New(logger.Nop()).Ensure(context.Background(), "docker", []string{"apt-get", "install", "-y", "docker.io"})
	require.NoError(t, err)
	require.Len(t, *calls, 1)
}

func TestEnsureInstallDoesNotProduceTool(t *testing.T) {
	stubLookPath(t, nil)
	stubInstall(t, func([]string) error { return nil })

	err := New(logger.Nop()).Ensure(context.Background(), "docker", []string{"apt-get", "install", "-y", "docker.io"})
	require.ErrorIs(t, err, ErrDependencyMissing)
}
