// Package sqlcli runs queries and scripts against a service instance with
// the engine's own client, executed inside the container.
package sqlcli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dakshina99/apimdbctl/internal/config"
	"github.com/dakshina99/apimdbctl/internal/docker"
	"github.com/dakshina99/apimdbctl/internal/logger"
)

// ErrUnsupportedEngine indicates the active profile names an engine this
// client has no command builder for.
var ErrUnsupportedEngine = errors.New("unsupported engine")

// Client is the SQL-execution collaborator: it can run a query or a script
// against a running service instance and report exit status. Output content
// is the caller's business only for logging.
type Client struct {
	runtime docker.Runtime
	profile config.EngineProfile
	log     logger.Logger
}

func New(runtime docker.Runtime, profile config.EngineProfile, log logger.Logger) *Client {
	return &Client{runtime: runtime, profile: profile, log: log}
}

// Ping issues the profile's validation query against the target. Only the
// exit status matters; output is discarded.
func (c *Client) Ping(ctx context.Context, target config.Target) error {
	argv, err := c.queryArgv(target, c.profile.ValidationQuery)
	if err != nil {
		return err
	}
	if _, err := c.runtime.Exec(ctx, target.Container, argv); err != nil {
		return err
	}
	return nil
}

// RunScript executes a SQL script that already exists inside the container.
func (c *Client) RunScript(ctx context.Context, target config.Target, script string) error {
	argv, err := c.scriptArgv(target, script)
	if err != nil {
		return err
	}
	out, err := c.runtime.Exec(ctx, target.Container, argv)
	if err != nil {
		return fmt.Errorf("script %s on %s: %w", script, target.Database, err)
	}
	c.log.Debug("script applied", "database", target.Database, "script", script, "bytes", len(out))
	return nil
}

func (c *Client) queryArgv(target config.Target, query string) ([]string, error) {
	switch c.profile.Type {
	case "db2":
		shell := fmt.Sprintf("db2 connect to %s > /dev/null && db2 %q", target.Database, query)
		return []string{"su", "-", c.instanceUser(target), "-c", shell}, nil
	case "mysql":
		return []string{
			"mysql",
			"-h", "127.0.0.1",
			"-u", target.Username,
			"-p" + target.Password,
			target.Database,
			"-e", query,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEngine, c.profile.Type)
	}
}

func (c *Client) scriptArgv(target config.Target, script string) ([]string, error) {
	switch c.profile.Type {
	case "db2":
		shell := fmt.Sprintf("db2 connect to %s > /dev/null && db2 -tvf %s", target.Database, script)
		return []string{"su", "-", c.instanceUser(target), "-c", shell}, nil
	case "mysql":
		shell := fmt.Sprintf("mysql -h 127.0.0.1 -u %s -p%s %s < %s",
			target.Username, target.Password, target.Database, script)
		return []string{"sh", "-c", shell}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEngine, c.profile.Type)
	}
}

// instanceUser is the OS account the engine client runs under inside the
// container. Falls back to the target's admin username.
func (c *Client) instanceUser(target config.Target) string {
	if c.profile.InstanceUser != "" {
		return c.profile.InstanceUser
	}
	return target.Username
}
