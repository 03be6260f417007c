// Package pipeline sequences the provision and recover flows: dependency
// checks, config mutation, container start, readiness wait, schema
// application, and the backup orchestrator's restore, with rollback of
// the config mutation on any fatal provisioning failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dakshina99/apimdbctl/internal/config"
	"github.com/dakshina99/apimdbctl/internal/depcheck"
	"github.com/dakshina99/apimdbctl/internal/docker"
	"github.com/dakshina99/apimdbctl/internal/logger"
	"github.com/dakshina99/apimdbctl/internal/readiness"
	"github.com/dakshina99/apimdbctl/internal/sqlcli"
	"github.com/dakshina99/apimdbctl/internal/vault"
)

// ErrSchemaApplyFailed marks a failed schema script. Non-fatal: schema
// scripts are commonly optional and idempotent, so the pipeline warns and
// continues.
var ErrSchemaApplyFailed = errors.New("schema application failed")

const defaultMaxAttempts = 10

// Coordinator owns the ServiceTarget pair and the config mutation for the
// duration of one run. Strictly sequential; the only suspension points are
// the poller's sleeps and collaborator subprocess waits.
type Coordinator struct {
	cfg     *config.Config
	runtime docker.Runtime
	sql     *sqlcli.Client
	poller  *readiness.Poller
	checker *depcheck.Checker
	log     logger.Logger

	confirm ConfirmFunc
	stdout  io.Writer
}

type Option func(*Coordinator)

// WithConfirm replaces the interactive confirmation.
func WithConfirm(fn ConfirmFunc) Option {
	return func(c *Coordinator) { c.confirm = fn }
}

// WithOutput redirects operator-facing reports.
func WithOutput(w io.Writer) Option {
	return func(c *Coordinator) { c.stdout = w }
}

// WithPoller replaces the readiness poller (tests shorten its delays).
func WithPoller(p *readiness.Poller) Option {
	return func(c *Coordinator) { c.poller = p }
}

// New wires a coordinator around the given container runtime.
func New(cfg *config.Config, runtime docker.Runtime, log logger.Logger, opts ...Option) *Coordinator {
	sql := sqlcli.New(runtime, cfg.Profile(), log)
	c := &Coordinator{
		cfg:     cfg,
		runtime: runtime,
		sql:     sql,
		poller:  readiness.New(sql, log),
		checker: depcheck.New(log),
		log:     log,
		confirm: StdinConfirm(os.Stdin, os.Stdout),
		stdout:  os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) maxAttempts() int {
	if c.cfg.Readiness.MaxAttempts > 0 {
		return c.cfg.Readiness.MaxAttempts
	}
	return defaultMaxAttempts
}

// resolveTargets builds the immutable ServiceTarget pair, pulling admin
// credentials from Vault for instances that name a KV path.
func (c *Coordinator) resolveTargets(ctx context.Context) ([]config.Target, error) {
	targets := c.cfg.Targets()
	paths := map[string]string{
		config.RolePrimary: c.cfg.Primary.VaultPath,
		config.RoleShared:  c.cfg.Shared.VaultPath,
	}

	needVault := false
	for _, p := range paths {
		if p != "" {
			needVault = true
		}
	}
	if !needVault {
		return targets, nil
	}

	client, err := vault.NewClient(ctx,
		vault.WithAddress(c.cfg.Vault.Address),
		vault.WithToken(c.cfg.Vault.Token),
		vault.WithAppRole(c.cfg.Vault.RoleID, c.cfg.Vault.RoleName),
	)
	if err != nil {
		return nil, err
	}
	for i := range targets {
		path := paths[targets[i].Role]
		if path == "" {
			continue
		}
		creds, err := client.GetStaticCredentials(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("credentials for %s: %w", targets[i].Role, err)
		}
		targets[i].Username = creds.Username
		targets[i].Password = creds.Password
	}
	return targets, nil
}

// requireRunning checks the running-instance precondition for every target.
func (c *Coordinator) requireRunning(ctx context.Context, targets []config.Target) error {
	for _, target := range targets {
		running, err := c.runtime.IsRunning(ctx, target.Container)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", target.Container, err)
		}
		if !running {
			return fmt.Errorf("%w: %s", docker.ErrContainerNotRunning, target.Container)
		}
	}
	return nil
}
