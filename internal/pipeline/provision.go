package pipeline

import (
	"context"
	"fmt"

	"github.com/dakshina99/apimdbctl/internal/config"
	"github.com/dakshina99/apimdbctl/internal/deployment"
	"github.com/dakshina99/apimdbctl/internal/templates"
)

// Provision runs the provisioning pipeline: dependency check → config
// section mutation → container start → readiness wait for every target →
// best-effort schema application. Any fatal failure after the mutation
// rolls it back exactly once and aborts; on success the mutation stays
// applied and connection details are reported.
func (c *Coordinator) Provision(ctx context.Context) error {
	for _, dep := range c.dependencies() {
		if err := c.checker.Ensure(ctx, dep.Tool, dep.Install); err != nil {
			return fmt.Errorf("dependency check: %w", err)
		}
	}

	targets, err := c.resolveTargets(ctx)
	if err != nil {
		return fmt.Errorf("resolve targets: %w", err)
	}

	sections, err := templates.DatabaseSections(c.cfg.Profile(), targets)
	if err != nil {
		return fmt.Errorf("render database sections: %w", err)
	}

	mutation, err := deployment.Apply(c.cfg.Deployment.ConfigPath, templates.SectionKeys(), sections)
	if err != nil {
		if mutation != nil && mutation.Applied() {
			// Partial write: the file is inconsistent, restore it now.
			c.rollback(mutation)
		}
		return fmt.Errorf("config mutation: %w", err)
	}
	c.log.Info("database sections applied", "config", c.cfg.Deployment.ConfigPath)

	rolledBack := false
	fatal := func(step string, err error) error {
		if !rolledBack {
			rolledBack = true
			c.rollback(mutation)
		}
		return fmt.Errorf("%s: %w", step, err)
	}

	if err := c.runtime.ComposeUp(ctx); err != nil {
		return fatal("container start", err)
	}

	// Every target is polled independently; Ready on one never implies
	// readiness of the other. Fail fast on the first timeout.
	for _, target := range targets {
		if err := c.poller.WaitReady(ctx, target, c.maxAttempts()); err != nil {
			return fatal("readiness wait", err)
		}
	}

	for _, target := range targets {
		result := c.applySchema(ctx, target)
		if result.Failed() {
			c.log.Warn("schema application failed, continuing",
				"database", target.Database,
				"error", result.Err.Error(),
			)
		}
	}

	c.report(targets)
	c.log.Info("provisioning complete")
	return nil
}

// dependencies returns the configured tool list, defaulting to the
// container runtime binary.
func (c *Coordinator) dependencies() []config.Dependency {
	if len(c.cfg.Depends) > 0 {
		return c.cfg.Depends
	}
	return []config.Dependency{{Tool: "docker"}}
}

// applySchema runs the engine's schema script for one target. Best-effort:
// a failure is reported as NonFatal, never as an abort.
func (c *Coordinator) applySchema(ctx context.Context, target config.Target) StepResult {
	script := c.cfg.Profile().SchemaScript
	if script == "" {
		return okStep("schema apply")
	}
	if err := c.sql.RunScript(ctx, target, script); err != nil {
		return nonFatalStep("schema apply", fmt.Errorf("%w: %v", ErrSchemaApplyFailed, err))
	}
	c.log.Info("schema applied", "database", target.Database, "script", script)
	return okStep("schema apply")
}

// rollback restores the pre-mutation config and reports whether it
// succeeded, as part of the fatal-error contract.
func (c *Coordinator) rollback(m *deployment.Mutation) {
	if err := m.Rollback(); err != nil {
		c.log.Error("config rollback FAILED, file left inconsistent",
			"config", m.Path,
			"error", err.Error(),
		)
		return
	}
	c.log.Info("config rollback succeeded", "config", m.Path)
}

// report prints the connection details of the provisioned databases.
func (c *Coordinator) report(targets []config.Target) {
	fmt.Fprintln(c.stdout, "provisioned databases:")
	for _, target := range targets {
		url, err := templates.ServiceURL(c.cfg.Profile(), target)
		if err != nil {
			url = "(unrenderable url: " + err.Error() + ")"
		}
		fmt.Fprintf(c.stdout, "  %-8s %s  user=%s container=%s\n",
			target.Role, url, target.Username, target.Container)
	}
}
