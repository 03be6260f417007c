package pipeline

import (
	"context"
	"fmt"

	"github.com/dakshina99/apimdbctl/internal/backup"
	"github.com/dakshina99/apimdbctl/internal/config"
)

// Backup runs a backup session over both running databases and returns
// the durable session.
func (c *Coordinator) Backup(ctx context.Context) (*backup.Session, error) {
	targets, err := c.resolveTargets(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.requireRunning(ctx, targets); err != nil {
		return nil, err
	}

	orch, err := c.orchestrator()
	if err != nil {
		return nil, err
	}
	session, err := orch.BackupAll(ctx, targets, c.cfg.Backup.Root)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(c.stdout, "backup session %s written to %s\n", session.ID, session.Dir)
	for _, role := range []string{config.RolePrimary, config.RoleShared} {
		rec := session.Records[role]
		fmt.Fprintf(c.stdout, "  %-8s %s  timestamp=%s  artifact=%s\n",
			role, rec.Database, rec.Timestamp, rec.Artifact)
	}
	return session, nil
}

// Recover restores both databases from a session. Explicit timestamps win
// over the manifest's. Declining the confirmation cancels the run without
// error and without touching either database.
func (c *Coordinator) Recover(ctx context.Context, sessionDir, primaryTimestamp, sharedTimestamp string) error {
	targets, err := c.resolveTargets(ctx)
	if err != nil {
		return err
	}
	if err := c.requireRunning(ctx, targets); err != nil {
		return err
	}

	manifest, err := backup.ReadManifest(sessionDir)
	if err != nil {
		return err
	}
	if err := manifest.Validate(); err != nil {
		return err
	}

	overrides := map[string]string{
		config.RolePrimary: primaryTimestamp,
		config.RoleShared:  sharedTimestamp,
	}
	effective := func(role string) string {
		if overrides[role] != "" {
			return overrides[role]
		}
		return manifest.Timestamp(role)
	}

	prompt := fmt.Sprintf(
		"Restore session %s: %s (taken at %s) and %s (taken at %s)?\n"+
			"This replaces both databases in place. [y/N]: ",
		manifest.SessionID,
		manifest.PrimaryDatabase, effective(config.RolePrimary),
		manifest.SharedDatabase, effective(config.RoleShared),
	)
	confirmed, err := c.confirm(prompt)
	if err != nil {
		return fmt.Errorf("confirmation: %w", err)
	}
	if !confirmed {
		c.log.Info("restore cancelled by operator", "session", manifest.SessionID)
		fmt.Fprintln(c.stdout, "restore cancelled")
		return nil
	}

	orch, err := c.orchestrator()
	if err != nil {
		return err
	}
	if err := orch.RestoreAll(ctx, targets, sessionDir, overrides); err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "restore of session %s complete\n", manifest.SessionID)
	for _, target := range targets {
		fmt.Fprintf(c.stdout, "  %-8s %s restored taken at %s\n",
			target.Role, target.Database, effective(target.Role))
	}
	return nil
}

func (c *Coordinator) orchestrator() (*backup.Orchestrator, error) {
	return backup.New(c.runtime, c.cfg.Profile(), c.log,
		backup.WithCompression(c.cfg.Backup.Compress),
		backup.WithVerifier(c.sql),
	)
}
