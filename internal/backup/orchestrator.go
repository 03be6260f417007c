package backup

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dakshina99/apimdbctl/internal/config"
	"github.com/dakshina99/apimdbctl/internal/docker"
	"github.com/dakshina99/apimdbctl/internal/logger"
)

// Verifier issues the post-restore connectivity probe. Verification is
// advisory: a negative result is logged, never fatal.
type Verifier interface {
	Ping(ctx context.Context, target config.Target) error
}

// Orchestrator runs the per-database backup and restore state machines.
// The two logical databases are processed strictly one after the other:
// both share the same remote command-execution path and interleaving
// risks cross-talk between engine sessions.
type Orchestrator struct {
	runtime  docker.Runtime
	provider Provider
	profile  config.EngineProfile
	verifier Verifier
	compress bool
	log      logger.Logger
}

type Option func(*Orchestrator)

// WithCompression toggles zstd compression of transferred artifacts.
func WithCompression(enabled bool) Option {
	return func(o *Orchestrator) { o.compress = enabled }
}

// WithVerifier installs the post-restore probe.
func WithVerifier(v Verifier) Option {
	return func(o *Orchestrator) { o.verifier = v }
}

func New(runtime docker.Runtime, profile config.EngineProfile, log logger.Logger, opts ...Option) (*Orchestrator, error) {
	provider, err := ProviderFor(profile)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		runtime:  runtime,
		provider: provider,
		profile:  profile,
		log:      log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// BackupAll backs up every target in order and writes the session manifest
// once all succeed. A session is all-or-nothing: any failure discards it,
// including records that already succeeded.
func (o *Orchestrator) BackupAll(ctx context.Context, targets []config.Target, root string) (*Session, error) {
	session, err := NewSession(root)
	if err != nil {
		return nil, err
	}
	o.log.Info("backup session started", "session", session.ID, "dir", session.Dir)

	for _, target := range targets {
		rec, err := o.backupOne(ctx, target, session.Dir)
		if err != nil {
			if derr := session.Discard(); derr != nil {
				o.log.Warn("could not discard partial session", "session", session.ID, "error", derr.Error())
			}
			return nil, err
		}
		session.record(target.Role, rec)
	}

	if err := session.WriteManifest(); err != nil {
		if derr := session.Discard(); derr != nil {
			o.log.Warn("could not discard partial session", "session", session.ID, "error", derr.Error())
		}
		return nil, err
	}
	o.log.Info("backup session durable", "session", session.ID)
	return session, nil
}

// backupOne drives one database through
// preparing → backing-up → extracted → transferred → done.
func (o *Orchestrator) backupOne(ctx context.Context, target config.Target, sessionDir string) (Record, error) {
	start := time.Now()
	state := StateIdle
	enter := func(next State) {
		state = next
		o.log.Info("backup step", "database", target.Database, "state", string(next))
	}
	fail := func(err error) (Record, error) {
		o.log.Error("backup failed",
			"database", target.Database,
			"failed_state", string(state),
			"error", err.Error(),
		)
		return Record{}, err
	}

	// Force-disconnect sessions and complete pending recovery. Best-effort:
	// the backup command below fails loudly if the database is unusable.
	enter(StatePreparing)
	for _, argv := range o.provider.PrepareCommands(target) {
		if out, err := o.runtime.Exec(ctx, target.Container, argv); err != nil {
			o.log.Warn("prepare step failed",
				"database", target.Database,
				"error", err.Error(),
				"output", tail(out),
			)
		}
	}

	enter(StateBackingUp)
	out, err := o.runtime.Exec(ctx, target.Container, o.provider.BackupCommand(target, o.profile.BackupDir))
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %v: %s", ErrBackupFailed, target.Database, err, tail(out)))
	}

	timestamp, err := o.provider.ParseTimestamp(out)
	if err != nil {
		return fail(fmt.Errorf("%s: %w", target.Database, err))
	}
	enter(StateExtracted)
	o.log.Info("backup timestamp extracted", "database", target.Database, "timestamp", timestamp)

	name, err := o.latestArtifact(ctx, target)
	if err != nil {
		return fail(err)
	}
	local := filepath.Join(sessionDir, name)
	if err := o.runtime.CopyFrom(ctx, target.Container, path.Join(o.profile.BackupDir, name), local); err != nil {
		return fail(fmt.Errorf("%w: %s: %v", ErrArtifactNotFound, name, err))
	}
	if o.compress {
		if local, err = CompressZstd(local); err != nil {
			return fail(err)
		}
	}
	enter(StateTransferred)

	enter(StateDone)
	o.log.Info("backup done",
		"database", target.Database,
		"artifact", filepath.Base(local),
		"duration", time.Since(start).String(),
	)
	return Record{
		Database:  target.Database,
		Artifact:  filepath.Base(local),
		Timestamp: timestamp,
		CreatedAt: time.Now(),
	}, nil
}

// latestArtifact returns the most recently created backup image for the
// target inside the instance.
func (o *Orchestrator) latestArtifact(ctx context.Context, target config.Target) (string, error) {
	out, err := o.runtime.Exec(ctx, target.Container,
		[]string{"sh", "-c", "ls -1t " + o.profile.BackupDir})
	if err != nil {
		return "", fmt.Errorf("%w: list %s: %v", ErrArtifactNotFound, o.profile.BackupDir, err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if o.provider.MatchArtifact(target, name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: no image for %s in %s", ErrArtifactNotFound, target.Database, o.profile.BackupDir)
}

// tail keeps the end of a command's output for error messages.
func tail(out []byte) string {
	const max = 400
	s := strings.TrimSpace(string(out))
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
