package backup

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dakshina99/apimdbctl/internal/config"
)

// RestoreAll restores every target from the session in sessionDir,
// strictly one after the other. overrides maps a role to an explicitly
// supplied provider timestamp; an explicit value always wins over the
// manifest's. Confirmation has already happened by the time this runs.
func (o *Orchestrator) RestoreAll(ctx context.Context, targets []config.Target, sessionDir string, overrides map[string]string) error {
	manifest, err := ReadManifest(sessionDir)
	if err != nil {
		return err
	}
	if err := manifest.Validate(); err != nil {
		return err
	}
	session := manifest.session(sessionDir)

	for _, target := range targets {
		rec := session.Records[target.Role]
		timestamp := rec.Timestamp
		if explicit := overrides[target.Role]; explicit != "" {
			timestamp = explicit
		}
		if timestamp == "" {
			return fmt.Errorf("%w: no timestamp for %s", ErrManifestIncomplete, target.Role)
		}
		if err := o.restoreOne(ctx, target, sessionDir, rec, timestamp); err != nil {
			return err
		}
	}
	return nil
}

// restoreOne drives one database through
// uploading → restoring → rolling-forward → verifying → done.
//
// A restore interrupted mid-restoring leaves the database undefined and
// must be retried; the upload step re-checks for the image in-container so
// a retry effectively re-enters at restoring.
func (o *Orchestrator) restoreOne(ctx context.Context, target config.Target, sessionDir string, rec Record, timestamp string) error {
	start := time.Now()
	state := StateIdle
	enter := func(next State) {
		state = next
		o.log.Info("restore step", "database", target.Database, "state", string(next))
	}
	fail := func(err error) error {
		o.log.Error("restore failed",
			"database", target.Database,
			"failed_state", string(state),
			"error", err.Error(),
		)
		return err
	}

	enter(StateUploading)
	remoteName := strings.TrimSuffix(rec.Artifact, zstdSuffix)
	remotePath := path.Join(o.profile.BackupDir, remoteName)
	if err := o.uploadArtifact(ctx, target, sessionDir, rec.Artifact, remotePath); err != nil {
		return fail(err)
	}

	enter(StateRestoring)
	out, err := o.runtime.Exec(ctx, target.Container,
		o.provider.RestoreCommand(target, o.profile.BackupDir, timestamp))
	if err != nil {
		return fail(fmt.Errorf(
			"%w: %s taken at %s: %v: %s (database state is undefined, inspect the instance manually before retrying)",
			ErrRestoreFailed, target.Database, timestamp, err, tail(out)))
	}

	// Replay logs to the latest point. Best-effort: a failure here does
	// not downgrade a successful restore.
	enter(StateRollingForward)
	if out, err := o.runtime.Exec(ctx, target.Container, o.provider.RollforwardCommand(target)); err != nil {
		o.log.Warn("roll-forward failed",
			"database", target.Database,
			"error", err.Error(),
			"output", tail(out),
		)
	}

	enter(StateVerifying)
	if o.verifier != nil {
		if err := o.verifier.Ping(ctx, target); err != nil {
			o.log.Warn("post-restore probe failed (advisory)",
				"database", target.Database,
				"error", err.Error(),
			)
		}
	}

	enter(StateDone)
	o.log.Info("restore done",
		"database", target.Database,
		"timestamp", timestamp,
		"duration", time.Since(start).String(),
	)
	return nil
}

// uploadArtifact puts the session's image back inside the instance. When
// the image is already present (a retried restore) the copy is skipped;
// compressed artifacts are decompressed locally first and the scratch
// copy removed after upload.
func (o *Orchestrator) uploadArtifact(ctx context.Context, target config.Target, sessionDir, artifact, remotePath string) error {
	if _, err := o.runtime.Exec(ctx, target.Container, []string{"test", "-f", remotePath}); err == nil {
		o.log.Info("artifact already in instance, skipping upload",
			"database", target.Database, "path", remotePath)
		return nil
	}

	local := filepath.Join(sessionDir, artifact)
	if _, err := os.Stat(local); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArtifactNotFound, local, err)
	}

	if IsCompressed(artifact) {
		decompressed, err := DecompressZstd(local)
		if err != nil {
			return err
		}
		defer os.Remove(decompressed)
		local = decompressed
	}

	return o.runtime.CopyTo(ctx, local, target.Container, remotePath)
}
