// Package backup drives the engine's native backup and restore commands
// for each logical database, captures the provider-issued backup timestamp
// from command output, and persists a session manifest that a later
// restore replays.
package backup

import "errors"

var (
	// ErrBackupFailed indicates the engine's backup command exited non-zero.
	ErrBackupFailed = errors.New("backup command failed")
	// ErrTimestampNotFound indicates the backup output carried no
	// provider timestamp marker. A timestamp is never guessed.
	ErrTimestampNotFound = errors.New("backup timestamp not found in output")
	// ErrArtifactNotFound indicates no backup image was found inside the
	// instance after a reportedly successful backup.
	ErrArtifactNotFound = errors.New("backup artifact not found")
	// ErrRestoreFailed indicates the engine's restore command exited
	// non-zero. There is no automatic rollback: the pre-restore state
	// cannot be safely reconstructed, the operator must inspect manually.
	ErrRestoreFailed = errors.New("restore command failed")
	// ErrSessionExists indicates a session directory collision. The run
	// fails instead of overwriting, since overwriting risks record loss.
	ErrSessionExists = errors.New("backup session already exists")
	// ErrManifestIncomplete indicates a manifest missing a timestamp or
	// artifact needed to drive a restore.
	ErrManifestIncomplete = errors.New("session manifest incomplete")
)

// State names one step of the per-database machines. Backups walk
// idle → preparing → backing-up → extracted → transferred → done; restores
// walk idle → uploading → restoring → rolling-forward → verifying → done.
// Either machine may jump to failed from any step.
type State string

const (
	StateIdle           State = "idle"
	StatePreparing      State = "preparing"
	StateBackingUp      State = "backing-up"
	StateExtracted      State = "extracted"
	StateTransferred    State = "transferred"
	StateUploading      State = "uploading"
	StateRestoring      State = "restoring"
	StateRollingForward State = "rolling-forward"
	StateVerifying      State = "verifying"
	StateDone           State = "done"
	StateFailed         State = "failed"
)
