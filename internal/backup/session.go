package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dakshina99/apimdbctl/internal/config"
)

// sessionIDFormat derives the session id from wall-clock time at backup
// start; the id doubles as the session directory name.
const sessionIDFormat = "20060102-150405"

// Record is one database's backup within a session. Timestamp is the
// provider-issued identifier, stored exactly as emitted: restore
// correctness depends on byte-for-byte reuse.
type Record struct {
	Database  string
	Artifact  string
	Timestamp string
	CreatedAt time.Time
}

// Session is one backup invocation covering both logical databases.
// Records are keyed by role (primary, shared). A session becomes durable
// only once its manifest is written; it is never auto-deleted.
type Session struct {
	ID      string
	Dir     string
	Records map[string]Record
}

// NewSession creates the session directory under root. An existing
// directory with the same id fails the run rather than being reused:
// overwriting risks record loss.
func NewSession(root string) (*Session, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create backup root %q: %w", root, err)
	}
	id := time.Now().Format(sessionIDFormat)
	dir := filepath.Join(root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionExists, dir)
		}
		return nil, fmt.Errorf("create session dir %q: %w", dir, err)
	}
	return &Session{ID: id, Dir: dir, Records: make(map[string]Record)}, nil
}

// OpenSession loads a durable session back from its directory by reading
// the manifest.
func OpenSession(dir string) (*Session, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	return manifest.session(dir), nil
}

// Discard removes a session that never became durable. Called on the
// all-or-nothing failure path before the manifest exists.
func (s *Session) Discard() error {
	return os.RemoveAll(s.Dir)
}

// record stores one database's result under its role.
func (s *Session) record(role string, rec Record) {
	s.Records[role] = rec
}

// Complete reports whether both logical databases have a record.
func (s *Session) Complete() bool {
	_, p := s.Records[config.RolePrimary]
	_, sh := s.Records[config.RoleShared]
	return p && sh
}
