package backup

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/dakshina99/apimdbctl/internal/config"
)

// ManifestFilename is the per-session manifest file name.
const ManifestFilename = "manifest.txt"

// manifestTimeFormat is the wall-clock format of created_at.
const manifestTimeFormat = time.RFC3339

// Manifest is the durable, human-readable record of one session: stable
// `key = value` lines a plain line-oriented scan can read back. The two
// provider timestamps appear exactly as extracted from the backup output.
type Manifest struct {
	SessionID string `mapstructure:"session_id"`
	CreatedAt string `mapstructure:"created_at"`

	PrimaryDatabase  string `mapstructure:"primary_database"`
	PrimaryTimestamp string `mapstructure:"primary_timestamp"`
	PrimaryArtifact  string `mapstructure:"primary_artifact"`

	SharedDatabase  string `mapstructure:"shared_database"`
	SharedTimestamp string `mapstructure:"shared_timestamp"`
	SharedArtifact  string `mapstructure:"shared_artifact"`
}

// WriteManifest renders the session to its manifest and writes it in a
// single atomic step (temp file + rename). The session is durable only
// once this returns nil.
func (s *Session) WriteManifest() error {
	primary, ok := s.Records[config.RolePrimary]
	if !ok {
		return fmt.Errorf("%w: no primary record", ErrManifestIncomplete)
	}
	shared, ok := s.Records[config.RoleShared]
	if !ok {
		return fmt.Errorf("%w: no shared record", ErrManifestIncomplete)
	}

	var buf bytes.Buffer
	write := func(key, value string) {
		fmt.Fprintf(&buf, "%s = %s\n", key, value)
	}
	write("session_id", s.ID)
	write("created_at", time.Now().Format(manifestTimeFormat))
	write("primary_database", primary.Database)
	write("primary_timestamp", primary.Timestamp)
	write("primary_artifact", primary.Artifact)
	write("shared_database", shared.Database)
	write("shared_timestamp", shared.Timestamp)
	write("shared_artifact", shared.Artifact)

	path := filepath.Join(s.Dir, ManifestFilename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit manifest: %w", err)
	}
	return nil
}

// ReadManifest scans the manifest in dir line by line into key/value
// pairs and decodes them.
func ReadManifest(dir string) (Manifest, error) {
	path := filepath.Join(dir, ManifestFilename)
	file, err := os.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("open manifest %q: %w", path, err)
	}
	defer file.Close()

	fields := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return Manifest{}, fmt.Errorf("scan manifest %q: %w", path, err)
	}

	var m Manifest
	if err := mapstructure.Decode(fields, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %q: %w", path, err)
	}
	return m, nil
}

// Validate checks the manifest can drive a restore of both databases.
func (m Manifest) Validate() error {
	if m.PrimaryTimestamp == "" || m.PrimaryArtifact == "" {
		return fmt.Errorf("%w: primary timestamp or artifact missing", ErrManifestIncomplete)
	}
	if m.SharedTimestamp == "" || m.SharedArtifact == "" {
		return fmt.Errorf("%w: shared timestamp or artifact missing", ErrManifestIncomplete)
	}
	return nil
}

// Timestamp returns the recorded provider timestamp for a role.
func (m Manifest) Timestamp(role string) string {
	if role == config.RolePrimary {
		return m.PrimaryTimestamp
	}
	return m.SharedTimestamp
}

// session rebuilds the in-memory session the manifest was written from.
func (m Manifest) session(dir string) *Session {
	created, _ := time.Parse(manifestTimeFormat, m.CreatedAt)
	return &Session{
		ID:  m.SessionID,
		Dir: dir,
		Records: map[string]Record{
			config.RolePrimary: {
				Database:  m.PrimaryDatabase,
				Artifact:  m.PrimaryArtifact,
				Timestamp: m.PrimaryTimestamp,
				CreatedAt: created,
			},
			config.RoleShared: {
				Database:  m.SharedDatabase,
				Artifact:  m.SharedArtifact,
				Timestamp: m.SharedTimestamp,
				CreatedAt: created,
			},
		},
	}
}
