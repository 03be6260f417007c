package backup

import (
	"fmt"
	"strings"

	"github.com/dakshina99/apimdbctl/internal/config"
)

// Provider builds the engine-specific commands the orchestrator runs
// inside a service instance and parses the engine's human-readable backup
// output. Keeping the output scraping here means engines can be swapped
// without touching orchestration logic.
type Provider interface {
	// PrepareCommands are run before a backup, best-effort: they
	// force-disconnect existing sessions and complete pending recovery.
	// Failures are swallowed; the backup command itself is authoritative.
	PrepareCommands(target config.Target) [][]string
	// BackupCommand backs the database up into dir inside the instance.
	BackupCommand(target config.Target, dir string) []string
	// ParseTimestamp extracts the provider-issued backup timestamp from
	// the backup command's output, exactly as emitted. The token is not
	// format-validated: the engine is the authority on its own timestamp
	// grammar, and restore only ever replays it verbatim.
	ParseTimestamp(output []byte) (string, error)
	// MatchArtifact reports whether an entry in the backup directory is a
	// backup image of the target database.
	MatchArtifact(target config.Target, name string) bool
	// RestoreCommand restores the database from the image in dir taken at
	// the given timestamp, replacing the existing database in place.
	RestoreCommand(target config.Target, dir, timestamp string) []string
	// RollforwardCommand replays recovery logs to the latest point after a
	// restore, best-effort.
	RollforwardCommand(target config.Target) []string
}

// ProviderFor returns the Provider for the profile's engine.
func ProviderFor(profile config.EngineProfile) (Provider, error) {
	switch profile.Type {
	case "db2":
		return &db2Provider{instanceUser: profile.InstanceUser}, nil
	default:
		return nil, fmt.Errorf("no backup provider for engine %q", profile.Type)
	}
}

// db2TimestampMarker is the fixed phrase DB2 prints on a successful
// backup, e.g. "... timestamp for this backup image is : 20240101120000".
const db2TimestampMarker = "timestamp for this backup image is :"

type db2Provider struct {
	instanceUser string
}

var _ Provider = (*db2Provider)(nil)

func (p *db2Provider) su(target config.Target, shell string) []string {
	user := p.instanceUser
	if user == "" {
		user = target.Username
	}
	return []string{"su", "-", user, "-c", shell}
}

func (p *db2Provider) PrepareCommands(target config.Target) [][]string {
	return [][]string{
		p.su(target, "db2 force application all"),
		p.su(target, "db2 terminate"),
	}
}

func (p *db2Provider) BackupCommand(target config.Target, dir string) []string {
	return p.su(target, fmt.Sprintf("db2 backup database %s to %s", target.Database, dir))
}

func (p *db2Provider) ParseTimestamp(output []byte) (string, error) {
	text := string(output)
	idx := strings.Index(text, db2TimestampMarker)
	if idx < 0 {
		return "", fmt.Errorf("%w: marker %q absent", ErrTimestampNotFound, db2TimestampMarker)
	}
	rest := strings.Fields(text[idx+len(db2TimestampMarker):])
	if len(rest) == 0 {
		return "", fmt.Errorf("%w: marker present but no token follows", ErrTimestampNotFound)
	}
	return rest[0], nil
}

func (p *db2Provider) MatchArtifact(target config.Target, name string) bool {
	// DB2 image names lead with the upper-cased database name,
	// e.g. APIM_DB.0.db2inst1.DBPART000.20240101120000.001
	return strings.HasPrefix(strings.ToUpper(name), strings.ToUpper(target.Database)+".")
}

func (p *db2Provider) RestoreCommand(target config.Target, dir, timestamp string) []string {
	return p.su(target, fmt.Sprintf(
		"db2 restore database %s from %s taken at %s replace existing without prompting",
		target.Database, dir, timestamp,
	))
}

func (p *db2Provider) RollforwardCommand(target config.Target) []string {
	return p.su(target, fmt.Sprintf(
		"db2 rollforward database %s to end of logs and complete", target.Database,
	))
}
