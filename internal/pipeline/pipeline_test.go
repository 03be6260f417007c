package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dakshina99/apimdbctl/internal/backup"
	"github.com/dakshina99/apimdbctl/internal/config"
	"github.com/dakshina99/apimdbctl/internal/deployment"
	"github.com/dakshina99/apimdbctl/internal/docker"
	"github.com/dakshina99/apimdbctl/internal/logger"
	"github.com/dakshina99/apimdbctl/internal/readiness"
)

const staleDeployment = `[server]
hostname = "localhost"

[database.apim_db]
type = "h2"
url = "jdbc:h2:./repository/database/WSO2AM_DB"

[database.shared_db]
type = "h2"
url = "jdbc:h2:./repository/database/WSO2SHARED_DB"

[apim.gateway]
enable = true
`

// fakeRuntime scripts the container-runtime collaborator for pipeline
// tests.
type fakeRuntime struct {
	composeUps int
	composeErr error
	running    bool
	exec       func(container, cmdline string) ([]byte, error)
	copiedIn   []string
}

var _ docker.Runtime = (*fakeRuntime)(nil)

func (f *fakeRuntime) ComposeUp(ctx context.Context) error {
	f.composeUps++
	return f.composeErr
}

func (f *fakeRuntime) IsRunning(ctx context.Context, container string) (bool, error) {
	return f.running, nil
}

func (f *fakeRuntime) Exec(ctx context.Context, container string, argv []string) ([]byte, error) {
	if f.exec == nil {
		return nil, nil
	}
	return f.exec(container, strings.Join(argv, " "))
}

func (f *fakeRuntime) CopyFrom(ctx context.Context, container, src, dst string) error {
	return os.WriteFile(dst, []byte("backup image bytes"), 0o644)
}

func (f *fakeRuntime) CopyTo(ctx context.Context, src, container, dst string) error {
	f.copiedIn = append(f.copiedIn, dst)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	deploymentPath := filepath.Join(dir, "deployment.toml")
	require.NoError(t, os.WriteFile(deploymentPath, []byte(staleDeployment), 0o644))

	return &config.Config{
		Engine: "db2",
		Engines: map[string]config.EngineProfile{
			"db2": {
				Type:            "db2",
				Driver:          "com.ibm.db2.jcc.DB2Driver",
				URLTemplate:     "jdbc:db2://{{.Host}}:{{.Port}}/{{.Database}}",
				ValidationQuery: "SELECT 1 FROM SYSIBM.SYSDUMMY1",
				SchemaScript:    "/home/db2inst1/apim_db2.sql",
				BackupDir:       "/database/backups",
				InstanceUser:    "db2inst1",
			},
		},
		Deployment: config.DeploymentConfig{ConfigPath: deploymentPath},
		Compose:    config.ComposeConfig{File: filepath.Join(dir, "docker-compose.yaml")},
		Backup:     config.BackupConfig{Root: filepath.Join(dir, "backups")},
		Readiness:  config.ReadinessConfig{MaxAttempts: 1},
		// "sh" is always on PATH, keeping the dependency check hermetic.
		Depends: []config.Dependency{{Tool: "sh"}},
		Primary: config.Instance{
			Name: "apim_db", Container: "apim-db", Host: "localhost",
			Port: "50000", Database: "apim_db", Username: "db2inst1", Password: "secret",
		},
		Shared: config.Instance{
			Name: "shared_db", Container: "shared-db", Host: "localhost",
			Port: "50001", Database: "shared_db", Username: "db2inst1", Password: "secret",
		},
	}
}

func newCoordinator(cfg *config.Config, rt docker.Runtime, opts ...Option) (*Coordinator, *bytes.Buffer) {
	out := &bytes.Buffer{}
	opts = append([]Option{WithOutput(out)}, opts...)
	c := New(cfg, rt, logger.Nop(), opts...)
	c.poller.FastDelay = 0
	c.poller.SlowDelay = 0
	return c, out
}

func TestProvisionHappyPath(t *testing.T) {
	cfg := testConfig(t)
	var schemaRuns int
	rt := &fakeRuntime{exec: func(container, cmdline string) ([]byte, error) {
		if strings.Contains(cmdline, "-tvf") {
			schemaRuns++
		}
		return nil, nil
	}}
	c, out := newCoordinator(cfg, rt)

	require.NoError(t, c.Provision(context.Background()))
	require.Equal(t, 1, rt.composeUps)
	require.Equal(t, 2, schemaRuns)

	got, err := os.ReadFile(cfg.Deployment.ConfigPath)
	require.NoError(t, err)
	require.NotContains(t, string(got), "jdbc:h2")
	require.Contains(t, string(got), `url = "jdbc:db2://localhost:50000/apim_db"`)
	require.Contains(t, string(got), `url = "jdbc:db2://localhost:50001/shared_db"`)
	require.Contains(t, string(got), "[server]")

	require.Contains(t, out.String(), "jdbc:db2://localhost:50000/apim_db")
}

func TestProvisionRollsBackOnComposeFailure(t *testing.T) {
	cfg := testConfig(t)
	rt := &fakeRuntime{composeErr: errors.New("daemon unreachable")}
	c, _ := newCoordinator(cfg, rt)

	err := c.Provision(context.Background())
	require.Error(t, err)

	got, readErr := os.ReadFile(cfg.Deployment.ConfigPath)
	require.NoError(t, readErr)
	require.Equal(t, staleDeployment, string(got))
}

func TestProvisionRollsBackOnReadinessTimeout(t *testing.T) {
	cfg := testConfig(t)
	rt := &fakeRuntime{exec: func(container, cmdline string) ([]byte, error) {
		if strings.Contains(cmdline, "SYSDUMMY1") {
			return nil, errors.New("SQL30081N connection refused")
		}
		return nil, nil
	}}
	c, _ := newCoordinator(cfg, rt)

	err := c.Provision(context.Background())
	require.ErrorIs(t, err, readiness.ErrTimeout)

	got, readErr := os.ReadFile(cfg.Deployment.ConfigPath)
	require.NoError(t, readErr)
	require.Equal(t, staleDeployment, string(got))
}

func TestProvisionSchemaFailureIsNonFatal(t *testing.T) {
	cfg := testConfig(t)
	rt := &fakeRuntime{exec: func(container, cmdline string) ([]byte, error) {
		if strings.Contains(cmdline, "-tvf") {
			return []byte("SQL0601N already exists"), errors.New("exit status 4")
		}
		return nil, nil
	}}
	c, _ := newCoordinator(cfg, rt)

	require.NoError(t, c.Provision(context.Background()))

	// Mutation stays applied on success.
	got, err := os.ReadFile(cfg.Deployment.ConfigPath)
	require.NoError(t, err)
	require.Contains(t, string(got), "jdbc:db2")
}

func TestProvisionMissingConfigFileIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Deployment.ConfigPath = filepath.Join(t.TempDir(), "missing.toml")
	rt := &fakeRuntime{}
	c, _ := newCoordinator(cfg, rt)

	err := c.Provision(context.Background())
	require.ErrorIs(t, err, deployment.ErrConfigFileMissing)
	require.Zero(t, rt.composeUps)
}

func backupFixture(t *testing.T, cfg *config.Config) string {
	t.Helper()
	rt := &fakeRuntime{running: true, exec: func(container, cmdline string) ([]byte, error) {
		switch {
		case strings.Contains(cmdline, "backup database apim_db"):
			return []byte("timestamp for this backup image is : 20240101120000"), nil
		case strings.Contains(cmdline, "backup database shared_db"):
			return []byte("timestamp for this backup image is : 20240101120100"), nil
		case strings.Contains(cmdline, "ls -1t"):
			if container == "apim-db" {
				return []byte("APIM_DB.0.db2inst1.DBPART000.20240101120000.001\n"), nil
			}
			return []byte("SHARED_DB.0.db2inst1.DBPART000.20240101120100.001\n"), nil
		default:
			return nil, nil
		}
	}}
	c, _ := newCoordinator(cfg, rt)
	session, err := c.Backup(context.Background())
	require.NoError(t, err)
	return session.Dir
}

func TestBackupThenListShowsTimestamps(t *testing.T) {
	cfg := testConfig(t)
	backupFixture(t, cfg)

	rt := &fakeRuntime{}
	c, out := newCoordinator(cfg, rt)
	require.NoError(t, c.List())
	require.Contains(t, out.String(), "timestamp=20240101120000")
	require.Contains(t, out.String(), "timestamp=20240101120100")
}

func TestRecoverDeclinedIsCleanCancel(t *testing.T) {
	cfg := testConfig(t)
	dir := backupFixture(t, cfg)

	var restores int
	rt := &fakeRuntime{running: true, exec: func(container, cmdline string) ([]byte, error) {
		if strings.Contains(cmdline, "restore database") {
			restores++
		}
		return nil, nil
	}}
	decline := func(string) (bool, error) { return false, nil }
	c, out := newCoordinator(cfg, rt, WithConfirm(decline))

	// Declining is an explicit cancel: no error, no restore issued.
	require.NoError(t, c.Recover(context.Background(), dir, "", ""))
	require.Zero(t, restores)
	require.Contains(t, out.String(), "restore cancelled")
}

func TestRecoverRequiresRunningInstances(t *testing.T) {
	cfg := testConfig(t)
	dir := backupFixture(t, cfg)

	rt := &fakeRuntime{running: false}
	c, _ := newCoordinator(cfg, rt, WithConfirm(AlwaysConfirm))

	err := c.Recover(context.Background(), dir, "", "")
	require.ErrorIs(t, err, docker.ErrContainerNotRunning)
}

func TestRecoverConfirmedRestoresBothDatabases(t *testing.T) {
	cfg := testConfig(t)
	dir := backupFixture(t, cfg)

	var restores []string
	rt := &fakeRuntime{running: true, exec: func(container, cmdline string) ([]byte, error) {
		if strings.Contains(cmdline, "test -f") {
			return nil, errors.New("not present")
		}
		if strings.Contains(cmdline, "restore database") {
			restores = append(restores, cmdline)
		}
		return nil, nil
	}}
	c, out := newCoordinator(cfg, rt, WithConfirm(AlwaysConfirm))

	require.NoError(t, c.Recover(context.Background(), dir, "", ""))
	require.Len(t, restores, 2)
	require.Contains(t, restores[0], "taken at 20240101120000")
	require.Contains(t, restores[1], "taken at 20240101120100")
	require.Contains(t, out.String(), "restore of session")
}

func TestRecoverExplicitTimestampBeatsManifest(t *testing.T) {
	cfg := testConfig(t)
	dir := backupFixture(t, cfg)

	var restores []string
	rt := &fakeRuntime{running: true, exec: func(container, cmdline string) ([]byte, error) {
		if strings.Contains(cmdline, "test -f") {
			return nil, errors.New("not present")
		}
		if strings.Contains(cmdline, "restore database") {
			restores = append(restores, cmdline)
		}
		return nil, nil
	}}
	c, _ := newCoordinator(cfg, rt, WithConfirm(AlwaysConfirm))

	require.NoError(t, c.Recover(context.Background(), dir, "20991231235959", ""))
	require.Contains(t, restores[0], "taken at 20991231235959")
	require.Contains(t, restores[1], "taken at 20240101120100")
}

func TestRecoverMissingManifestFails(t *testing.T) {
	cfg := testConfig(t)
	rt := &fakeRuntime{running: true}
	c, _ := newCoordinator(cfg, rt, WithConfirm(AlwaysConfirm))

	err := c.Recover(context.Background(), t.TempDir(), "", "")
	require.Error(t, err)
}

func TestBackupAllOrNothingLeavesNoSession(t *testing.T) {
	cfg := testConfig(t)
	rt := &fakeRuntime{running: true, exec: func(container, cmdline string) ([]byte, error) {
		if strings.Contains(cmdline, "backup database apim_db") {
			return []byte("timestamp for this backup image is : 20240101120000"), nil
		}
		if strings.Contains(cmdline, "backup database shared_db") {
			return []byte("SQL1035N"), errors.New("exit status 4")
		}
		if strings.Contains(cmdline, "ls -1t") {
			return []byte("APIM_DB.0.db2inst1.DBPART000.20240101120000.001\n"), nil
		}
		return nil, nil
	}}
	c, _ := newCoordinator(cfg, rt)

	_, err := c.Backup(context.Background())
	require.ErrorIs(t, err, backup.ErrBackupFailed)

	entries, readErr := os.ReadDir(cfg.Backup.Root)
	require.NoError(t, readErr)
	require.Empty(t, entries)
}

func TestStdinConfirm(t *testing.T) {
	out := &bytes.Buffer{}

	yes := StdinConfirm(strings.NewReader("y\n"), out)
	ok, err := yes("proceed? ")
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, out.String(), "proceed?")

	no := StdinConfirm(strings.NewReader("n\n"), out)
	ok, err = no("proceed? ")
	require.NoError(t, err)
	require.False(t, ok)

	// EOF declines rather than confirming.
	eof := StdinConfirm(strings.NewReader(""), out)
	ok, err = eof("proceed? ")
	require.NoError(t, err)
	require.False(t, ok)
}
