package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Roles of the two logical databases. A run always manages exactly these two.
const (
	RolePrimary = "primary"
	RoleShared  = "shared"
)

// Config represents the top-level YAML configuration file.
type Config struct {
	Include    []string         `mapstructure:"include"    yaml:"include,omitempty"`
	Deployment DeploymentConfig `mapstructure:"deployment" yaml:"deployment"`
	Compose    ComposeConfig    `mapstructure:"compose"    yaml:"compose"`
	Backup     BackupConfig     `mapstructure:"backup"     yaml:"backup"`
	Vault      VaultConfig      `mapstructure:"vault"      yaml:"vault"`
	Readiness  ReadinessConfig  `mapstructure:"readiness"  yaml:"readiness"`
	Depends    []Dependency     `mapstructure:"depends"    yaml:"depends,omitempty"`

	// Engine selects the active profile in Engines.
	Engine  string                   `mapstructure:"engine"  yaml:"engine"`
	Engines map[string]EngineProfile `mapstructure:"engines" yaml:"engines"`

	Primary Instance `mapstructure:"primary" yaml:"primary"`
	Shared  Instance `mapstructure:"shared"  yaml:"shared"`
}

// DeploymentConfig points at the runtime configuration file whose database
// sections the provision pipeline rewrites.
type DeploymentConfig struct {
	ConfigPath string `mapstructure:"config_path" yaml:"config_path"`
}

// ComposeConfig identifies the compose file and project for the service
// instances.
type ComposeConfig struct {
	File    string `mapstructure:"file"    yaml:"file"`
	Project string `mapstructure:"project" yaml:"project,omitempty"`
}

// BackupConfig contains global backup-session options.
type BackupConfig struct {
	Root            string `mapstructure:"root"             yaml:"root"`
	Compress        bool   `mapstructure:"compress"         yaml:"compress"`
	TimestampFormat string `mapstructure:"timestamp_format" yaml:"timestamp_format,omitempty"`
}

// VaultConfig holds connection settings for HashiCorp Vault. When empty,
// credentials come from the instance blocks directly.
type VaultConfig struct {
	Address  string `mapstructure:"address"   yaml:"address,omitempty"`
	Token    string `mapstructure:"token"     yaml:"token,omitempty"`
	RoleID   string `mapstructure:"role_id"   yaml:"role_id,omitempty"`
	RoleName string `mapstructure:"role_name" yaml:"role_name,omitempty"`
}

// ReadinessConfig bounds the readiness poll.
type ReadinessConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts,omitempty"`
}

// Dependency names a tool the pipeline needs on PATH and, optionally, the
// command that installs it.
type Dependency struct {
	Tool    string   `mapstructure:"tool"    yaml:"tool"`
	Install []string `mapstructure:"install" yaml:"install,omitempty"`
}

// EngineProfile carries everything engine-specific so the pipelines stay
// engine-agnostic: how to form a connection URL, which driver the
// application config names, the validation query used as readiness probe,
// the schema script inside the container, and where the engine writes its
// backup images.
type EngineProfile struct {
	Type            string `mapstructure:"type"             yaml:"type"`
	Driver          string `mapstructure:"driver"           yaml:"driver"`
	URLTemplate     string `mapstructure:"url_template"     yaml:"url_template"`
	ValidationQuery string `mapstructure:"validation_query" yaml:"validation_query"`
	SchemaScript    string `mapstructure:"schema_script"    yaml:"schema_script"`
	BackupDir       string `mapstructure:"backup_dir"       yaml:"backup_dir"`
	InstanceUser    string `mapstructure:"instance_user"    yaml:"instance_user,omitempty"`
}

// Instance is the static description of one logical database.
type Instance struct {
	Name      string `mapstructure:"name"       yaml:"name"`
	Container string `mapstructure:"container"  yaml:"container"`
	Host      string `mapstructure:"host"       yaml:"host"`
	Port      string `mapstructure:"port"       yaml:"port"`
	Database  string `mapstructure:"database"   yaml:"database"`
	Username  string `mapstructure:"username"   yaml:"username,omitempty"`
	Password  string `mapstructure:"password"   yaml:"password,omitempty"`
	VaultPath string `mapstructure:"vault_path" yaml:"vault_path,omitempty"`
}

// Target identifies one logical database instance for the duration of a
// run. Built once at pipeline start, then treated as immutable.
type Target struct {
	Role      string
	Name      string
	Container string
	Host      string
	Port      string
	Database  string
	Username  string
	Password  string
}

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, and unmarshals into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
	}

	// Merge include files (if any)
	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	return c.Validate()
}

// Validate checks the fields every pipeline needs before any of them runs.
func (c *Config) Validate() error {
	if c.Engine == "" {
		return fmt.Errorf("%w: engine is not set", ErrValidateConfig)
	}
	if _, ok := c.Engines[c.Engine]; !ok {
		return fmt.Errorf("%w: engine %q has no profile", ErrValidateConfig, c.Engine)
	}
	if c.Deployment.ConfigPath == "" {
		return fmt.Errorf("%w: deployment.config_path is not set", ErrValidateConfig)
	}
	for role, inst := range map[string]Instance{RolePrimary: c.Primary, RoleShared: c.Shared} {
		if inst.Container == "" {
			return fmt.Errorf("%w: %s.container is not set", ErrValidateConfig, role)
		}
		if inst.Database == "" {
			return fmt.Errorf("%w: %s.database is not set", ErrValidateConfig, role)
		}
	}
	return nil
}

// Profile returns the active engine profile.
func (c *Config) Profile() EngineProfile {
	return c.Engines[c.Engine]
}

// Targets builds the ServiceTarget pair for one run, primary first. The
// order is the order every sequential per-database loop uses.
func (c *Config) Targets() []Target {
	return []Target{
		newTarget(RolePrimary, c.Primary),
		newTarget(RoleShared, c.Shared),
	}
}

func newTarget(role string, inst Instance) Target {
	name := inst.Name
	if name == "" {
		name = inst.Database
	}
	return Target{
		Role:      role,
		Name:      name,
		Container: inst.Container,
		Host:      inst.Host,
		Port:      inst.Port,
		Database:  inst.Database,
		Username:  inst.Username,
		Password:  inst.Password,
	}
}
