// Package config provides configuration loading for VEM.
//
// Configuration is layered: built-in defaults, then the YAML file at
// ConfigPath(), then VEM_* environment variables (VEM_EDITOR,
// VEM_AUTO_SWITCH, VEM_BACKUP_RETENTION_DAYS, ...).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/fsutil"
)

const (
	// EnvHome overrides the VEM home directory (default ~/.vem).
	EnvHome   = "VEM_HOME"
	// EnvConfig overrides the configuration file path.
	EnvConfig = "VEM_CONFIG"

	envPrefix = "VEM"

	HomeDirName     = ".vem"
	ConfigFileName  = "config.yaml"
	EnvironmentsDir = "environments"
	CurrentLinkName = "current"
	AuditFileName   = "audit.jsonl"
	BackupDirName   = "backups"
)

// Config keys.
const (
	keyEnvironmentRoot    = "environment_root"
	keyDefaultEnvironment = "default_environment"
	keyEditor             = "editor"
	keyAutoSwitch         = "auto_switch"
	keyBackupEnabled      = "backup.enabled"
	keyBackupRetention    = "backup.retention_days"
	keyLogLevel           = "logging.level"
	keyLogFormat          = "logging.format"
)

// Config represents the VEM configuration.
type Config struct {
	EnvironmentRoot    string        `yaml:"environment_root" json:"environment_root" mapstructure:"environment_root"`
	DefaultEnvironment string        `yaml:"default_environment,omitempty" json:"default_environment,omitempty" mapstructure:"default_environment"`
	Editor             string        `yaml:"editor" json:"editor" mapstructure:"editor"`
	AutoSwitch         bool          `yaml:"auto_switch" json:"auto_switch" mapstructure:"auto_switch"`
	Backup             BackupConfig  `yaml:"backup" json:"backup" mapstructure:"backup"`
	Logging            LoggingConfig `yaml:"logging" json:"logging" mapstructure:"logging"`

	home string
}

// BackupConfig configures archiving of removed environments.
type BackupConfig struct {
	Enabled       bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	RetentionDays int  `yaml:"retention_days" json:"retention_days" mapstructure:"retention_days"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" mapstructure:"level"`
	Format string `yaml:"format" json:"format" mapstructure:"format"` // text, json, logfmt
}

// Default returns the default configuration rooted at home.
func Default(home string) *Config {
	return &Config{
		EnvironmentRoot: filepath.Join(home, EnvironmentsDir),
		Editor:          "vim",
		Backup: BackupConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		home: home,
	}
}

// Home returns the VEM home directory: $VEM_HOME, or ~/.vem.
func Home() (string, error) {
	if h := os.Getenv(EnvHome); h != "" {
		abs, err := filepath.Abs(h)
		if err != nil {
			return "", errclass.ErrConfigInvalid.WithMessagef("cannot resolve %s", EnvHome).Wrap(err)
		}
		return abs, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", errclass.ErrConfigInvalid.WithMessagef("cannot resolve home directory; set %s", EnvHome).Wrap(err)
	}
	return filepath.Join(userHome, HomeDirName), nil
}

// ConfigPath returns the configuration file path: $VEM_CONFIG, or
// <home>/config.yaml.
func ConfigPath(home string) (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return filepath.Abs(p)
	}
	return filepath.Join(home, ConfigFileName), nil
}

// Load reads the configuration at path on top of the defaults for home and
// applies VEM_* environment overrides. A missing file is not an error.
func Load(home, path string) (*Config, error) {
	def := Default(home)

	v := viper.New()
	v.SetDefault(keyEnvironmentRoot, def.EnvironmentRoot)
	v.SetDefault(keyDefaultEnvironment, def.DefaultEnvironment)
	v.SetDefault(keyEditor, def.Editor)
	v.SetDefault(keyAutoSwitch, def.AutoSwitch)
	v.SetDefault(keyBackupEnabled, def.Backup.Enabled)
	v.SetDefault(keyBackupRetention, def.Backup.RetentionDays)
	v.SetDefault(keyLogLevel, def.Logging.Level)
	v.SetDefault(keyLogFormat, def.Logging.Format)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, errclass.ErrConfigInvalid.WithMessage("cannot parse configuration file").Wrap(err)
			}
		} else if !os.IsNotExist(err) {
			return nil, errclass.Storage(err, "cannot read configuration file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessage("invalid configuration values").Wrap(err)
	}
	cfg.home = home
	cfg.EnvironmentRoot = resolvePath(home, cfg.EnvironmentRoot)
	return cfg, nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errclass.Storage(fmt.Errorf("create %s: %w", filepath.Dir(path), err), "cannot create configuration directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errclass.ErrConfigInvalid.WithMessage("cannot encode configuration").Wrap(err)
	}

	if err := fsutil.AtomicWrite(path, data, 0644); err != nil {
		return errclass.Storage(err, "cannot write configuration file")
	}
	return nil
}

// EnsureDefault writes the default configuration to path if no file exists
// there yet. It reports whether a file was written.
func EnsureDefault(home, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, errclass.Storage(err, "cannot read configuration file")
	}
	if err := Save(path, Default(home)); err != nil {
		return false, err
	}
	return true, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Editor) == "" {
		return errclass.ErrConfigInvalid.WithMessage("editor command cannot be empty")
	}
	if c.EnvironmentRoot == "" {
		return errclass.ErrConfigInvalid.WithMessage("environment_root cannot be empty")
	}
	if c.Backup.RetentionDays < 0 {
		return errclass.ErrConfigInvalid.WithMessagef("backup.retention_days must not be negative: %d", c.Backup.RetentionDays)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errclass.ErrConfigInvalid.WithMessagef("unknown logging.level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json", "logfmt":
	default:
		return errclass.ErrConfigInvalid.WithMessagef("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// Home returns the home directory the configuration was loaded for.
func (c *Config) Home() string {
	return c.home
}

// CurrentLinkPath returns the location of the current-environment pointer.
func (c *Config) CurrentLinkPath() string {
	return filepath.Join(c.home, CurrentLinkName)
}

// AuditPath returns the lifecycle journal location.
func (c *Config) AuditPath() string {
	return filepath.Join(c.home, AuditFileName)
}

// BackupDir returns the directory holding archives of removed environments.
func (c *Config) BackupDir() string {
	return filepath.Join(c.home, BackupDirName)
}

// Retention returns the backup retention period; zero keeps backups forever.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

func resolvePath(home, p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if userHome, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(userHome, strings.TrimPrefix(p, "~"))
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(home, p)
	}
	return filepath.Clean(p)
}
