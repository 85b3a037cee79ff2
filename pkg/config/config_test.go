package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vem-project/vem/pkg/errclass"
)

func TestDefault(t *testing.T) {
	cfg := Default("/h")
	if cfg.EnvironmentRoot != filepath.Join("/h", EnvironmentsDir) {
		t.Errorf("unexpected environment_root %s", cfg.EnvironmentRoot)
	}
	if cfg.Editor != "vim" {
		t.Errorf("expected vim editor, got %s", cfg.Editor)
	}
	if !cfg.Backup.Enabled || cfg.Backup.RetentionDays != 30 {
		t.Errorf("unexpected backup defaults %+v", cfg.Backup)
	}
	if cfg.AutoSwitch {
		t.Error("auto_switch should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NotExists(t *testing.T) {
	home := t.TempDir()

	cfg, err := Load(home, filepath.Join(home, ConfigFileName))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Editor != "vim" {
		t.Errorf("expected default editor, got %s", cfg.Editor)
	}
	if cfg.Home() != home {
		t.Errorf("expected home %s, got %s", home, cfg.Home())
	}
}

func TestLoad_Exists(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, ConfigFileName)

	content := `
environment_root: envs
default_environment: work
editor: nvim
auto_switch: true
backup:
  enabled: false
  retention_days: 7
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(home, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.EnvironmentRoot != filepath.Join(home, "envs") {
		t.Errorf("relative root should resolve against home, got %s", cfg.EnvironmentRoot)
	}
	if cfg.DefaultEnvironment != "work" {
		t.Errorf("expected default_environment work, got %s", cfg.DefaultEnvironment)
	}
	if cfg.Editor != "nvim" {
		t.Errorf("expected nvim, got %s", cfg.Editor)
	}
	if !cfg.AutoSwitch {
		t.Error("expected auto_switch true")
	}
	if cfg.Backup.Enabled || cfg.Backup.RetentionDays != 7 {
		t.Errorf("unexpected backup %+v", cfg.Backup)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging %+v", cfg.Logging)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, ConfigFileName)
	if err := os.WriteFile(path, []byte("editor: nano\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(home, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Editor != "nano" {
		t.Errorf("expected nano, got %s", cfg.Editor)
	}
	if cfg.Backup.RetentionDays != 30 {
		t.Errorf("expected default retention, got %d", cfg.Backup.RetentionDays)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, ConfigFileName)
	if err := os.WriteFile(path, []byte("editor: nano\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VEM_EDITOR", "emacs -nw")
	t.Setenv("VEM_AUTO_SWITCH", "true")
	t.Setenv("VEM_BACKUP_RETENTION_DAYS", "3")

	cfg, err := Load(home, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Editor != "emacs -nw" {
		t.Errorf("env should override file, got %s", cfg.Editor)
	}
	if !cfg.AutoSwitch {
		t.Error("expected auto_switch from env")
	}
	if cfg.Backup.RetentionDays != 3 {
		t.Errorf("expected retention 3, got %d", cfg.Backup.RetentionDays)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, ConfigFileName)
	if err := os.WriteFile(path, []byte("editor: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(home, path)
	if !errors.Is(err, errclass.ErrConfigInvalid) {
		t.Errorf("expected E_CONFIG_INVALID, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "nested", ConfigFileName)

	cfg := Default(home)
	cfg.Editor = "hx"
	cfg.DefaultEnvironment = "rust"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(home, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Editor != "hx" || loaded.DefaultEnvironment != "rust" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
	if loaded.EnvironmentRoot != cfg.EnvironmentRoot {
		t.Errorf("root mismatch: %s vs %s", loaded.EnvironmentRoot, cfg.EnvironmentRoot)
	}
}

func TestEnsureDefault(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, ConfigFileName)

	wrote, err := EnsureDefault(home, path)
	if err != nil || !wrote {
		t.Fatalf("expected default to be written, wrote=%v err=%v", wrote, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}

	wrote, err = EnsureDefault(home, path)
	if err != nil || wrote {
		t.Errorf("second call must not rewrite, wrote=%v err=%v", wrote, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty editor", func(c *Config) { c.Editor = "" }},
		{"blank editor", func(c *Config) { c.Editor = "   " }},
		{"empty root", func(c *Config) { c.EnvironmentRoot = "" }},
		{"negative retention", func(c *Config) { c.Backup.RetentionDays = -1 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/h")
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, errclass.ErrConfigInvalid) {
				t.Errorf("expected E_CONFIG_INVALID, got %v", err)
			}
		})
	}
}

func TestHomeAndConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvHome, dir)
	t.Setenv(EnvConfig, "")

	home, err := Home()
	if err != nil {
		t.Fatal(err)
	}
	if home != dir {
		t.Errorf("expected %s, got %s", dir, home)
	}

	path, err := ConfigPath(home)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, ConfigFileName) {
		t.Errorf("unexpected config path %s", path)
	}

	custom := filepath.Join(dir, "other.yaml")
	t.Setenv(EnvConfig, custom)
	path, _ = ConfigPath(home)
	if path != custom {
		t.Errorf("expected override %s, got %s", custom, path)
	}
}

func TestPaths(t *testing.T) {
	cfg := Default("/h")
	if cfg.CurrentLinkPath() != filepath.Join("/h", "current") {
		t.Errorf("unexpected link path %s", cfg.CurrentLinkPath())
	}
	if cfg.AuditPath() != filepath.Join("/h", "audit.jsonl") {
		t.Errorf("unexpected audit path %s", cfg.AuditPath())
	}
	if cfg.BackupDir() != filepath.Join("/h", "backups") {
		t.Errorf("unexpected backup dir %s", cfg.BackupDir())
	}
	if cfg.Retention() != 30*24*time.Hour {
		t.Errorf("unexpected retention %v", cfg.Retention())
	}
}

func TestEnsureDefault_HomeUnderFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	home := filepath.Join(blocker, "home")
	path := filepath.Join(home, ConfigFileName)

	_, err := EnsureDefault(home, path)
	if !errors.Is(err, errclass.ErrStorage) {
		t.Fatalf("expected E_STORAGE, got %v", err)
	}
	e := errclass.Classify(err)
	if strings.Contains(e.Message, blocker) {
		t.Errorf("message must not contain the path: %q", e.Message)
	}
	if !strings.Contains(e.Detail(), blocker) {
		t.Errorf("detail should carry the cause, got %q", e.Detail())
	}

	if err := Save(path, Default(home)); !errors.Is(err, errclass.ErrStorage) {
		t.Errorf("Save: expected E_STORAGE, got %v", err)
	}
}

func TestHome_Unresolvable(t *testing.T) {
	t.Setenv(EnvHome, "")
	t.Setenv("HOME", "")

	if _, err := Home(); !errors.Is(err, errclass.ErrConfigInvalid) {
		t.Errorf("expected E_CONFIG_INVALID, got %v", err)
	}
}
