// Package manager is the entry point used by the CLI. It validates the
// configuration once, owns the environment store, and records every
// lifecycle change in the audit journal.
package manager

import (
	"errors"
	"os"
	"time"

	"github.com/vem-project/vem/internal/audit"
	"github.com/vem-project/vem/internal/backup"
	"github.com/vem-project/vem/internal/store"
	"github.com/vem-project/vem/pkg/config"
	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/logging"
	"github.com/vem-project/vem/pkg/model"
)

// Archiver backs up an environment directory before it is removed.
type Archiver interface {
	Archive(name, srcDir string) (string, error)
	Prune(now time.Time) ([]string, error)
}

// Manager wraps the store with configuration, auditing and backups.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	journal  audit.Appender
	archiver Archiver
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger passed down to the store.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithJournal overrides the audit journal.
func WithJournal(j audit.Appender) Option {
	return func(m *Manager) { m.journal = j }
}

// WithArchiver overrides the backup archiver.
func WithArchiver(a Archiver) Option {
	return func(m *Manager) { m.archiver = a }
}

// New validates cfg, ensures the environments root exists, and builds the
// store.
func New(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errclass.ErrConfigInvalid.WithMessage("no configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:    cfg,
		logger: logging.Global(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.journal == nil {
		m.journal = audit.NewFileAppender(cfg.AuditPath())
	}
	if m.archiver == nil && cfg.Backup.Enabled {
		m.archiver = backup.NewArchiver(cfg.BackupDir(), cfg.Retention(), backup.WithClock(m.now))
	}

	if err := os.MkdirAll(cfg.EnvironmentRoot, 0755); err != nil {
		return nil, errclass.Storage(err, "cannot create environments directory")
	}

	m.store = store.New(cfg.EnvironmentRoot, cfg.CurrentLinkPath(),
		store.WithLogger(m.logger), store.WithClock(m.now))
	return m, nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config { return m.cfg }

// Store returns the underlying store.
func (m *Manager) Store() *store.Store { return m.store }

// Create creates an environment and, with auto_switch set, makes it
// current.
func (m *Manager) Create(name string, description *string) (*model.Environment, error) {
	env, err := m.store.Create(name, description)
	if err != nil {
		return nil, classify(err)
	}
	m.record(model.EventTypeEnvironmentCreate, env.Name, describe(description))

	if m.cfg.AutoSwitch {
		return m.Switch(env.Name)
	}
	return env, nil
}

// List returns every environment ordered by name.
func (m *Manager) List() ([]*model.Environment, error) {
	envs, err := m.store.List()
	return envs, classify(err)
}

// Get returns environment name.
func (m *Manager) Get(name string) (*model.Environment, error) {
	env, err := m.store.Get(name)
	if err != nil {
		return nil, classify(err)
	}
	return env, nil
}

// Update replaces the description of environment name.
func (m *Manager) Update(name string, description *string) (*model.Environment, error) {
	env, err := m.store.Update(name, description)
	if err != nil {
		return nil, classify(err)
	}
	m.record(model.EventTypeEnvironmentUpdate, env.Name, describe(description))
	return env, nil
}

// UpdateTags adds and removes tags on environment name.
func (m *Manager) UpdateTags(name string, add, remove []string) (*model.Environment, error) {
	env, err := m.store.UpdateTags(name, add, remove)
	if err != nil {
		return nil, classify(err)
	}
	m.record(model.EventTypeEnvironmentUpdate, env.Name, map[string]any{"tags": env.Meta.Tags})
	return env, nil
}

// Edit applies a combined description and tag change with one metadata
// write and one audit record.
func (m *Manager) Edit(name string, c store.Change) (*model.Environment, error) {
	env, err := m.store.Edit(name, c)
	if err != nil {
		return nil, classify(err)
	}

	details := map[string]any{}
	if c.SetDescription {
		if c.Description != nil {
			details["description"] = *c.Description
		} else {
			details["description"] = nil
		}
	}
	if len(c.AddTags) > 0 || len(c.RemoveTags) > 0 {
		details["tags"] = env.Meta.Tags
	}
	m.record(model.EventTypeEnvironmentUpdate, env.Name, details)
	return env, nil
}

// Switch makes environment name current. An empty name selects the
// configured default environment.
func (m *Manager) Switch(name string) (*model.Environment, error) {
	if name == "" {
		name = m.cfg.DefaultEnvironment
		if name == "" {
			return nil, errclass.ErrNameInvalid.WithMessage("no environment name given and no default_environment configured")
		}
	}

	var previous string
	if cur, err := m.store.GetCurrent(); err == nil {
		previous = cur.Name
	}

	if err := m.store.SetCurrent(name); err != nil {
		return nil, classify(err)
	}
	env, err := m.store.Get(name)
	if err != nil {
		return nil, classify(err)
	}

	var details map[string]any
	if previous != "" && previous != env.Name {
		details = map[string]any{"previous": previous}
	}
	m.record(model.EventTypeEnvironmentSwitch, env.Name, details)
	return env, nil
}

// Current returns the active environment, or an ErrNoCurrent error.
func (m *Manager) Current() (*model.Environment, error) {
	env, err := m.store.GetCurrent()
	if err != nil {
		return nil, classify(err)
	}
	return env, nil
}

// RemoveResult describes a completed removal.
type RemoveResult struct {
	Name   string   `json:"name"`
	Backup string   `json:"backup,omitempty"`
	Pruned []string `json:"pruned,omitempty"`
}

// Remove deletes environment name. With backups enabled the environment is
// archived first; a failed archive aborts the removal.
func (m *Manager) Remove(name string) (*RemoveResult, error) {
	env, err := m.store.Get(name)
	if err != nil {
		return nil, classify(err)
	}
	if cur, err := m.store.GetCurrent(); err == nil && cur.Name == env.Name {
		return nil, errclass.ErrActiveEnvironment.WithMessagef("cannot remove active environment '%s'", env.Name)
	}

	// Checked before archiving so nothing is written for an environment
	// that cannot be deleted.
	if err := m.store.Contained(env.Name); err != nil {
		return nil, classify(err)
	}

	result := &RemoveResult{Name: env.Name}
	if m.archiver != nil {
		path, err := m.archiver.Archive(env.Name, env.Path)
		if err != nil {
			return nil, errclass.Storage(err, "cannot back up environment '%s'; nothing was removed", env.Name)
		}
		result.Backup = path
	}

	if err := m.store.Delete(env.Name); err != nil {
		return nil, classify(err)
	}

	if m.archiver != nil {
		pruned, err := m.archiver.Prune(m.now())
		if err != nil {
			m.logger.Warn("pruning backups failed", "err", err)
		}
		result.Pruned = pruned
	}

	details := map[string]any{}
	if result.Backup != "" {
		details["backup"] = result.Backup
	}
	m.record(model.EventTypeEnvironmentRemove, env.Name, details)
	return result, nil
}

// RecordRepair journals a repair performed outside the manager.
func (m *Manager) RecordRepair(report *store.RepairReport) {
	m.record(model.EventTypeEnvironmentRepair, report.Name, map[string]any{
		"created_config":     report.CreatedConfig,
		"created_dirs":       report.CreatedDirs,
		"metadata_rewritten": report.MetadataRewritten,
	})
}

func (m *Manager) record(event model.AuditEventType, name string, details map[string]any) {
	if len(details) == 0 {
		details = nil
	}
	if err := m.journal.Append(event, name, details); err != nil {
		m.logger.Warn("audit append failed", "event", event, "environment", name, "err", err)
	}
}

func describe(description *string) map[string]any {
	if description == nil {
		return nil
	}
	return map[string]any{"description": *description}
}

// classify passes classified errors through and wraps anything else as
// ErrStorage.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *errclass.Error
	if errors.As(err, &e) {
		return err
	}
	return errclass.Storage(err, "storage operation failed")
}
