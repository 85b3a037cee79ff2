// Package store owns the on-disk layout of VEM environments and the
// current-environment pointer. It is the only package that touches an
// environment directory.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/fsutil"
	"github.com/vem-project/vem/pkg/logging"
	"github.com/vem-project/vem/pkg/metadata"
	"github.com/vem-project/vem/pkg/model"
	"github.com/vem-project/vem/pkg/pathutil"
)

const (
	// ConfigFileName is the editor config stub inside an environment.
	ConfigFileName = ".vimrc"
	// SkeletonDir holds the plugin directory skeleton.
	SkeletonDir = ".vim"
)

// SkeletonDirs are created under SkeletonDir for every environment.
var SkeletonDirs = []string{"autoload", "bundle", "colors", "plugin"}

// Store manages environment directories under root and the pointer at
// currentLink.
type Store struct {
	root        string
	currentLink string
	logger      *logging.Logger
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for warnings about damaged metadata.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for Created and LastUsed.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store rooted at root with the current pointer at currentLink.
func New(root, currentLink string, opts ...Option) *Store {
	s := &Store{
		root:        filepath.Clean(root),
		currentLink: filepath.Clean(currentLink),
		logger:      logging.Global(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the environments root.
func (s *Store) Root() string { return s.root }

// CurrentLink returns the location of the current pointer.
func (s *Store) CurrentLink() string { return s.currentLink }

// Path returns the directory of environment name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// MetadataPath returns the metadata file of environment name.
func (s *Store) MetadataPath(name string) string {
	return filepath.Join(s.root, name, metadata.FileName)
}

// ConfigFilePath returns the editor config stub of environment name.
func (s *Store) ConfigFilePath(name string) string {
	return filepath.Join(s.root, name, ConfigFileName)
}

func (s *Store) skeletonPath(name, dir string) string {
	return filepath.Join(s.root, name, SkeletonDir, dir)
}

// Create creates a new environment with the given name.
// A failure after the directory exists leaves the partial directory in place.
func (s *Store) Create(name string, description *string) (*model.Environment, error) {
	name, err := pathutil.NormalizeName(name)
	if err != nil {
		return nil, err
	}

	meta := model.NewMetadata(s.now(), description)
	data, err := metadata.Encode(meta)
	if err != nil {
		return nil, err
	}

	dir := s.Path(name)
	if _, err := os.Lstat(dir); err == nil {
		return nil, errclass.ErrAlreadyExists.WithMessagef("environment '%s' already exists", name)
	} else if !os.IsNotExist(err) {
		return nil, errclass.Storage(err, "cannot access environment '%s'", name)
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return nil, errclass.Storage(err, "cannot create environments directory")
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, errclass.ErrAlreadyExists.WithMessagef("environment '%s' already exists", name)
		}
		return nil, errclass.Storage(err, "cannot create environment '%s'", name)
	}

	if err := s.writeConfigStub(name); err != nil {
		return nil, err
	}
	for _, d := range SkeletonDirs {
		if err := os.MkdirAll(s.skeletonPath(name, d), 0755); err != nil {
			return nil, errclass.Storage(err, "cannot create %s/%s for environment '%s'", SkeletonDir, d, name)
		}
	}

	if err := s.writeEncoded(name, data); err != nil {
		return nil, err
	}

	s.logger.Debug("environment created", "environment", name, "path", dir)
	return &model.Environment{Name: name, Path: dir, Meta: meta}, nil
}

// Get loads environment name. Missing or corrupt metadata yields defaults.
func (s *Store) Get(name string) (*model.Environment, error) {
	name, err := pathutil.NormalizeName(name)
	if err != nil {
		return nil, err
	}

	info, err := s.statDir(name)
	if err != nil {
		return nil, err
	}
	return s.load(name, info), nil
}

// List returns every environment under root ordered by name. A missing
// root yields an empty list.
func (s *Store) List() ([]*model.Environment, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []*model.Environment{}, nil
		}
		return nil, errclass.Storage(err, "cannot read environments directory")
	}

	envs := make([]*model.Environment, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !IsEnvironmentName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		envs = append(envs, s.load(entry.Name(), info))
	}

	slices.SortFunc(envs, func(a, b *model.Environment) int {
		return strings.Compare(a.Name, b.Name)
	})
	return envs, nil
}

// Change is a set of metadata edits applied in one write. Description is
// only touched when SetDescription is true; a nil Description clears it.
type Change struct {
	SetDescription bool
	Description    *string
	AddTags        []string
	RemoveTags     []string
}

// Empty reports whether c edits nothing.
func (c Change) Empty() bool {
	return !c.SetDescription && len(c.AddTags) == 0 && len(c.RemoveTags) == 0
}

// Update replaces the description of environment name. A nil description
// clears it. Other metadata fields are preserved.
func (s *Store) Update(name string, description *string) (*model.Environment, error) {
	return s.Edit(name, Change{SetDescription: true, Description: description})
}

// UpdateTags adds and removes tags on environment name.
func (s *Store) UpdateTags(name string, add, remove []string) (*model.Environment, error) {
	return s.Edit(name, Change{AddTags: add, RemoveTags: remove})
}

// Edit applies c to environment name and rewrites its metadata once.
// Fields c does not touch are preserved.
func (s *Store) Edit(name string, c Change) (*model.Environment, error) {
	add, err := normalizeTags(c.AddTags)
	if err != nil {
		return nil, err
	}
	remove, err := normalizeTags(c.RemoveTags)
	if err != nil {
		return nil, err
	}

	env, err := s.Get(name)
	if err != nil {
		return nil, err
	}

	if c.SetDescription {
		env.Meta.Description = c.Description
	}
	if len(add) > 0 || len(remove) > 0 {
		env.Meta = env.Meta.WithTags(add, remove)
	}
	if err := s.writeMetadata(env.Name, env.Meta); err != nil {
		return nil, err
	}
	return env, nil
}

// Delete removes environment name and everything under it. The current
// environment cannot be deleted; a dangling pointer never blocks.
func (s *Store) Delete(name string) error {
	name, err := pathutil.NormalizeName(name)
	if err != nil {
		return err
	}
	if _, err := s.statDir(name); err != nil {
		return err
	}
	if err := s.Contained(name); err != nil {
		return err
	}

	current, err := s.GetCurrent()
	switch {
	case err == nil:
		if current.Name == name {
			return errclass.ErrActiveEnvironment.WithMessagef("cannot remove active environment '%s'", name)
		}
	case errors.Is(err, errclass.ErrNoCurrent):
	default:
		return err
	}

	if err := os.RemoveAll(s.Path(name)); err != nil {
		return errclass.Storage(err, "cannot remove environment '%s'", name)
	}
	s.logger.Debug("environment removed", "environment", name)
	return nil
}

// IsEnvironmentName reports whether a directory entry under root names an
// environment: a valid name already in NFC form.
func IsEnvironmentName(name string) bool {
	normalized, err := pathutil.NormalizeName(name)
	return err == nil && normalized == name
}

func (s *Store) statDir(name string) (os.FileInfo, error) {
	info, err := os.Stat(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errclass.ErrNotFound.WithMessagef("environment '%s' not found", name)
		}
		return nil, errclass.Storage(err, "cannot access environment '%s'", name)
	}
	if !info.IsDir() {
		return nil, errclass.ErrNotFound.WithMessagef("environment '%s' not found", name)
	}
	return info, nil
}

// Contained rejects environments whose directory resolves outside root,
// such as a symlink to a directory elsewhere.
func (s *Store) Contained(name string) error {
	name, err := pathutil.NormalizeName(name)
	if err != nil {
		return err
	}
	if err := pathutil.ValidatePathSafety(s.root, s.Path(name)); err != nil {
		return errclass.ErrPathEscape.WithMessagef("environment '%s' resolves outside the environment root", name).
			Wrap(fmt.Errorf("%s: %w", s.root, err))
	}
	return nil
}

func (s *Store) load(name string, info os.FileInfo) *model.Environment {
	meta, err := s.readMetadata(name)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("unreadable metadata, using defaults", "environment", name, "err", err)
		}
		meta = defaultMetadata(info)
	}
	return &model.Environment{Name: name, Path: s.Path(name), Meta: meta}
}

func (s *Store) readMetadata(name string) (model.Metadata, error) {
	data, err := os.ReadFile(s.MetadataPath(name))
	if err != nil {
		return model.Metadata{}, err
	}
	return metadata.Decode(data)
}

func (s *Store) writeMetadata(name string, meta model.Metadata) error {
	data, err := metadata.Encode(meta)
	if err != nil {
		return err
	}
	return s.writeEncoded(name, data)
}

func (s *Store) writeEncoded(name string, data []byte) error {
	if err := fsutil.AtomicWrite(s.MetadataPath(name), data, 0644); err != nil {
		return errclass.Storage(err, "cannot write metadata for environment '%s'", name)
	}
	return nil
}

func (s *Store) writeConfigStub(name string) error {
	stub := fmt.Sprintf("\" VEM Environment: %s\n", name)
	if err := fsutil.AtomicWrite(s.ConfigFilePath(name), []byte(stub), 0644); err != nil {
		return errclass.Storage(err, "cannot write config file for environment '%s'", name)
	}
	return nil
}

// defaultMetadata stands in for a missing or corrupt record.
func defaultMetadata(info os.FileInfo) model.Metadata {
	return model.Metadata{Created: info.ModTime().UTC()}
}

func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n, err := pathutil.NormalizeTag(t)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
