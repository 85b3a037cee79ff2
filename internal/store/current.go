package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/fsutil"
	"github.com/vem-project/vem/pkg/model"
)

// GetCurrent resolves the current pointer. An absent or dangling pointer,
// or one that does not target an environment under root, is ErrNoCurrent.
func (s *Store) GetCurrent() (*model.Environment, error) {
	name, err := s.currentName()
	if err != nil {
		return nil, err
	}

	env, err := s.Get(name)
	if err != nil {
		if errors.Is(err, errclass.ErrNotFound) {
			return nil, errclass.ErrNoCurrent.WithMessage("current environment no longer exists")
		}
		return nil, err
	}
	return env, nil
}

// SetCurrent points the current pointer at environment name and records
// the switch time in its metadata.
func (s *Store) SetCurrent(name string) error {
	env, err := s.Get(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.currentLink), 0755); err != nil {
		return errclass.Storage(err, "cannot create directory for current pointer")
	}
	if err := fsutil.ReplaceSymlink(s.linkTarget(env.Name), s.currentLink); err != nil {
		return errclass.Storage(err, "cannot switch to environment '%s'", env.Name)
	}

	now := s.now().UTC()
	env.Meta.LastUsed = &now
	if err := s.writeMetadata(env.Name, env.Meta); err != nil {
		return err
	}

	s.logger.Debug("current environment set", "environment", env.Name)
	return nil
}

// CurrentTarget returns the raw target of the current pointer, resolved
// against the pointer's directory. ok is false when there is no link.
func (s *Store) CurrentTarget() (target string, ok bool, err error) {
	info, err := os.Lstat(s.currentLink)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errclass.Storage(err, "cannot read current pointer")
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return "", false, nil
	}

	target, err = os.Readlink(s.currentLink)
	if err != nil {
		return "", false, errclass.Storage(err, "cannot read current pointer")
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(s.currentLink), target)
	}
	return filepath.Clean(target), true, nil
}

func (s *Store) currentName() (string, error) {
	target, ok, err := s.CurrentTarget()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errclass.ErrNoCurrent.WithMessage("no environment currently active")
	}

	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return "", errclass.ErrNoCurrent.WithMessage("current pointer does not target an environment")
	}
	if !IsEnvironmentName(rel) {
		return "", errclass.ErrNoCurrent.WithMessage("current pointer does not target an environment")
	}
	return rel, nil
}

// linkTarget is relative to the pointer's directory when possible so the
// home directory can be moved as a whole.
func (s *Store) linkTarget(name string) string {
	path := s.Path(name)
	rel, err := filepath.Rel(filepath.Dir(s.currentLink), path)
	if err != nil {
		return path
	}
	return rel
}
