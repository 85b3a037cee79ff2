package store

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/pathutil"
)

// Inspection describes which parts of an environment's layout are missing.
type Inspection struct {
	Name            string   `json:"name"`
	Path            string   `json:"path"`
	MissingConfig   bool     `json:"missing_config,omitempty"`
	MissingDirs     []string `json:"missing_dirs,omitempty"` // relative to Path
	MetadataMissing bool     `json:"metadata_missing,omitempty"`
	MetadataCorrupt bool     `json:"metadata_corrupt,omitempty"`
	MetadataError   string   `json:"metadata_error,omitempty"`
}

// Complete reports whether nothing is missing or damaged.
func (i *Inspection) Complete() bool {
	return !i.MissingConfig && len(i.MissingDirs) == 0 && !i.MetadataMissing && !i.MetadataCorrupt
}

// RepairReport lists what Repair restored.
type RepairReport struct {
	Name              string   `json:"name"`
	CreatedConfig     bool     `json:"created_config,omitempty"`
	CreatedDirs       []string `json:"created_dirs,omitempty"`
	MetadataRewritten bool     `json:"metadata_rewritten,omitempty"`
}

// Changed reports whether Repair modified anything.
func (r *RepairReport) Changed() bool {
	return r.CreatedConfig || len(r.CreatedDirs) > 0 || r.MetadataRewritten
}

// Inspect examines the layout of environment name without modifying it.
func (s *Store) Inspect(name string) (*Inspection, error) {
	name, err := pathutil.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.statDir(name); err != nil {
		return nil, err
	}

	insp := &Inspection{Name: name, Path: s.Path(name)}

	if _, err := os.Stat(s.ConfigFilePath(name)); err != nil {
		if !os.IsNotExist(err) {
			return nil, errclass.Storage(err, "cannot inspect environment '%s'", name)
		}
		insp.MissingConfig = true
	}

	for _, d := range SkeletonDirs {
		info, err := os.Stat(s.skeletonPath(name, d))
		if err == nil && info.IsDir() {
			continue
		}
		if err != nil && !os.IsNotExist(err) {
			return nil, errclass.Storage(err, "cannot inspect environment '%s'", name)
		}
		insp.MissingDirs = append(insp.MissingDirs, filepath.Join(SkeletonDir, d))
	}

	if _, err := s.readMetadata(name); err != nil {
		switch {
		case os.IsNotExist(err):
			insp.MetadataMissing = true
		case errors.Is(err, errclass.ErrCodec):
			insp.MetadataCorrupt = true
			insp.MetadataError = err.Error()
		default:
			return nil, errclass.Storage(err, "cannot read metadata for environment '%s'", name)
		}
	}
	return insp, nil
}

// Repair restores the missing parts of environment name: the config stub,
// skeleton directories, and a missing or corrupt metadata record. A valid
// metadata record is never touched.
func (s *Store) Repair(name string) (*RepairReport, error) {
	insp, err := s.Inspect(name)
	if err != nil {
		return nil, err
	}
	name = insp.Name
	report := &RepairReport{Name: name}

	// Taken before any write so restored metadata keeps the original time.
	info, err := s.statDir(name)
	if err != nil {
		return nil, err
	}
	if err := s.Contained(name); err != nil {
		return nil, err
	}

	if insp.MissingConfig {
		if err := s.writeConfigStub(name); err != nil {
			return report, err
		}
		report.CreatedConfig = true
	}

	for _, d := range insp.MissingDirs {
		p := filepath.Join(s.Path(name), d)
		// A stray file where a directory belongs is left for the user.
		if fi, err := os.Lstat(p); err == nil && !fi.IsDir() {
			s.logger.Warn("not a directory, leaving in place", "environment", name, "path", d)
			continue
		}
		if err := os.MkdirAll(p, 0755); err != nil {
			return report, errclass.Storage(err, "cannot create %s for environment '%s'", d, name)
		}
		report.CreatedDirs = append(report.CreatedDirs, d)
	}

	if insp.MetadataMissing || insp.MetadataCorrupt {
		if err := s.writeMetadata(name, defaultMetadata(info)); err != nil {
			return report, err
		}
		report.MetadataRewritten = true
	}

	if report.Changed() {
		s.logger.Info("environment repaired", "environment", name)
	}
	return report, nil
}
