// Package doctor checks the VEM home for damaged environments and stray
// files, and repairs what can be repaired.
package doctor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vem-project/vem/internal/store"
	"github.com/vem-project/vem/pkg/errclass"
	"github.com/vem-project/vem/pkg/fsutil"
)

// Severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Environment string `json:"environment,omitempty"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	if f.Severity == SeverityError {
		r.Healthy = false
	}
	r.Findings = append(r.Findings, f)
}

// Verifier checks the integrity of the audit journal.
type Verifier interface {
	Verify() (int, error)
}

// Doctor performs health checks over one store.
type Doctor struct {
	store   *store.Store
	journal Verifier
}

// Option configures a Doctor.
type Option func(*Doctor)

// WithJournal adds an audit chain check.
func WithJournal(v Verifier) Option {
	return func(d *Doctor) { d.journal = v }
}

// NewDoctor creates a new doctor.
func NewDoctor(s *store.Store, opts ...Option) *Doctor {
	d := &Doctor{store: s}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check runs all diagnostic checks.
func (d *Doctor) Check() (*Result, error) {
	result := &Result{Healthy: true, Findings: []Finding{}}

	if err := d.checkEnvironments(result); err != nil {
		return nil, err
	}
	if err := d.checkPointer(result); err != nil {
		return nil, err
	}
	d.checkOrphanTmp(result)
	d.checkJournal(result)

	return result, nil
}

func (d *Doctor) checkEnvironments(result *Result) error {
	entries, err := os.ReadDir(d.store.Root())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errclass.Storage(err, "cannot read environments directory")
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, fsutil.TempPrefix) {
			continue
		}
		if !store.IsEnvironmentName(name) {
			result.add(Finding{
				Category:    "name",
				Description: fmt.Sprintf("directory %q is not a valid environment name and is ignored", name),
				Severity:    SeverityWarning,
				Path:        filepath.Join(d.store.Root(), name),
			})
			continue
		}

		insp, err := d.store.Inspect(name)
		if err != nil {
			result.add(Finding{
				Category:    "environment",
				Description: fmt.Sprintf("cannot inspect environment '%s': %v", name, err),
				Severity:    SeverityError,
				Environment: name,
			})
			continue
		}
		d.reportInspection(result, insp)
	}
	return nil
}

func (d *Doctor) reportInspection(result *Result, insp *store.Inspection) {
	if insp.MissingConfig {
		result.add(Finding{
			Category:    "environment",
			Description: fmt.Sprintf("environment '%s' has no %s", insp.Name, store.ConfigFileName),
			Severity:    SeverityWarning,
			Environment: insp.Name,
			Path:        d.store.ConfigFilePath(insp.Name),
		})
	}
	for _, dir := range insp.MissingDirs {
		result.add(Finding{
			Category:    "environment",
			Description: fmt.Sprintf("environment '%s' is missing %s", insp.Name, filepath.ToSlash(dir)),
			Severity:    SeverityWarning,
			Environment: insp.Name,
			Path:        filepath.Join(insp.Path, dir),
		})
	}
	switch {
	case insp.MetadataMissing:
		result.add(Finding{
			Category:    "metadata",
			Description: fmt.Sprintf("environment '%s' has no metadata; defaults are used", insp.Name),
			Severity:    SeverityWarning,
			Environment: insp.Name,
			Path:        d.store.MetadataPath(insp.Name),
		})
	case insp.MetadataCorrupt:
		result.add(Finding{
			Category:    "metadata",
			Description: fmt.Sprintf("environment '%s' has corrupt metadata: %s", insp.Name, insp.MetadataError),
			Severity:    SeverityError,
			Environment: insp.Name,
			Path:        d.store.MetadataPath(insp.Name),
		})
	}
}

func (d *Doctor) checkPointer(result *Result) error {
	link := d.store.CurrentLink()
	info, err := os.Lstat(link)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errclass.Storage(err, "cannot inspect current pointer")
	}
	if info.Mode()&os.ModeSymlink == 0 {
		result.add(Finding{
			Category:    "pointer",
			Description: "current pointer exists but is not a symbolic link",
			Severity:    SeverityError,
			Path:        link,
		})
		return nil
	}

	if _, err := d.store.GetCurrent(); err != nil {
		target, _, _ := d.store.CurrentTarget()
		result.add(Finding{
			Category:    "pointer",
			Description: fmt.Sprintf("current pointer is dangling (target %s); no environment is active", target),
			Severity:    SeverityInfo,
			Path:        link,
		})
	}
	return nil
}

func (d *Doctor) checkOrphanTmp(result *Result) {
	home := filepath.Dir(d.store.CurrentLink())
	if entries, err := os.ReadDir(home); err == nil {
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), fsutil.TempPrefix) {
				result.add(orphanFinding(filepath.Join(home, e.Name())))
			}
		}
	}

	filepath.WalkDir(d.store.Root(), func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if strings.HasPrefix(de.Name(), fsutil.TempPrefix) {
			result.add(orphanFinding(path))
			if de.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
}

func orphanFinding(path string) Finding {
	return Finding{
		Category:    "tmp",
		Description: fmt.Sprintf("orphan temp file: %s", filepath.Base(path)),
		Severity:    SeverityInfo,
		Path:        path,
	}
}

func (d *Doctor) checkJournal(result *Result) {
	if d.journal == nil {
		return
	}
	if _, err := d.journal.Verify(); err != nil {
		result.add(Finding{
			Category:    "audit",
			Description: fmt.Sprintf("audit journal failed verification: %v", err),
			Severity:    SeverityError,
		})
	}
}

// RepairResult reports what Repair changed.
type RepairResult struct {
	Repaired    []*store.RepairReport `json:"repaired"`
	RemovedTemp []string              `json:"removed_temp,omitempty"`
	After       *Result               `json:"after"`
}

// Repair restores incomplete environments and removes orphan temp files,
// then checks again.
func (d *Doctor) Repair() (*RepairResult, error) {
	before, err := d.Check()
	if err != nil {
		return nil, err
	}

	out := &RepairResult{Repaired: []*store.RepairReport{}}
	var names []string
	for _, f := range before.Findings {
		switch f.Category {
		case "environment", "metadata":
			if f.Environment != "" && !slices.Contains(names, f.Environment) {
				names = append(names, f.Environment)
			}
		case "tmp":
			if err := os.RemoveAll(f.Path); err != nil {
				return nil, errclass.Storage(err, "cannot remove temporary file")
			}
			out.RemovedTemp = append(out.RemovedTemp, f.Path)
		}
	}

	for _, name := range names {
		report, err := d.store.Repair(name)
		if err != nil {
			return nil, err
		}
		if report.Changed() {
			out.Repaired = append(out.Repaired, report)
		}
	}

	out.After, err = d.Check()
	if err != nil {
		return nil, err
	}
	return out, nil
}
