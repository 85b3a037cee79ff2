// Package backup archives environments before removal and prunes old
// archives by retention.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vem-project/vem/pkg/fsutil"
)

const (
	// Extension is the suffix of every archive.
	Extension = ".tar.gz"

	stampLayout = "20060102T150405Z"
)

// Entry describes one archive in the backup directory.
type Entry struct {
	Environment string    `json:"environment"`
	Created     time.Time `json:"created"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
}

// Archiver writes gzip-compressed tarballs of environment directories.
type Archiver struct {
	dir       string
	retention time.Duration
	now       func() time.Time
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithClock overrides the time used to stamp archive names.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) { a.now = now }
}

// NewArchiver creates an archiver writing to dir. A zero retention keeps
// every archive.
func NewArchiver(dir string, retention time.Duration, opts ...Option) *Archiver {
	a := &Archiver{dir: dir, retention: retention, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dir returns the backup directory.
func (a *Archiver) Dir() string { return a.dir }

// Archive writes srcDir, stored under a top-level directory called name, to
// a new archive and returns its path.
func (a *Archiver) Archive(name, srcDir string) (string, error) {
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	stamp := a.now().UTC().Format(stampLayout)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	dest := filepath.Join(a.dir, fmt.Sprintf("%s-%s-%s%s", name, stamp, suffix, Extension))

	tmp, err := os.CreateTemp(a.dir, fsutil.TempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("create temporary archive: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)
	if err := writeTree(tw, name, srcDir); err != nil {
		return "", err
	}
	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("close gzip: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	if err := fsutil.RenameAndSync(tmpPath, dest); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}

	success = true
	return dest, nil
}

func writeTree(tw *tar.Writer, name, srcDir string) error {
	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		var link string
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			if link, err = os.Readlink(path); err != nil {
				return fmt.Errorf("read link %s: %w", path, err)
			}
		case info.Mode().IsRegular(), info.IsDir():
		default:
			// Sockets, devices and pipes are not part of an editor config.
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("tar header %s: %w", path, err)
		}
		hdr.Name = filepath.ToSlash(filepath.Join(name, rel))
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header %s: %w", path, err)
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}
		return nil
	})
}

// List returns the archives in the backup directory, oldest first.
// Files that do not look like archives are ignored.
func (a *Archiver) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		env, created, ok := parseName(de.Name())
		if !ok {
			continue
		}
		var size int64
		if info, err := de.Info(); err == nil {
			size = info.Size()
		}
		entries = append(entries, Entry{
			Environment: env,
			Created:     created,
			Path:        filepath.Join(a.dir, de.Name()),
			Size:        size,
		})
	}

	slices.SortFunc(entries, func(x, y Entry) int {
		if c := x.Created.Compare(y.Created); c != 0 {
			return c
		}
		return strings.Compare(x.Path, y.Path)
	})
	return entries, nil
}

// Prune removes archives older than the retention period and returns
// their paths.
func (a *Archiver) Prune(now time.Time) ([]string, error) {
	if a.retention <= 0 {
		return nil, nil
	}

	entries, err := a.List()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, e := range entries {
		if now.Sub(e.Created) <= a.retention {
			continue
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", filepath.Base(e.Path), err)
		}
		removed = append(removed, e.Path)
	}
	return removed, nil
}

// parseName splits "<env>-<stamp>-<suffix>.tar.gz". The environment name
// may itself contain '-'.
func parseName(filename string) (env string, created time.Time, ok bool) {
	base, found := strings.CutSuffix(filename, Extension)
	if !found {
		return "", time.Time{}, false
	}
	i := strings.LastIndexByte(base, '-')
	if i <= 0 {
		return "", time.Time{}, false
	}
	base = base[:i]
	j := strings.LastIndexByte(base, '-')
	if j <= 0 {
		return "", time.Time{}, false
	}
	created, err := time.Parse(stampLayout, base[j+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return base[:j], created.UTC(), true
}
