// Package fsutil provides filesystem utilities for atomic writes and link swaps.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

// TempPrefix starts the name of every temporary file or link VEM creates.
// Leftovers with this prefix are safe to delete.
const TempPrefix = ".vem-tmp-"

// AtomicWrite writes data to a temporary file, fsyncs, then renames to target path.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("atomic write create tmp: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up on failure
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("atomic write chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("atomic write fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomic write close: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic write rename: %w", err)
	}
	if err := FsyncDir(dir); err != nil {
		return fmt.Errorf("atomic write fsync dir: %w", err)
	}

	success = true
	return nil
}

// ReplaceSymlink points link at target. The new link is created under a
// unique temporary name and renamed over link, so on POSIX systems readers
// observe either the old or the new target, never a missing link.
//
// Windows cannot rename over an existing link; there the old link is removed
// first and a short window without a link remains.
func ReplaceSymlink(target, link string) error {
	tmp := filepath.Join(filepath.Dir(link), TempPrefix+"link-"+uuid.NewString())
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("create temporary link: %w", err)
	}

	err := RenameAndSync(tmp, link)
	if err != nil && runtime.GOOS == "windows" {
		if rmErr := os.Remove(link); rmErr == nil || os.IsNotExist(rmErr) {
			err = RenameAndSync(tmp, link)
		}
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace link: %w", err)
	}
	return nil
}

// RenameAndSync renames old to new and fsyncs the parent directory.
func RenameAndSync(oldpath, newpath string) error {
	if err := os.Rename(oldpath, newpath); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return FsyncDir(filepath.Dir(newpath))
}

// FsyncDir fsyncs a directory to ensure rename visibility is durable.
func FsyncDir(dirPath string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dirPath)
	if err != nil {
		return fmt.Errorf("fsync dir open: %w", err)
	}
	defer d.Close()
	return d.Sync()
}
