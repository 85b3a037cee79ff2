// Package pathutil provides environment-name and path validation for VEM.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/vem-project/vem/pkg/errclass"
)

// MaxNameLength bounds environment names and tags so they stay usable as a
// single path segment on every supported filesystem.
const MaxNameLength = 128

// NormalizeName NFC-normalizes name and validates it as an environment name.
// The returned string is the form used on disk.
func NormalizeName(name string) (string, error) {
	name = norm.NFC.String(name)
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ValidateName checks that name is usable as an environment directory name:
// non-empty and made only of letters, digits, '-' and '_'.
func ValidateName(name string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessage("environment name must not be empty")
	}
	if len(name) > MaxNameLength {
		return errclass.ErrNameInvalid.WithMessagef("environment name is longer than %d bytes", MaxNameLength)
	}

	if strings.ContainsAny(name, "/\\") {
		return errclass.ErrNameInvalid.WithMessagef("environment name must not contain path separators: %q", name)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("environment name must not contain control characters: %q", name)
		}
		if !isNameRune(r) {
			return errclass.ErrNameInvalid.WithMessagef("environment name may only contain letters, digits, '-' and '_': %q", name)
		}
	}

	return nil
}

// NormalizeTag NFC-normalizes tag and validates it.
func NormalizeTag(tag string) (string, error) {
	tag = norm.NFC.String(tag)
	if err := ValidateTag(tag); err != nil {
		return "", err
	}
	return tag, nil
}

// ValidateTag validates a metadata tag (same alphabet as environment names).
func ValidateTag(tag string) error {
	if tag == "" {
		return errclass.ErrNameInvalid.WithMessage("tag must not be empty")
	}
	if len(tag) > MaxNameLength {
		return errclass.ErrNameInvalid.WithMessagef("tag is longer than %d bytes", MaxNameLength)
	}
	for _, r := range tag {
		if !isNameRune(r) {
			return errclass.ErrNameInvalid.WithMessagef("tag may only contain letters, digits, '-' and '_': %q", tag)
		}
	}
	return nil
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
}

// ValidatePathSafety verifies target path does not escape root.
func ValidatePathSafety(root, targetPath string) error {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errclass.ErrPathEscape.WithMessage("cannot resolve storage root").Wrap(err)
	}

	// Try resolving target; if it doesn't exist, resolve closest ancestor
	resolvedTarget, err := filepath.EvalSymlinks(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedTarget = resolveClosestAncestor(targetPath)
		} else {
			return errclass.ErrPathEscape.WithMessage("cannot resolve target").Wrap(err)
		}
	}

	sep := string(filepath.Separator)
	if !strings.HasPrefix(resolvedTarget+sep, resolvedRoot+sep) &&
		resolvedTarget != resolvedRoot {
		return errclass.ErrPathEscape.WithMessage("path escapes storage root")
	}

	return nil
}

// resolveClosestAncestor walks up from path to find the closest existing
// ancestor, resolves it, then appends the remaining components.
func resolveClosestAncestor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == path {
		return filepath.Clean(path)
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(path)
		}
	}
	return filepath.Join(resolved, base)
}
