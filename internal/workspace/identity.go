package workspace

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mschulkind/context-portal/internal/apperr"
)

// ID is a workspace identity: an absolute path in forward-slash form.
type ID string

// String returns the identity in forward-slash form.
func (id ID) String() string { return string(id) }

// Path returns the identity in the host's separator form.
func (id ID) Path() string { return filepath.FromSlash(string(id)) }

var drivePath = regexp.MustCompile(`^[A-Za-z]:/`)

// Normalize converts any path spelling to an identity. Backslashes become
// forward slashes before anything else looks at the path. Relative paths are
// made absolute against the working directory and symlinks are resolved when
// the path exists; drive-letter paths are kept as given since they are
// absolute on the host that produced them.
func Normalize(p string) (ID, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	if p == "" {
		return "", apperr.Invalid("workspace identity must not be empty")
	}
	if drivePath.MatchString(p) {
		return ID(path.Clean(p)), nil
	}
	abs, err := filepath.Abs(filepath.FromSlash(p))
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidArgument, err, "workspace identity %q", p)
	}
	// One directory has one identity however it was reached.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return ID(filepath.ToSlash(abs)), nil
}
