package workspace

import (
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
)

// Class orders indicator kinds. Lower values take precedence.
type Class int

const (
	ClassStoreMarker Class = iota
	ClassVCS
	ClassManifest
)

// String returns the detection method the class reports.
func (c Class) String() string {
	switch c {
	case ClassStoreMarker:
		return "store_marker"
	case ClassVCS:
		return "vcs"
	case ClassManifest:
		return "manifest"
	default:
		return "unknown"
	}
}

const (
	// StoreDirName is the per-workspace storage directory.
	StoreDirName = "context_portal"
	// StoreFileName is the database file inside StoreDirName.
	StoreFileName = "context.db"
)

// Indicator is one marker evaluated in every visited directory.
type Indicator struct {
	Name  string
	Class Class
	match func(dir string) bool
}

// Present reports whether the indicator fires in dir.
func (i Indicator) Present(dir string) bool { return i.match(dir) }

func exists(rel string) func(string) bool {
	return func(dir string) bool {
		_, err := os.Stat(filepath.Join(dir, rel))
		return err == nil
	}
}

func isFile(rel string) func(string) bool {
	return func(dir string) bool {
		info, err := os.Stat(filepath.Join(dir, rel))
		return err == nil && info.Mode().IsRegular()
	}
}

// pattern fires when any entry of dir matches the glob.
func pattern(expr string) func(string) bool {
	g := glob.MustCompile(expr)
	return func(dir string) bool {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return false
		}
		for _, e := range entries {
			if !e.IsDir() && g.Match(e.Name()) {
				return true
			}
		}
		return false
	}
}

// StoreMarker is the indicator of an initialized workspace whose store file
// sits at rel, in forward-slash form relative to the root.
func StoreMarker(rel string) Indicator {
	return Indicator{Name: rel, Class: ClassStoreMarker, match: isFile(filepath.FromSlash(rel))}
}

// DefaultIndicators returns the indicator list in evaluation order.
func DefaultIndicators() []Indicator {
	inds := []Indicator{
		StoreMarker(StoreDirName + "/" + StoreFileName),
		{Name: ".git", Class: ClassVCS, match: exists(".git")},
		{Name: ".hg", Class: ClassVCS, match: exists(".hg")},
		{Name: ".svn", Class: ClassVCS, match: exists(".svn")},
	}
	for _, name := range []string{
		"package.json",
		"pyproject.toml",
		"setup.py",
		"requirements.txt",
		"Cargo.toml",
		"go.mod",
		"pom.xml",
		"build.gradle",
		"build.gradle.kts",
		"composer.json",
		"Gemfile",
		"CMakeLists.txt",
	} {
		inds = append(inds, Indicator{Name: name, Class: ClassManifest, match: isFile(name)})
	}
	for _, expr := range []string{"*.csproj", "*.sln"} {
		inds = append(inds, Indicator{Name: expr, Class: ClassManifest, match: pattern(expr)})
	}
	return inds
}
