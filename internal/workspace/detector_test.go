package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschulkind/context-portal/internal/apperr"
)

// realTemp returns a temp dir with symlinks resolved so expectations match
// what the detector reports.
func realTemp(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func mkdirAll(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(p, 0o755))
	return p
}

func touch(t *testing.T, parts ...string) {
	t.Helper()
	p := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("{}"), 0o644))
}

func slash(p string) string { return filepath.ToSlash(p) }

func TestFindRoot_VCSAncestor(t *testing.T) {
	proj := mkdirAll(t, realTemp(t), "proj")
	mkdirAll(t, proj, ".git")
	src := mkdirAll(t, proj, "src")

	root, rep, err := NewDetector().FindRoot(src)
	require.NoError(t, err)
	assert.Equal(t, slash(proj), root)
	assert.Equal(t, MethodVCS, rep.DetectionMethod)
	assert.Equal(t, []string{".git"}, rep.IndicatorsFound)
}

func TestFindRoot_StoreMarkerBeatsNearerManifest(t *testing.T) {
	proj := mkdirAll(t, realTemp(t), "proj")
	touch(t, proj, StoreDirName, StoreFileName)
	touch(t, proj, "package.json")
	nested := mkdirAll(t, proj, "nested")
	touch(t, nested, "pyproject.toml")
	deep := mkdirAll(t, nested, "deep")

	root, rep, err := NewDetector().FindRoot(deep)
	require.NoError(t, err)
	assert.Equal(t, slash(proj), root)
	assert.Equal(t, MethodStoreMarker, rep.DetectionMethod)
	assert.Equal(t, []string{StoreDirName + "/" + StoreFileName, "package.json"}, rep.IndicatorsFound)
	assert.Equal(t, slash(filepath.Join(proj, StoreDirName)), rep.ContextPortalPath)
}

func TestFindRoot_CustomStoreMarker(t *testing.T) {
	proj := mkdirAll(t, realTemp(t), "proj")
	touch(t, proj, "data", "ctx.db")
	nested := mkdirAll(t, proj, "nested")
	touch(t, nested, "go.mod")
	// The default store file no longer marks a workspace.
	touch(t, nested, StoreDirName, StoreFileName)
	deep := mkdirAll(t, nested, "deep")

	d := NewDetector(WithStoreMarker(filepath.Join("data", "ctx.db")))
	root, rep, err := d.FindRoot(deep)
	require.NoError(t, err)
	assert.Equal(t, slash(proj), root)
	assert.Equal(t, MethodStoreMarker, rep.DetectionMethod)
	assert.Equal(t, []string{"data/ctx.db"}, rep.IndicatorsFound)
	assert.Equal(t, slash(filepath.Join(proj, "data")), rep.ContextPortalPath)
	assert.Contains(t, rep.Evaluated, "data/ctx.db")
	assert.NotContains(t, rep.Evaluated, StoreDirName+"/"+StoreFileName)
}

func TestFindRoot_MostSpecificManifestWins(t *testing.T) {
	repo := mkdirAll(t, realTemp(t), "repo")
	mkdirAll(t, repo, ".git")
	pkg := mkdirAll(t, repo, "packages", "web")
	touch(t, pkg, "package.json")
	src := mkdirAll(t, pkg, "src")

	root, rep, err := NewDetector().FindRoot(src)
	require.NoError(t, err)
	assert.Equal(t, slash(pkg), root)
	assert.Equal(t, MethodManifest, rep.DetectionMethod)
}

func TestFindRoot_ClassBreaksTiesInOneDirectory(t *testing.T) {
	proj := mkdirAll(t, realTemp(t), "proj")
	touch(t, proj, "go.mod")
	touch(t, proj, "Cargo.toml")
	mkdirAll(t, proj, ".git")

	_, rep, err := NewDetector().FindRoot(proj)
	require.NoError(t, err)
	assert.Equal(t, MethodVCS, rep.DetectionMethod)
	assert.Equal(t, ".git", rep.IndicatorsFound[0])
}

func TestFindRoot_GlobManifest(t *testing.T) {
	proj := mkdirAll(t, realTemp(t), "proj")
	touch(t, proj, "App.csproj")
	sub := mkdirAll(t, proj, "Controllers")

	root, rep, err := NewDetector().FindRoot(sub)
	require.NoError(t, err)
	assert.Equal(t, slash(proj), root)
	assert.Equal(t, []string{"*.csproj"}, rep.IndicatorsFound)
}

func TestFindRoot_StartingAtAFile(t *testing.T) {
	proj := mkdirAll(t, realTemp(t), "proj")
	mkdirAll(t, proj, ".git")
	touch(t, proj, "main.go")

	root, _, err := NewDetector().FindRoot(filepath.Join(proj, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, slash(proj), root)
}

func TestFindRoot_FallbackAndRequired(t *testing.T) {
	onlyStore := []Indicator{DefaultIndicators()[0]}
	start := mkdirAll(t, realTemp(t), "plain", "dir")

	root, rep, err := NewDetector(WithIndicators(onlyStore)).FindRoot(start)
	require.NoError(t, err)
	assert.Equal(t, slash(start), root)
	assert.Equal(t, MethodFallback, rep.DetectionMethod)

	_, rep, err = NewDetector(WithIndicators(onlyStore), WithFallback(false)).FindRoot(start)
	assert.ErrorIs(t, err, apperr.ErrWorkspaceNotFound)
	assert.Equal(t, MethodNone, rep.DetectionMethod)
	assert.NotEmpty(t, rep.Visited)

	_, ok := NewDetector(WithIndicators(onlyStore), WithFallback(false)).AutoDetect(start)
	assert.False(t, ok)
}

func TestFindRoot_SymlinkCycleTerminates(t *testing.T) {
	base := realTemp(t)
	proj := mkdirAll(t, base, "proj")
	mkdirAll(t, proj, ".git")
	inner := mkdirAll(t, proj, "a")
	if err := os.Symlink(proj, filepath.Join(inner, "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	root, _, err := NewDetector().FindRoot(filepath.Join(inner, "loop", "a", "loop", "a"))
	require.NoError(t, err)
	assert.Equal(t, slash(proj), root)
}

func TestResolve(t *testing.T) {
	proj := mkdirAll(t, realTemp(t), "proj")
	touch(t, proj, StoreDirName, StoreFileName)
	src := mkdirAll(t, proj, "src")
	d := NewDetector()

	explicit := filepath.Join(realTemp(t), "explicit")
	id, err := d.Resolve(explicit, true, src)
	require.NoError(t, err)
	assert.Equal(t, ID(slash(explicit)), id)

	id, err = d.Resolve("", true, src)
	require.NoError(t, err)
	assert.Equal(t, ID(slash(proj)), id)

	_, err = d.Resolve("", false, src)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	root, ok := d.AutoDetect(src)
	assert.True(t, ok)
	assert.Equal(t, slash(proj), root)
}

func TestNormalize(t *testing.T) {
	id, err := Normalize(`C:\Users\dev\proj\`)
	require.NoError(t, err)
	assert.Equal(t, ID("C:/Users/dev/proj"), id)

	id, err = Normalize("/srv//work/./proj/")
	require.NoError(t, err)
	assert.Equal(t, ID("/srv/work/proj"), id)

	_, err = Normalize("  ")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestNormalizeResolvesSymlinks(t *testing.T) {
	root := realTemp(t)
	proj := mkdirAll(t, root, "proj")
	link := filepath.Join(root, "alias")
	require.NoError(t, os.Symlink(proj, link))

	viaLink, err := Normalize(link)
	require.NoError(t, err)
	assert.Equal(t, ID(slash(proj)), viaLink)

	// Paths that do not exist are kept as spelled.
	missing, err := Normalize(filepath.Join(link, "gone"))
	require.NoError(t, err)
	assert.Equal(t, ID(slash(filepath.Join(link, "gone"))), missing)
}
