// Package workspace locates the project directory a store belongs to.
//
// Detection walks from a start directory toward the filesystem root and scores
// each visited directory against ordered indicator classes. A directory that
// already holds a store wins outright, at any depth. Otherwise the deepest
// directory carrying a version-control or manifest marker wins, and within one
// directory the indicator class decides the reported method.
package workspace

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mschulkind/context-portal/internal/apperr"
)

// Detection methods reported in Report.DetectionMethod.
const (
	MethodStoreMarker = "store_marker"
	MethodVCS         = "vcs"
	MethodManifest    = "manifest"
	MethodFallback    = "fallback"
	MethodNone        = "none"
)

// Report describes one detection run. It is diagnostic only.
type Report struct {
	StartPath         string   `json:"start_path"`
	DetectedWorkspace string   `json:"detected_workspace,omitempty"`
	DetectionMethod   string   `json:"detection_method"`
	IndicatorsFound   []string `json:"indicators_found"`
	Evaluated         []string `json:"evaluated"`
	Visited           []string `json:"visited"`
	ContextPortalPath string   `json:"context_portal_path,omitempty"`
}

// Detector finds workspace roots.
type Detector struct {
	indicators  []Indicator
	fallback    bool
	storeMarker string
}

// Option configures a Detector.
type Option func(*Detector)

// WithIndicators replaces the indicator list.
func WithIndicators(inds []Indicator) Option {
	return func(d *Detector) { d.indicators = inds }
}

// WithFallback controls whether the start directory is returned when no
// indicator fires anywhere on the way up.
func WithFallback(enabled bool) Option {
	return func(d *Detector) { d.fallback = enabled }
}

// WithStoreMarker replaces the store marker with rel, a store file path
// relative to the workspace root.
func WithStoreMarker(rel string) Option {
	return func(d *Detector) { d.storeMarker = path.Clean(filepath.ToSlash(rel)) }
}

// NewDetector returns a detector with the default indicators and fallback on.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{indicators: DefaultIndicators(), fallback: true, storeMarker: StoreDirName + "/" + StoreFileName}
	for _, opt := range opts {
		opt(d)
	}
	if d.storeMarker != StoreDirName+"/"+StoreFileName {
		inds := []Indicator{StoreMarker(d.storeMarker)}
		for _, ind := range d.indicators {
			if ind.Class != ClassStoreMarker {
				inds = append(inds, ind)
			}
		}
		d.indicators = inds
	}
	sort.SliceStable(d.indicators, func(i, j int) bool {
		return d.indicators[i].Class < d.indicators[j].Class
	})
	return d
}

type hit struct {
	dir   string
	class Class
	names []string
}

// FindRoot walks upward from start and returns the chosen directory in
// forward-slash form. It fails with WorkspaceNotFound when nothing qualifies and
// fallback is disabled.
func (d *Detector) FindRoot(start string) (string, Report, error) {
	begin, err := startDir(start)
	if err != nil {
		return "", Report{}, err
	}
	rep := Report{
		StartPath:       filepath.ToSlash(begin),
		DetectionMethod: MethodNone,
		Evaluated:       make([]string, 0, len(d.indicators)),
	}
	for _, ind := range d.indicators {
		rep.Evaluated = append(rep.Evaluated, ind.Name)
	}

	var store, nearest *hit
	// begin is already a real path, so walking parents ends at the root even
	// when the tree contains symlink cycles.
	for dir := begin; ; {
		rep.Visited = append(rep.Visited, filepath.ToSlash(dir))
		if h := d.evaluate(dir); h != nil {
			if h.class == ClassStoreMarker {
				store = h
				break
			}
			if nearest == nil {
				nearest = h
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	chosen := store
	if chosen == nil {
		chosen = nearest
	}
	switch {
	case chosen != nil:
		rep.DetectionMethod = chosen.class.String()
		rep.IndicatorsFound = chosen.names
	case d.fallback:
		chosen = &hit{dir: begin}
		rep.DetectionMethod = MethodFallback
		rep.IndicatorsFound = []string{}
	default:
		rep.IndicatorsFound = []string{}
		return "", rep, apperr.New(apperr.WorkspaceNotFound, "no workspace indicator found from %s to the filesystem root", rep.StartPath)
	}

	root := filepath.ToSlash(chosen.dir)
	rep.DetectedWorkspace = root
	rep.ContextPortalPath = path.Join(root, path.Dir(d.storeMarker))
	return root, rep, nil
}

// evaluate returns the indicators firing in dir, best class first.
func (d *Detector) evaluate(dir string) *hit {
	var h *hit
	for _, ind := range d.indicators {
		if !ind.Present(dir) {
			continue
		}
		if h == nil {
			h = &hit{dir: dir, class: ind.Class}
		}
		h.names = append(h.names, ind.Name)
	}
	return h
}

// AutoDetect returns the detected root, or false when nothing qualified.
func (d *Detector) AutoDetect(start string) (string, bool) {
	root, _, err := d.FindRoot(start)
	if err != nil {
		return "", false
	}
	return root, true
}

// Resolve prefers an explicit identity and only runs detection when none is
// given and autoDetect permits it.
func (d *Detector) Resolve(explicit string, autoDetect bool, start string) (ID, error) {
	if strings.TrimSpace(explicit) != "" {
		return Normalize(explicit)
	}
	if !autoDetect {
		return "", apperr.Invalid("workspace_id is required when auto-detection is disabled")
	}
	root, _, err := d.FindRoot(start)
	if err != nil {
		return "", err
	}
	return ID(root), nil
}

// startDir makes start absolute, resolves symlinks where possible and steps up
// from a file to its directory.
func startDir(start string) (string, error) {
	if strings.TrimSpace(start) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", apperr.Wrap(apperr.StorageIO, err, "get working directory")
		}
		start = wd
	}
	abs, err := filepath.Abs(filepath.FromSlash(strings.ReplaceAll(start, `\`, "/")))
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidArgument, err, "start path %q", start)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	return abs, nil
}
