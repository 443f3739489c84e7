package config

import (
	"os"
	"path"
	"path/filepath"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/workspace"
)

// Location is where a workspace's store lives.
type Location struct {
	Dir    string `json:"dir"`
	DBPath string `json:"db_path"`
}

// ResolveStoreLocation maps id to its store location and creates the
// directories it needs. Creation is idempotent and safe to race.
func ResolveStoreLocation(cfg Config, id workspace.ID) (Location, error) {
	if cfg.DBPath != "" && filepath.IsAbs(filepath.FromSlash(cfg.DBPath)) {
		return makeLocation(filepath.FromSlash(cfg.DBPath))
	}

	root := id.Path()
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return Location{}, apperr.Missing("invalid workspace %q: not an existing directory", id)
	}
	return makeLocation(filepath.Join(root, filepath.FromSlash(cfg.StoreMarker())))
}

func makeLocation(dbPath string) (Location, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Location{}, apperr.Wrap(apperr.StorageIO, err, "create store directory %s", dir)
	}
	return Location{Dir: dir, DBPath: dbPath}, nil
}

// StoreMarker is the store file path relative to a workspace root, in
// forward-slash form: the relative DBPath override, or the default location.
// An absolute override leaves the default, since such a store marks no
// workspace.
func (c Config) StoreMarker() string {
	if c.DBPath != "" && !filepath.IsAbs(filepath.FromSlash(c.DBPath)) {
		return path.Clean(filepath.ToSlash(c.DBPath))
	}
	return workspace.StoreDirName + "/" + workspace.StoreFileName
}
