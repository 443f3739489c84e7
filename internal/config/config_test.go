package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/workspace"
)

func TestResolveStoreLocation_Default(t *testing.T) {
	root := t.TempDir()
	id, err := workspace.Normalize(root)
	require.NoError(t, err)

	loc, err := ResolveStoreLocation(Default(), id)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "context_portal"), loc.Dir)
	assert.Equal(t, filepath.Join(root, "context_portal", "context.db"), loc.DBPath)
	assert.DirExists(t, loc.Dir)

	again, err := ResolveStoreLocation(Default(), id)
	require.NoError(t, err)
	assert.Equal(t, loc, again)
}

func TestResolveStoreLocation_MissingWorkspace(t *testing.T) {
	id := workspace.ID(filepath.ToSlash(filepath.Join(t.TempDir(), "nope")))
	_, err := ResolveStoreLocation(Default(), id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResolveStoreLocation_AbsoluteOverride(t *testing.T) {
	target := filepath.Join(t.TempDir(), "shared", "dbs", "ctx.db")
	cfg := Default()
	cfg.DBPath = target

	// The workspace need not exist when the override is absolute.
	loc, err := ResolveStoreLocation(cfg, workspace.ID("/does/not/matter"))
	require.NoError(t, err)
	assert.Equal(t, target, loc.DBPath)
	assert.DirExists(t, filepath.Dir(target))
}

func TestResolveStoreLocation_RelativeOverride(t *testing.T) {
	root := t.TempDir()
	id, err := workspace.Normalize(root)
	require.NoError(t, err)
	cfg := Default()
	cfg.DBPath = "data/custom/context.db"

	loc, err := ResolveStoreLocation(cfg, id)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "data", "custom", "context.db"), loc.DBPath)
	assert.DirExists(t, filepath.Join(root, "data", "custom"))
}

func TestResolveStoreLocation_RelativeOverrideMissingWorkspace(t *testing.T) {
	cfg := Default()
	cfg.DBPath = "data/context.db"
	id := workspace.ID(filepath.ToSlash(filepath.Join(t.TempDir(), "nope")))

	_, err := ResolveStoreLocation(cfg, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStoreMarker(t *testing.T) {
	tests := []struct {
		name   string
		dbPath string
		want   string
	}{
		{"default", "", "context_portal/context.db"},
		{"relative", "data/custom/context.db", "data/custom/context.db"},
		{"relative unclean", "./data//ctx.db", "data/ctx.db"},
		{"absolute", filepath.Join(t.TempDir(), "ctx.db"), "context_portal/context.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.DBPath = tt.dbPath
			assert.Equal(t, tt.want, cfg.StoreMarker())
		})
	}
}

func TestResolveStoreLocation_ConcurrentCreate(t *testing.T) {
	root := t.TempDir()
	id, err := workspace.Normalize(root)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ResolveStoreLocation(Default(), id)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conport.yaml")
	require.NoError(t, os.WriteFile(file, []byte("db_path: /var/lib/conport/ctx.db\nlog_level: debug\n"), 0o644))
	t.Setenv("CONPORT_AUTO_DETECT", "false")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/conport/ctx.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.AutoDetect)
	assert.Equal(t, "stdio", cfg.Mode)
}

func TestLoad_RejectsUnknownMode(t *testing.T) {
	v := viper.New()
	v.Set("mode", "carrier-pigeon")
	_, err := Load(v, "")
	assert.Error(t, err)
}

func TestLoad_HTTPAuthSettings(t *testing.T) {
	t.Setenv("CONPORT_BEARER_TOKEN", "s3cret")
	t.Setenv("CONPORT_AUTH_SERVER_URL", "https://auth.example.com")

	_, err := Load(viper.New(), "")
	assert.Error(t, err, "auth server without resource url")

	t.Setenv("CONPORT_RESOURCE_URL", "https://mcp.example.com")
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.BearerToken)
	assert.Equal(t, "https://mcp.example.com", cfg.ResourceURL)
}
