// Package session keeps one open store per workspace for the life of the
// server.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/config"
	"github.com/mschulkind/context-portal/internal/storage"
	"github.com/mschulkind/context-portal/internal/workspace"
)

var errClosed = apperr.New(apperr.StorageIO, "session closed")

// Workspace is a resolved workspace with its open store.
type Workspace struct {
	ID       workspace.ID
	Location config.Location
	Store    *storage.Store
}

// Session maps workspace identities to open stores. Stores are opened lazily
// on first use and closed together by Close.
type Session struct {
	cfg      config.Config
	detector *workspace.Detector
	log      *zap.Logger

	mu     sync.Mutex
	open   map[workspace.ID]*Workspace
	group  singleflight.Group
	closed bool
}

// New creates an empty session.
func New(cfg config.Config, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		cfg:      cfg,
		detector: workspace.NewDetector(
			workspace.WithFallback(!cfg.RequireIndicator),
			workspace.WithStoreMarker(cfg.StoreMarker()),
		),
		log:      log,
		open:     map[workspace.ID]*Workspace{},
	}
}

// Config returns the configuration the session was built with.
func (s *Session) Config() config.Config { return s.cfg }

// Detector returns the detector used for identities that are not given.
func (s *Session) Detector() *workspace.Detector { return s.detector }

// Resolve turns an optional explicit identity into a workspace identity,
// falling back to the configured one and then to detection.
func (s *Session) Resolve(explicit string) (workspace.ID, error) {
	if explicit == "" {
		explicit = s.cfg.WorkspaceID
	}
	return s.detector.Resolve(explicit, s.cfg.AutoDetect, s.cfg.StartDir)
}

// Open resolves the workspace and returns its store, opening it on first
// use. Concurrent first calls for the same workspace share one open.
func (s *Session) Open(ctx context.Context, explicit string) (*Workspace, error) {
	id, err := s.Resolve(explicit)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if ws, ok := s.open[id]; ok {
		s.mu.Unlock()
		return ws, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(string(id), func() (any, error) {
		s.mu.Lock()
		if ws, ok := s.open[id]; ok {
			s.mu.Unlock()
			return ws, nil
		}
		s.mu.Unlock()

		loc, err := config.ResolveStoreLocation(s.cfg, id)
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(ctx, loc.DBPath, storage.WithLogger(s.log.Named("storage")))
		if err != nil {
			return nil, err
		}
		ws := &Workspace{ID: id, Location: loc, Store: st}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			st.Close()
			return nil, errClosed
		}
		s.open[id] = ws
		s.log.Info("workspace opened", zap.String("workspace", string(id)), zap.String("db", loc.DBPath))
		return ws, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Workspace), nil
}

// Count is the number of open workspaces.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// Close closes every open store. Later Opens fail.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ws := range s.open {
		if err := ws.Store.Close(); err != nil {
			s.log.Warn("close store", zap.String("workspace", string(id)), zap.Error(err))
		}
		delete(s.open, id)
	}
	s.closed = true
}
