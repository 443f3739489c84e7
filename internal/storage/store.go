package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"github.com/mschulkind/context-portal/internal/apperr"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages one workspace's knowledge database.
//
// Writes are serialized by the store; each write commits as one transaction,
// search index and links included, so readers never see half of it.
type Store struct {
	db      *sql.DB
	path    string
	storeID string
	log     *zap.Logger
	now     func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (or creates) the store at dbPath and applies the schema.
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	s := &Store{path: dbPath, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, apperr.Wrap(apperr.StorageIO, err, "create store dir")
	}
	db, err := sql.Open("sqlite3", fileURI(dbPath)+dsnPragmas)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageIO, err, "open store db")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.StorageIO, err, "ping store db")
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.StorageIO, err, "migrate store db")
	}
	s.db = db

	if err := s.initMeta(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Debug("store opened", zap.String("path", dbPath), zap.String("store_id", s.storeID))
	return s, nil
}

// fileURI renders dbPath as a SQLite file URI. Path characters that are URI
// syntax (#, ?, %) are percent-escaped so they stay part of the filename.
func fileURI(dbPath string) string {
	p := filepath.ToSlash(dbPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", OmitHost: true, Path: p}).String()
}

func (s *Store) initMeta(ctx context.Context) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO meta (key, value) VALUES ('store_id', ?), ('schema_version', ?)`,
			uuid.New().String(), SchemaVersion,
		); err != nil {
			return fmt.Errorf("init meta: %w", err)
		}
		return tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'store_id'`).Scan(&s.storeID)
	})
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path is the database file.
func (s *Store) Path() string { return s.path }

// ID is the random identifier assigned when the store was first created. It
// survives reopening.
func (s *Store) ID() string { return s.storeID }

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// write runs fn in a serialized transaction. Errors that are not already
// tagged surface as StorageIO.
func (s *Store) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.StorageIO, err, "begin tx")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return tagStorage(err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.StorageIO, err, "commit")
	}
	return nil
}

// read runs fn in a read transaction so multi-query reads see one snapshot.
func (s *Store) read(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.StorageIO, err, "begin read tx")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return tagStorage(err)
	}
	return nil
}

func tagStorage(err error) error {
	if err == nil {
		return nil
	}
	var tagged *apperr.Error
	if errors.As(err, &tagged) {
		return err
	}
	return apperr.Wrap(apperr.StorageIO, err, "storage")
}

// nextID advances the counter of kind and returns the new id.
func nextID(ctx context.Context, tx *sql.Tx, kind string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO sequences (kind, last_id) VALUES (?, 1)
		 ON CONFLICT(kind) DO UPDATE SET last_id = last_id + 1
		 RETURNING last_id`,
		kind,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", kind, err)
	}
	return id, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
