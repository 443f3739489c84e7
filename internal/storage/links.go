package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ncruces/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
)

const linkColumns = `id, source_type, source_id, target_type, target_id, relationship_type, description, created_at`

// Link creates a directed link. Both endpoints must exist and the
// (source, target, relationship) triple must be new.
func (s *Store) Link(ctx context.Context, l models.Link) (models.Link, error) {
	var out models.Link
	err := s.write(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.insertLink(ctx, tx, l)
		return err
	})
	return out, err
}

func (s *Store) insertLink(ctx context.Context, tx *sql.Tx, l models.Link) (models.Link, error) {
	l.RelationshipType = strings.TrimSpace(l.RelationshipType)
	if l.RelationshipType == "" {
		return l, apperr.Invalid("relationship_type is required")
	}
	for _, end := range []struct {
		kind models.Kind
		id   int64
	}{{l.SourceType, l.SourceID}, {l.TargetType, l.TargetID}} {
		if !end.kind.HasID() {
			return l, apperr.Invalid("%s cannot be linked", end.kind)
		}
		ok, err := itemExists(ctx, tx, end.kind, end.id)
		if err != nil {
			return l, err
		}
		if !ok {
			return l, apperr.Missing("%s %d not found", end.kind, end.id)
		}
	}

	l.CreatedAt = s.timestamp()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO links (source_type, source_id, target_type, target_id, relationship_type, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(l.SourceType), l.SourceID, string(l.TargetType), l.TargetID, l.RelationshipType, l.Description, formatTime(l.CreatedAt),
	)
	if isUniqueViolation(err) {
		return l, apperr.New(apperr.Duplicate, "link %s %d -[%s]-> %s %d already exists",
			l.SourceType, l.SourceID, l.RelationshipType, l.TargetType, l.TargetID)
	}
	if err != nil {
		return l, fmt.Errorf("insert link: %w", err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return l, fmt.Errorf("insert link: %w", err)
	}
	s.log.Debug("items linked",
		zap.String("source", fmt.Sprintf("%s/%d", l.SourceType, l.SourceID)),
		zap.String("target", fmt.Sprintf("%s/%d", l.TargetType, l.TargetID)),
		zap.String("relationship", l.RelationshipType),
	)
	return l, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode() == sqlite3.CONSTRAINT_UNIQUE
	}
	return false
}

func scanLink(sc scanner) (models.Link, error) {
	var (
		l       models.Link
		created string
	)
	if err := sc.Scan(&l.ID, &l.SourceType, &l.SourceID, &l.TargetType, &l.TargetID,
		&l.RelationshipType, &l.Description, &created); err != nil {
		return l, err
	}
	var err error
	l.CreatedAt, err = parseTime(created)
	return l, err
}

// LinkFilter narrows GetLinked. Empty fields match everything.
type LinkFilter struct {
	RelationshipType string
	LinkedItemType   models.Kind
	Limit            int64
}

// GetLinked returns the links touching kind/id, newest first, each marked
// with its direction relative to that item. An item with no links yields an
// empty result, not NotFound.
func (s *Store) GetLinked(ctx context.Context, kind models.Kind, id int64, f LinkFilter) ([]models.LinkedItem, error) {
	query := `SELECT ` + linkColumns + ` FROM links
		WHERE ((source_type = ? AND source_id = ?) OR (target_type = ? AND target_id = ?))`
	args := []any{string(kind), id, string(kind), id}
	if f.RelationshipType != "" {
		query += ` AND relationship_type = ?`
		args = append(args, f.RelationshipType)
	}
	if f.LinkedItemType != "" {
		query += ` AND ((source_type = ? AND source_id = ? AND target_type = ?)
			OR (target_type = ? AND target_id = ? AND source_type = ?))`
		args = append(args, string(kind), id, string(f.LinkedItemType), string(kind), id, string(f.LinkedItemType))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	out := []models.LinkedItem{}
	err := s.read(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("get links of %s %d: %w", kind, id, err)
		}
		defer rows.Close()
		for rows.Next() {
			l, err := scanLink(rows)
			if err != nil {
				return fmt.Errorf("scan link: %w", err)
			}
			dir := models.Incoming
			if l.SourceType == kind && l.SourceID == id {
				dir = models.Outgoing
			}
			out = append(out, models.LinkedItem{Link: l, Direction: dir})
		}
		return rows.Err()
	})
	return out, err
}

func listLinks(ctx context.Context, q querier, where string, args ...any) ([]models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links`
	if where != "" {
		query += ` WHERE ` + where
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()
	out := []models.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
