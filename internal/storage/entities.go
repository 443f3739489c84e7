package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
)

// The generic half of the entity store. Every id-bearing kind lives in the
// items table as an envelope plus a JSON body; the typed wrappers in kinds.go
// pick the body type.

const itemColumns = `seq, id, created_at, updated_at, tags, body`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry[B models.Body](kind models.Kind, sc scanner) (models.Entry[B], int64, error) {
	var (
		e                          models.Entry[B]
		seq                        int64
		created, updated, tags, bd string
	)
	if err := sc.Scan(&seq, &e.ID, &created, &updated, &tags, &bd); err != nil {
		return e, 0, err
	}
	e.Kind = kind
	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return e, 0, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return e, 0, err
	}
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return e, 0, fmt.Errorf("decode tags of %s %d: %w", kind, e.ID, err)
	}
	if len(e.Tags) == 0 {
		e.Tags = nil
	}
	if err := json.Unmarshal([]byte(bd), &e.Body); err != nil {
		return e, 0, fmt.Errorf("decode body of %s %d: %w", kind, e.ID, err)
	}
	return e, seq, nil
}

// insertItem assigns the next id of kind and stores the entry.
func (s *Store) insertItem(ctx context.Context, tx *sql.Tx, kind models.Kind, tags []string, body models.Body) (models.Envelope, error) {
	if err := body.Validate(); err != nil {
		return models.Envelope{}, err
	}
	id, err := nextID(ctx, tx, string(kind))
	if err != nil {
		return models.Envelope{}, err
	}
	now := s.timestamp()
	env := models.Envelope{ID: id, Kind: kind, CreatedAt: now, UpdatedAt: now, Tags: models.NormalizeTags(tags)}
	if len(env.Tags) == 0 {
		env.Tags = nil
	}

	tagsJSON, bodyJSON, err := encodeItem(env.Tags, body)
	if err != nil {
		return models.Envelope{}, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO items (kind, id, created_at, updated_at, tags, body) VALUES (?, ?, ?, ?, ?, ?)`,
		string(kind), id, formatTime(now), formatTime(now), tagsJSON, bodyJSON,
	)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("insert %s: %w", kind, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return models.Envelope{}, fmt.Errorf("insert %s: %w", kind, err)
	}
	if err := reindex(ctx, tx, seq, env.Tags, body); err != nil {
		return models.Envelope{}, err
	}
	s.log.Debug("item logged", zap.String("kind", string(kind)), zap.Int64("id", id))
	return env, nil
}

// updateItem rewrites tags and body of an existing row and bumps updated_at.
func (s *Store) updateItem(ctx context.Context, tx *sql.Tx, seq int64, env *models.Envelope, body models.Body) error {
	if err := body.Validate(); err != nil {
		return err
	}
	env.UpdatedAt = s.timestamp()
	env.Tags = models.NormalizeTags(env.Tags)
	if len(env.Tags) == 0 {
		env.Tags = nil
	}
	tagsJSON, bodyJSON, err := encodeItem(env.Tags, body)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET updated_at = ?, tags = ?, body = ? WHERE seq = ?`,
		formatTime(env.UpdatedAt), tagsJSON, bodyJSON, seq,
	); err != nil {
		return fmt.Errorf("update %s %d: %w", env.Kind, env.ID, err)
	}
	if err := reindex(ctx, tx, seq, env.Tags, body); err != nil {
		return err
	}
	s.log.Debug("item updated", zap.String("kind", string(env.Kind)), zap.Int64("id", env.ID))
	return nil
}

func encodeItem(tags []string, body models.Body) (string, string, error) {
	if tags == nil {
		tags = []string{}
	}
	t, err := json.Marshal(tags)
	if err != nil {
		return "", "", fmt.Errorf("encode tags: %w", err)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("encode body: %w", err)
	}
	return string(t), string(b), nil
}

// reindex replaces the search row of seq. Kinds that are not indexed are
// left out of the index.
func reindex(ctx context.Context, tx *sql.Tx, seq int64, tags []string, body models.Body) error {
	title, text, ok := body.SearchText()
	if !ok {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items_fts WHERE rowid = ?`, seq); err != nil {
		return fmt.Errorf("unindex item: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO items_fts (rowid, title, content, tags) VALUES (?, ?, ?, ?)`,
		seq, title, text, strings.Join(tags, " "),
	); err != nil {
		return fmt.Errorf("index item: %w", err)
	}
	return nil
}

// getItem loads one entry or fails with NotFound.
func getItem[B models.Body](ctx context.Context, q querier, kind models.Kind, id int64) (models.Entry[B], int64, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE kind = ? AND id = ?`, string(kind), id)
	e, seq, err := scanEntry[B](kind, row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, 0, apperr.Missing("%s %d not found", kind, id)
	}
	if err != nil {
		return e, 0, fmt.Errorf("get %s %d: %w", kind, id, err)
	}
	return e, seq, nil
}

// itemQuery narrows a listing. Where clauses are ANDed and may use
// json_extract(body, ...).
type itemQuery struct {
	where []string
	args  []any
	tags  TagFilter
	limit int64
}

func (q *itemQuery) add(clause string, args ...any) {
	q.where = append(q.where, clause)
	q.args = append(q.args, args...)
}

// listItems returns entries of kind most recent first, filtered, then cut to
// the limit.
func listItems[B models.Body](ctx context.Context, q querier, kind models.Kind, iq itemQuery) ([]models.Entry[B], error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE kind = ?`
	args := append([]any{string(kind)}, iq.args...)
	for _, w := range iq.where {
		query += ` AND ` + w
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if iq.limit > 0 && iq.tags.empty() {
		query += ` LIMIT ?`
		args = append(args, iq.limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	out := []models.Entry[B]{}
	for rows.Next() {
		e, _, err := scanEntry[B](kind, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		if !iq.tags.match(e.Tags) {
			continue
		}
		out = append(out, e)
		if iq.limit > 0 && int64(len(out)) == iq.limit {
			break
		}
	}
	return out, rows.Err()
}

// deleteItem removes an entry, its search row and every link touching it.
func deleteItem(ctx context.Context, tx *sql.Tx, kind models.Kind, id int64) error {
	var seq int64
	err := tx.QueryRowContext(ctx, `SELECT seq FROM items WHERE kind = ? AND id = ?`, string(kind), id).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Missing("%s %d not found", kind, id)
	}
	if err != nil {
		return fmt.Errorf("lookup %s %d: %w", kind, id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items_fts WHERE rowid = ?`, seq); err != nil {
		return fmt.Errorf("unindex %s %d: %w", kind, id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM links WHERE (source_type = ? AND source_id = ?) OR (target_type = ? AND target_id = ?)`,
		string(kind), id, string(kind), id,
	); err != nil {
		return fmt.Errorf("delete links of %s %d: %w", kind, id, err)
	}
	return nil
}

// itemExists reports whether kind/id is present.
func itemExists(ctx context.Context, q querier, kind models.Kind, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM items WHERE kind = ? AND id = ?`, string(kind), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s %d: %w", kind, id, err)
	}
	return true, nil
}

// TagFilter selects entries by tag. IncludeAll requires every tag,
// IncludeAny requires at least one.
type TagFilter struct {
	IncludeAll []string
	IncludeAny []string
}

func (f TagFilter) empty() bool {
	return len(f.IncludeAll) == 0 && len(f.IncludeAny) == 0
}

func (f TagFilter) match(tags []string) bool {
	if f.empty() {
		return true
	}
	have := mapset.NewThreadUnsafeSet(tags...)
	if all := models.NormalizeTags(f.IncludeAll); len(all) > 0 && !have.Contains(all...) {
		return false
	}
	if anyOf := models.NormalizeTags(f.IncludeAny); len(anyOf) > 0 && !have.ContainsAny(anyOf...) {
		return false
	}
	return true
}
