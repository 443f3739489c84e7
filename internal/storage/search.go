package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
)

// SearchOptions narrows Search. An empty scope means every indexed kind.
type SearchOptions struct {
	Scope    []models.Kind
	Category string
	Limit    int64
	// AnyTerm ranks entries matching any of the terms instead of requiring
	// all of them.
	AnyTerm bool
	// Tags is applied before Limit.
	Tags TagFilter
}

// Search runs a full-text query over the indexed kinds. Every whitespace
// separated term must match a whole token, case-insensitively (any one of
// them with AnyTerm). Hits are ranked by relevance, then newest first.
func (s *Store) Search(ctx context.Context, term string, opts SearchOptions) ([]models.SearchHit, error) {
	match := ftsQuery(term, opts.AnyTerm)
	if match == "" {
		return nil, apperr.Invalid("search query must contain at least one word")
	}
	scope := opts.Scope
	if len(scope) == 0 {
		scope = models.SearchableKinds
	}
	for _, k := range scope {
		if !searchable(k) {
			return nil, apperr.Invalid("%s is not searchable", k)
		}
	}

	query := `SELECT bm25(items_fts), i.kind, ` + prefixed("i", itemColumns) + `
		FROM items_fts JOIN items i ON i.seq = items_fts.rowid
		WHERE items_fts MATCH ? AND i.kind IN (` + placeholders(len(scope)) + `)`
	args := []any{match}
	for _, k := range scope {
		args = append(args, string(k))
	}
	if opts.Category != "" {
		query += ` AND json_extract(i.body, '$.category') = ?`
		args = append(args, opts.Category)
	}
	query += ` ORDER BY bm25(items_fts), i.created_at DESC, i.id DESC`
	if opts.Limit > 0 && opts.Tags.empty() {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	hits := []models.SearchHit{}
	err := s.read(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				rank float64
				kind models.Kind
				r    rawRow
			)
			if err := rows.Scan(append([]any{&rank, &kind}, r.dest()...)...); err != nil {
				return fmt.Errorf("scan hit: %w", err)
			}
			if !opts.Tags.empty() {
				var tags []string
				if err := json.Unmarshal([]byte(r.tags), &tags); err != nil {
					return fmt.Errorf("decode tags of %s %d: %w", kind, r.id, err)
				}
				if !opts.Tags.match(tags) {
					continue
				}
			}
			item, err := decodeRow(kind, r)
			if err != nil {
				return err
			}
			// bm25 is lower-is-better; report higher-is-better.
			hits = append(hits, models.SearchHit{Kind: kind, ID: r.id, Score: -rank, Item: item})
			if opts.Limit > 0 && int64(len(hits)) >= opts.Limit {
				break
			}
		}
		return rows.Err()
	})
	return hits, err
}

func searchable(k models.Kind) bool {
	for _, s := range models.SearchableKinds {
		if s == k {
			return true
		}
	}
	return false
}

// ftsQuery quotes each term so FTS5 operators in user input are taken
// literally. Quoted terms are ANDed, or ORed when anyTerm is set.
func ftsQuery(term string, anyTerm bool) string {
	fields := strings.Fields(term)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	if anyTerm {
		return strings.Join(fields, " OR ")
	}
	return strings.Join(fields, " ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

// rawRow holds the itemColumns of a row whose kind is only known after the
// scan.
type rawRow struct {
	seq                        int64
	id                         int64
	created, updated, tags, bd string
}

func (r *rawRow) dest() []any {
	return []any{&r.seq, &r.id, &r.created, &r.updated, &r.tags, &r.bd}
}

func (r rawRow) Scan(dest ...any) error {
	*dest[0].(*int64) = r.seq
	*dest[1].(*int64) = r.id
	*dest[2].(*string) = r.created
	*dest[3].(*string) = r.updated
	*dest[4].(*string) = r.tags
	*dest[5].(*string) = r.bd
	return nil
}

func decodeRow(kind models.Kind, r rawRow) (any, error) {
	switch kind {
	case models.KindDecision:
		e, _, err := scanEntry[models.Decision](kind, r)
		return e, err
	case models.KindProgress:
		e, _, err := scanEntry[models.Progress](kind, r)
		return e, err
	case models.KindSystemPattern:
		e, _, err := scanEntry[models.SystemPattern](kind, r)
		return e, err
	case models.KindGlossaryTerm, models.KindCustomData:
		e, _, err := scanEntry[models.KeyedValue](kind, r)
		return e, err
	}
	return nil, fmt.Errorf("unknown item kind %q", kind)
}
