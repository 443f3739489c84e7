package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
)

// MaxActivityHours bounds the activity window (about a century). Larger
// windows would overflow time.Duration.
const MaxActivityHours int64 = 24 * 366 * 100

// RecentActivity reports what was created or updated within the last
// hoursAgo hours, cutoff inclusive. Each kind, and the links, are capped at
// limitPerType independently, newest first.
func (s *Store) RecentActivity(ctx context.Context, hoursAgo, limitPerType int64) (models.ActivitySummary, error) {
	if hoursAgo < 1 || hoursAgo > MaxActivityHours {
		return models.ActivitySummary{}, apperr.Invalid("hours_ago must be between 1 and %d", MaxActivityHours)
	}
	if limitPerType < 1 {
		return models.ActivitySummary{}, apperr.Invalid("limit_per_type must be at least 1")
	}
	end := s.timestamp()
	start := end.Add(-time.Duration(hoursAgo) * time.Hour)
	sum := models.ActivitySummary{
		WindowStart: start,
		WindowEnd:   end,
		HoursAgo:    hoursAgo,
		Items:       map[models.Kind][]any{},
	}
	cutoff := formatTime(start)

	err := s.read(ctx, func(tx *sql.Tx) error {
		for _, kind := range models.ContextKinds {
			snap, err := getContext(ctx, tx, kind)
			if err != nil {
				return err
			}
			if snap.UpdatedAt != nil && !snap.UpdatedAt.Before(start) {
				sum.Items[kind] = []any{snap}
			}
		}

		for _, kind := range models.ItemKinds {
			// updated_at never precedes created_at, so it alone decides.
			rows, err := tx.QueryContext(ctx,
				`SELECT kind, `+itemColumns+` FROM items
				 WHERE kind = ? AND updated_at >= ?
				 ORDER BY updated_at DESC, id DESC LIMIT ?`,
				string(kind), cutoff, limitPerType,
			)
			if err != nil {
				return fmt.Errorf("recent %s: %w", kind, err)
			}
			items := []any{}
			for rows.Next() {
				var (
					k models.Kind
					r rawRow
				)
				if err := rows.Scan(append([]any{&k}, r.dest()...)...); err != nil {
					rows.Close()
					return fmt.Errorf("scan %s: %w", kind, err)
				}
				item, err := decodeRow(k, r)
				if err != nil {
					rows.Close()
					return err
				}
				items = append(items, item)
			}
			if err := rows.Close(); err != nil {
				return err
			}
			if err := rows.Err(); err != nil {
				return err
			}
			sum.Items[kind] = items
		}

		links, err := listLinks(ctx, tx, `created_at >= ? ORDER BY created_at DESC, id DESC LIMIT ?`, cutoff, limitPerType)
		if err != nil {
			return err
		}
		sum.Links = links
		return nil
	})
	return sum, err
}
