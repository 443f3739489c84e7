package storage

import (
	"context"
	"database/sql"

	"github.com/mschulkind/context-portal/internal/models"
)

// Snapshot is the whole content of a store as seen by one read transaction.
// Items are ordered by id ascending within each kind, links by id.
type Snapshot struct {
	StoreID  string
	Contexts []models.ContextSnapshot
	Items    map[models.Kind][]any
	Links    []models.Link
}

// Snapshot reads every context, item and link consistently.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{StoreID: s.storeID, Items: map[models.Kind][]any{}}
	err := s.read(ctx, func(tx *sql.Tx) error {
		for _, kind := range models.ContextKinds {
			c, err := getContext(ctx, tx, kind)
			if err != nil {
				return err
			}
			snap.Contexts = append(snap.Contexts, c)
		}
		for _, kind := range models.ItemKinds {
			items, err := allItems(ctx, tx, kind)
			if err != nil {
				return err
			}
			snap.Items[kind] = items
		}
		links, err := listLinks(ctx, tx, `1 = 1 ORDER BY id`)
		if err != nil {
			return err
		}
		snap.Links = links
		return nil
	})
	return snap, err
}

func allItems(ctx context.Context, q querier, kind models.Kind) ([]any, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE kind = ? ORDER BY id`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []any{}
	for rows.Next() {
		var r rawRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, err
		}
		item, err := decodeRow(kind, r)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
