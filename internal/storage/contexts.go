package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
)

// DeleteMarker as a patch value removes the key from the context.
const DeleteMarker = "__DELETE__"

func checkContextKind(kind models.Kind) error {
	if kind.HasID() {
		return apperr.Invalid("%s is not a context kind", kind)
	}
	return nil
}

// GetContext returns the current content of a context kind. A context that
// was never written yields empty content rather than NotFound.
func (s *Store) GetContext(ctx context.Context, kind models.Kind) (models.ContextSnapshot, error) {
	if err := checkContextKind(kind); err != nil {
		return models.ContextSnapshot{}, err
	}
	snap, err := getContext(ctx, s.db, kind)
	return snap, tagStorage(err)
}

func getContext(ctx context.Context, q querier, kind models.Kind) (models.ContextSnapshot, error) {
	snap := models.ContextSnapshot{Kind: kind, Content: map[string]any{}}
	var content, updated string
	err := q.QueryRowContext(ctx,
		`SELECT content, updated_at FROM contexts WHERE kind = ?`, string(kind),
	).Scan(&content, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("get %s: %w", kind, err)
	}
	if err := models.DecodeJSON([]byte(content), &snap.Content); err != nil {
		return snap, fmt.Errorf("decode %s: %w", kind, err)
	}
	if snap.Content == nil {
		snap.Content = map[string]any{}
	}
	t, err := parseTime(updated)
	if err != nil {
		return snap, err
	}
	snap.UpdatedAt = &t
	return snap, nil
}

// ReplaceContext replaces the content of a context kind wholesale.
func (s *Store) ReplaceContext(ctx context.Context, kind models.Kind, content map[string]any) (models.ContextSnapshot, error) {
	if err := checkContextKind(kind); err != nil {
		return models.ContextSnapshot{}, err
	}
	if content == nil {
		content = map[string]any{}
	}
	var out models.ContextSnapshot
	err := s.write(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.putContext(ctx, tx, kind, content)
		return err
	})
	return out, err
}

// PatchContext merges patch into the current content. A value equal to
// DeleteMarker removes its key.
func (s *Store) PatchContext(ctx context.Context, kind models.Kind, patch map[string]any) (models.ContextSnapshot, error) {
	if err := checkContextKind(kind); err != nil {
		return models.ContextSnapshot{}, err
	}
	var out models.ContextSnapshot
	err := s.write(ctx, func(tx *sql.Tx) error {
		cur, err := getContext(ctx, tx, kind)
		if err != nil {
			return err
		}
		for k, v := range patch {
			if str, ok := v.(string); ok && str == DeleteMarker {
				delete(cur.Content, k)
				continue
			}
			cur.Content[k] = v
		}
		out, err = s.putContext(ctx, tx, kind, cur.Content)
		return err
	})
	return out, err
}

func (s *Store) putContext(ctx context.Context, tx *sql.Tx, kind models.Kind, content map[string]any) (models.ContextSnapshot, error) {
	b, err := json.Marshal(content)
	if err != nil {
		return models.ContextSnapshot{}, apperr.Wrap(apperr.InvalidArgument, err, "encode %s", kind)
	}
	now := s.timestamp()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO contexts (kind, content, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(kind) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		string(kind), string(b), formatTime(now),
	); err != nil {
		return models.ContextSnapshot{}, fmt.Errorf("update %s: %w", kind, err)
	}
	s.log.Debug("context updated", zap.String("kind", string(kind)), zap.Int("keys", len(content)))
	return models.ContextSnapshot{Kind: kind, Content: content, UpdatedAt: &now}, nil
}
