package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
)

type (
	Decision      = models.Entry[models.Decision]
	Progress      = models.Entry[models.Progress]
	SystemPattern = models.Entry[models.SystemPattern]
	KeyedEntry    = models.Entry[models.KeyedValue]
)

// ListOptions is shared by the decision and pattern listings.
type ListOptions struct {
	Tags  TagFilter
	Limit int64
}

// --- Decisions ---

// LogDecision stores a new decision.
func (s *Store) LogDecision(ctx context.Context, d models.Decision, tags []string) (Decision, error) {
	out := Decision{Body: d}
	err := s.write(ctx, func(tx *sql.Tx) error {
		env, err := s.insertItem(ctx, tx, models.KindDecision, tags, d)
		out.Envelope = env
		return err
	})
	return out, err
}

// GetDecisions lists decisions most recent first.
func (s *Store) GetDecisions(ctx context.Context, opts ListOptions) ([]Decision, error) {
	var out []Decision
	err := s.read(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = listItems[models.Decision](ctx, tx, models.KindDecision, itemQuery{tags: opts.Tags, limit: opts.Limit})
		return err
	})
	return out, err
}

// GetDecision loads one decision.
func (s *Store) GetDecision(ctx context.Context, id int64) (Decision, error) {
	e, _, err := getItem[models.Decision](ctx, s.db, models.KindDecision, id)
	return e, tagStorage(err)
}

// DeleteDecision removes a decision and its links.
func (s *Store) DeleteDecision(ctx context.Context, id int64) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		return deleteItem(ctx, tx, models.KindDecision, id)
	})
}

// --- Progress ---

// ProgressLink optionally links a new progress entry to an existing item.
type ProgressLink struct {
	ItemType         models.Kind
	ItemID           int64
	RelationshipType string
}

// LogProgress stores a progress entry. The parent, if any, must exist. When
// link is set the link is created in the same transaction.
func (s *Store) LogProgress(ctx context.Context, p models.Progress, link *ProgressLink) (Progress, error) {
	status, err := models.NormalizeStatus(p.Status)
	if err != nil {
		return Progress{}, err
	}
	p.Status = status
	out := Progress{Body: p}
	err = s.write(ctx, func(tx *sql.Tx) error {
		if err := checkParent(ctx, tx, p.ParentID, 0); err != nil {
			return err
		}
		env, err := s.insertItem(ctx, tx, models.KindProgress, nil, p)
		if err != nil {
			return err
		}
		out.Envelope = env
		if link == nil {
			return nil
		}
		_, err = s.insertLink(ctx, tx, models.Link{
			SourceType:       models.KindProgress,
			SourceID:         env.ID,
			TargetType:       link.ItemType,
			TargetID:         link.ItemID,
			RelationshipType: link.RelationshipType,
		})
		return err
	})
	return out, err
}

func checkParent(ctx context.Context, tx *sql.Tx, parent *int64, self int64) error {
	if parent == nil {
		return nil
	}
	if *parent == self {
		return apperr.Invalid("progress entry %d cannot be its own parent", self)
	}
	ok, err := itemExists(ctx, tx, models.KindProgress, *parent)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Missing("parent progress entry %d not found", *parent)
	}
	return nil
}

// ProgressFilter narrows GetProgress.
type ProgressFilter struct {
	Status   string
	ParentID *int64
	Limit    int64
}

// GetProgress lists progress entries most recent first.
func (s *Store) GetProgress(ctx context.Context, f ProgressFilter) ([]Progress, error) {
	iq := itemQuery{limit: f.Limit}
	if f.Status != "" {
		status, err := models.NormalizeStatus(f.Status)
		if err != nil {
			return nil, err
		}
		iq.add(`json_extract(body, '$.status') = ?`, status)
	}
	if f.ParentID != nil {
		iq.add(`json_extract(body, '$.parent_id') = ?`, *f.ParentID)
	}
	var out []Progress
	err := s.read(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = listItems[models.Progress](ctx, tx, models.KindProgress, iq)
		return err
	})
	return out, err
}

// ProgressUpdate holds the fields to change. Nil fields are kept.
type ProgressUpdate struct {
	Status      *string
	Description *string
	ParentID    *int64
}

// UpdateProgress changes an existing progress entry.
func (s *Store) UpdateProgress(ctx context.Context, id int64, u ProgressUpdate) (Progress, error) {
	if u.Status == nil && u.Description == nil && u.ParentID == nil {
		return Progress{}, apperr.Invalid("at least one of status, description or parent_id must be given")
	}
	var out Progress
	err := s.write(ctx, func(tx *sql.Tx) error {
		e, seq, err := getItem[models.Progress](ctx, tx, models.KindProgress, id)
		if err != nil {
			return err
		}
		if u.Status != nil {
			status, err := models.NormalizeStatus(*u.Status)
			if err != nil {
				return err
			}
			e.Body.Status = status
		}
		if u.Description != nil {
			e.Body.Description = *u.Description
		}
		if u.ParentID != nil {
			if err := checkParent(ctx, tx, u.ParentID, id); err != nil {
				return err
			}
			e.Body.ParentID = u.ParentID
		}
		if err := s.updateItem(ctx, tx, seq, &e.Envelope, e.Body); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// DeleteProgress removes a progress entry. Children lose their parent.
func (s *Store) DeleteProgress(ctx context.Context, id int64) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		if err := deleteItem(ctx, tx, models.KindProgress, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET body = json_remove(body, '$.parent_id'), updated_at = ?
			 WHERE kind = ? AND json_extract(body, '$.parent_id') = ?`,
			formatTime(s.timestamp()), string(models.KindProgress), id,
		); err != nil {
			return fmt.Errorf("detach children of progress %d: %w", id, err)
		}
		return nil
	})
}

// --- System patterns ---

// LogSystemPattern stores a new system pattern.
func (s *Store) LogSystemPattern(ctx context.Context, p models.SystemPattern, tags []string) (SystemPattern, error) {
	out := SystemPattern{Body: p}
	err := s.write(ctx, func(tx *sql.Tx) error {
		env, err := s.insertItem(ctx, tx, models.KindSystemPattern, tags, p)
		out.Envelope = env
		return err
	})
	return out, err
}

// GetSystemPatterns lists system patterns most recent first.
func (s *Store) GetSystemPatterns(ctx context.Context, opts ListOptions) ([]SystemPattern, error) {
	var out []SystemPattern
	err := s.read(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = listItems[models.SystemPattern](ctx, tx, models.KindSystemPattern, itemQuery{tags: opts.Tags, limit: opts.Limit})
		return err
	})
	return out, err
}

// DeleteSystemPattern removes a system pattern and its links.
func (s *Store) DeleteSystemPattern(ctx context.Context, id int64) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		return deleteItem(ctx, tx, models.KindSystemPattern, id)
	})
}

// --- Custom data and glossary ---

// PutKeyed inserts or replaces the (category, key) entry of kind. A replaced
// entry keeps its id and created_at.
func (s *Store) PutKeyed(ctx context.Context, kind models.Kind, v models.KeyedValue) (KeyedEntry, error) {
	if kind != models.KindCustomData && kind != models.KindGlossaryTerm {
		return KeyedEntry{}, apperr.Invalid("%s is not addressed by category and key", kind)
	}
	var out KeyedEntry
	err := s.write(ctx, func(tx *sql.Tx) error {
		e, seq, err := findKeyed(ctx, tx, kind, v.Category, v.Key)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			env, err := s.insertItem(ctx, tx, kind, nil, v)
			out = KeyedEntry{Envelope: env, Body: v}
			return err
		case err != nil:
			return err
		}
		e.Body = v
		if err := s.updateItem(ctx, tx, seq, &e.Envelope, v); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

func findKeyed(ctx context.Context, q querier, kind models.Kind, category, key string) (KeyedEntry, int64, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE kind = ? AND json_extract(body, '$.category') = ? AND json_extract(body, '$.key') = ?`,
		string(kind), category, key)
	e, seq, err := scanEntry[models.KeyedValue](kind, row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, 0, apperr.Missing("%s %s/%s not found", kind, category, key)
	}
	if err != nil {
		return e, 0, fmt.Errorf("get %s %s/%s: %w", kind, category, key, err)
	}
	return e, seq, nil
}

// KeyedFilter narrows GetKeyed. Empty fields match everything.
type KeyedFilter struct {
	Category string
	Key      string
	Limit    int64
}

// GetKeyed lists custom data or glossary entries most recent first.
func (s *Store) GetKeyed(ctx context.Context, kind models.Kind, f KeyedFilter) ([]KeyedEntry, error) {
	iq := itemQuery{limit: f.Limit}
	if f.Category != "" {
		iq.add(`json_extract(body, '$.category') = ?`, f.Category)
	}
	if f.Key != "" {
		iq.add(`json_extract(body, '$.key') = ?`, f.Key)
	}
	var out []KeyedEntry
	err := s.read(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = listItems[models.KeyedValue](ctx, tx, kind, iq)
		return err
	})
	return out, err
}

// DeleteKeyed removes the (category, key) entry of kind.
func (s *Store) DeleteKeyed(ctx context.Context, kind models.Kind, category, key string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		e, _, err := findKeyed(ctx, tx, kind, category, key)
		if err != nil {
			return err
		}
		return deleteItem(ctx, tx, kind, e.ID)
	})
}

// --- Tags ---

// UpdateTags adds and removes tags on a decision or system pattern and
// returns the resulting tag set.
func (s *Store) UpdateTags(ctx context.Context, kind models.Kind, id int64, add, remove []string) ([]string, error) {
	if !kind.Tagged() {
		return nil, apperr.Invalid("%s does not carry tags", kind)
	}
	if len(add) == 0 && len(remove) == 0 {
		return nil, apperr.Invalid("add_tags or remove_tags must be given")
	}
	var tags []string
	err := s.write(ctx, func(tx *sql.Tx) error {
		switch kind {
		case models.KindDecision:
			e, seq, err := getItem[models.Decision](ctx, tx, kind, id)
			if err != nil {
				return err
			}
			e.Tags = editTags(e.Tags, add, remove)
			if err := s.updateItem(ctx, tx, seq, &e.Envelope, e.Body); err != nil {
				return err
			}
			tags = e.Tags
		default:
			e, seq, err := getItem[models.SystemPattern](ctx, tx, kind, id)
			if err != nil {
				return err
			}
			e.Tags = editTags(e.Tags, add, remove)
			if err := s.updateItem(ctx, tx, seq, &e.Envelope, e.Body); err != nil {
				return err
			}
			tags = e.Tags
		}
		return nil
	})
	if tags == nil && err == nil {
		tags = []string{}
	}
	return tags, err
}

func editTags(cur, add, remove []string) []string {
	set := mapset.NewThreadUnsafeSet(cur...)
	for _, t := range models.NormalizeTags(add) {
		set.Add(t)
	}
	for _, t := range models.NormalizeTags(remove) {
		set.Remove(t)
	}
	return models.NormalizeTags(set.ToSlice())
}
