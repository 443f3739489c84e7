package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
)

func TestGetDecisionsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t, WithClock(newStepClock().Now))

	for i := 1; i <= 5; i++ {
		_, err := st.LogDecision(ctx, models.Decision{Summary: fmt.Sprintf("decision %d", i)}, nil)
		require.NoError(t, err)
	}

	got, err := st.GetDecisions(ctx, ListOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{5, 4, 3}, []int64{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "decision 5", got[0].Body.Summary)

	all, err := st.GetDecisions(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestDecisionTagFiltersApplyBeforeLimit(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t, WithClock(newStepClock().Now))

	tagSets := [][]string{{"db"}, {"api"}, {"db", "perf"}, {"api"}, {"db"}}
	for i, tags := range tagSets {
		_, err := st.LogDecision(ctx, models.Decision{Summary: fmt.Sprintf("d%d", i+1)}, tags)
		require.NoError(t, err)
	}

	got, err := st.GetDecisions(ctx, ListOptions{Tags: TagFilter{IncludeAny: []string{"db"}}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(5), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)

	got, err = st.GetDecisions(ctx, ListOptions{Tags: TagFilter{IncludeAll: []string{"db", "perf"}}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)
}

func TestLogDecisionValidation(t *testing.T) {
	st := setupStore(t)
	_, err := st.LogDecision(context.Background(), models.Decision{Summary: "  "}, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestDeleteUnknownDecision(t *testing.T) {
	st := setupStore(t)
	err := st.DeleteDecision(context.Background(), 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestProgressLifecycle(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t, WithClock(newStepClock().Now))

	parent, err := st.LogProgress(ctx, models.Progress{Status: "todo", Description: "epic"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTodo, parent.Body.Status)

	child, err := st.LogProgress(ctx, models.Progress{Status: "in progress", Description: "task", ParentID: &parent.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, child.Body.Status)

	_, err = st.LogProgress(ctx, models.Progress{Status: "maybe", Description: "x"}, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	missing := int64(99)
	_, err = st.LogProgress(ctx, models.Progress{Status: "TODO", Description: "x", ParentID: &missing}, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	kids, err := st.GetProgress(ctx, ProgressFilter{ParentID: &parent.ID})
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, child.ID, kids[0].ID)

	done := "done"
	updated, err := st.UpdateProgress(ctx, child.ID, ProgressUpdate{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, updated.Body.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	byStatus, err := st.GetProgress(ctx, ProgressFilter{Status: "DONE"})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)

	_, err = st.UpdateProgress(ctx, 77, ProgressUpdate{Status: &done})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = st.UpdateProgress(ctx, child.ID, ProgressUpdate{})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	require.NoError(t, st.DeleteProgress(ctx, parent.ID))
	rest, err := st.GetProgress(ctx, ProgressFilter{})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, rest[0].Body.ParentID)
}

func TestLogProgressWithLink(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)

	d, err := st.LogDecision(ctx, models.Decision{Summary: "adopt FTS5"}, nil)
	require.NoError(t, err)

	p, err := st.LogProgress(ctx, models.Progress{Status: "TODO", Description: "wire FTS5"},
		&ProgressLink{ItemType: models.KindDecision, ItemID: d.ID, RelationshipType: "implements"})
	require.NoError(t, err)

	links, err := st.GetLinked(ctx, models.KindDecision, d.ID, LinkFilter{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, p.ID, links[0].SourceID)
	assert.Equal(t, models.Incoming, links[0].Direction)

	// A failed link rolls the progress entry back.
	_, err = st.LogProgress(ctx, models.Progress{Status: "TODO", Description: "orphan"},
		&ProgressLink{ItemType: models.KindDecision, ItemID: 404, RelationshipType: "implements"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	all, err := st.GetProgress(ctx, ProgressFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestKeyedUpsertKeepsID(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t, WithClock(newStepClock().Now))

	first, err := st.PutKeyed(ctx, models.KindCustomData, models.KeyedValue{Category: "config", Key: "retries", Value: 3})
	require.NoError(t, err)
	second, err := st.PutKeyed(ctx, models.KindCustomData, models.KeyedValue{Category: "config", Key: "retries", Value: 5})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	got, err := st.GetKeyed(ctx, models.KindCustomData, KeyedFilter{Category: "config"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 5, got[0].Body.Value)

	// The same key under glossary is a separate entry.
	_, err = st.PutKeyed(ctx, models.KindGlossaryTerm, models.KeyedValue{Category: "config", Key: "retries", Value: "how often"})
	require.NoError(t, err)

	require.NoError(t, st.DeleteKeyed(ctx, models.KindCustomData, "config", "retries"))
	err = st.DeleteKeyed(ctx, models.KindCustomData, "config", "retries")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	terms, err := st.GetKeyed(ctx, models.KindGlossaryTerm, KeyedFilter{})
	require.NoError(t, err)
	assert.Len(t, terms, 1)
}

func TestUpdateTags(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)

	d, err := st.LogDecision(ctx, models.Decision{Summary: "tagged"}, []string{" b ", "a", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, d.Tags)

	tags, err := st.UpdateTags(ctx, models.KindDecision, d.ID, []string{"c"}, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, tags)

	got, err := st.GetDecision(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, got.Tags)

	tags, err = st.UpdateTags(ctx, models.KindDecision, d.ID, nil, []string{"b", "c"})
	require.NoError(t, err)
	assert.Empty(t, tags)

	_, err = st.UpdateTags(ctx, models.KindProgress, 1, []string{"x"}, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = st.UpdateTags(ctx, models.KindSystemPattern, 9, []string{"x"}, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestContexts(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)

	empty, err := st.GetContext(ctx, models.KindActiveContext)
	require.NoError(t, err)
	assert.Empty(t, empty.Content)
	assert.Nil(t, empty.UpdatedAt)

	_, err = st.ReplaceContext(ctx, models.KindActiveContext, map[string]any{"focus": "search", "blocker": "none"})
	require.NoError(t, err)
	_, err = st.PatchContext(ctx, models.KindActiveContext, map[string]any{"blocker": DeleteMarker, "next": "export"})
	require.NoError(t, err)

	got, err := st.GetContext(ctx, models.KindActiveContext)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"focus": "search", "next": "export"}, got.Content)
	require.NotNil(t, got.UpdatedAt)

	_, err = st.ReplaceContext(ctx, models.KindActiveContext, map[string]any{"only": "this"})
	require.NoError(t, err)
	got, err = st.GetContext(ctx, models.KindActiveContext)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"only": "this"}, got.Content)

	_, err = st.GetContext(ctx, models.KindDecision)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestTagFilterMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter TagFilter
		tags   []string
		want   bool
	}{
		{"empty filter", TagFilter{}, nil, true},
		{"all present", TagFilter{IncludeAll: []string{"a", "b"}}, []string{"a", "b", "c"}, true},
		{"all missing one", TagFilter{IncludeAll: []string{"a", "d"}}, []string{"a", "b"}, false},
		{"any present", TagFilter{IncludeAny: []string{"x", "b"}}, []string{"a", "b"}, true},
		{"any absent", TagFilter{IncludeAny: []string{"x"}}, []string{"a"}, false},
		{"both", TagFilter{IncludeAll: []string{"a"}, IncludeAny: []string{"z", "b"}}, []string{"a", "b"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.match(tt.tags))
		})
	}
}
