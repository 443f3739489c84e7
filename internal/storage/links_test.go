package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
)

func TestLinkDirection(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t, WithClock(newStepClock().Now))

	a, err := st.LogDecision(ctx, models.Decision{Summary: "A"}, nil)
	require.NoError(t, err)
	b, err := st.LogSystemPattern(ctx, models.SystemPattern{Name: "B"}, nil)
	require.NoError(t, err)

	l, err := st.Link(ctx, models.Link{
		SourceType: models.KindDecision, SourceID: a.ID,
		TargetType: models.KindSystemPattern, TargetID: b.ID,
		RelationshipType: "implements", Description: "A drives B",
	})
	require.NoError(t, err)
	assert.NotZero(t, l.ID)

	fromB, err := st.GetLinked(ctx, models.KindSystemPattern, b.ID, LinkFilter{})
	require.NoError(t, err)
	require.Len(t, fromB, 1)
	assert.Equal(t, models.Incoming, fromB[0].Direction)
	assert.Equal(t, models.KindSystemPattern, fromB[0].TargetType)
	assert.Equal(t, b.ID, fromB[0].TargetID)

	fromA, err := st.GetLinked(ctx, models.KindDecision, a.ID, LinkFilter{})
	require.NoError(t, err)
	require.Len(t, fromA, 1)
	assert.Equal(t, models.Outgoing, fromA[0].Direction)
}

func TestLinkMissingEndpointCreatesNothing(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)

	a, err := st.LogDecision(ctx, models.Decision{Summary: "A"}, nil)
	require.NoError(t, err)

	_, err = st.Link(ctx, models.Link{
		SourceType: models.KindDecision, SourceID: a.ID,
		TargetType: models.KindDecision, TargetID: 999,
		RelationshipType: "depends_on",
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	links, err := st.GetLinked(ctx, models.KindDecision, a.ID, LinkFilter{})
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestLinkDuplicate(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)

	a, err := st.LogDecision(ctx, models.Decision{Summary: "A"}, nil)
	require.NoError(t, err)
	b, err := st.LogDecision(ctx, models.Decision{Summary: "B"}, nil)
	require.NoError(t, err)

	link := models.Link{
		SourceType: models.KindDecision, SourceID: a.ID,
		TargetType: models.KindDecision, TargetID: b.ID,
		RelationshipType: "supersedes",
	}
	_, err = st.Link(ctx, link)
	require.NoError(t, err)
	_, err = st.Link(ctx, link)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	// Another relationship between the same pair is fine.
	link.RelationshipType = "related_to"
	_, err = st.Link(ctx, link)
	assert.NoError(t, err)
}

func TestLinkFilters(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t, WithClock(newStepClock().Now))

	d, err := st.LogDecision(ctx, models.Decision{Summary: "hub"}, nil)
	require.NoError(t, err)
	p, err := st.LogSystemPattern(ctx, models.SystemPattern{Name: "spoke"}, nil)
	require.NoError(t, err)
	pr, err := st.LogProgress(ctx, models.Progress{Status: "TODO", Description: "spoke"}, nil)
	require.NoError(t, err)

	mustLink := func(src models.Kind, sid int64, dst models.Kind, did int64, rel string) {
		t.Helper()
		_, err := st.Link(ctx, models.Link{SourceType: src, SourceID: sid, TargetType: dst, TargetID: did, RelationshipType: rel})
		require.NoError(t, err)
	}
	mustLink(models.KindDecision, d.ID, models.KindSystemPattern, p.ID, "implements")
	mustLink(models.KindProgress, pr.ID, models.KindDecision, d.ID, "tracks")
	mustLink(models.KindDecision, d.ID, models.KindProgress, pr.ID, "blocks")

	got, err := st.GetLinked(ctx, models.KindDecision, d.ID, LinkFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = st.GetLinked(ctx, models.KindDecision, d.ID, LinkFilter{LinkedItemType: models.KindProgress})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = st.GetLinked(ctx, models.KindDecision, d.ID, LinkFilter{RelationshipType: "tracks"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.Incoming, got[0].Direction)

	got, err = st.GetLinked(ctx, models.KindDecision, d.ID, LinkFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "blocks", got[0].RelationshipType)
}

func TestDeleteCascadesLinks(t *testing.T) {
	ctx := context.Background()
	st := setupStore(t)

	a, err := st.LogDecision(ctx, models.Decision{Summary: "A"}, nil)
	require.NoError(t, err)
	b, err := st.LogSystemPattern(ctx, models.SystemPattern{Name: "B"}, nil)
	require.NoError(t, err)
	_, err = st.Link(ctx, models.Link{
		SourceType: models.KindDecision, SourceID: a.ID,
		TargetType: models.KindSystemPattern, TargetID: b.ID,
		RelationshipType: "implements",
	})
	require.NoError(t, err)

	require.NoError(t, st.DeleteDecision(ctx, a.ID))

	got, err := st.GetLinked(ctx, models.KindSystemPattern, b.ID, LinkFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestContextsCannotBeLinked(t *testing.T) {
	st := setupStore(t)
	_, err := st.Link(context.Background(), models.Link{
		SourceType: models.KindProductContext, SourceID: 1,
		TargetType: models.KindDecision, TargetID: 1,
		RelationshipType: "x",
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
