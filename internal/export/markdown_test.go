package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschulkind/context-portal/internal/models"
	"github.com/mschulkind/context-portal/internal/storage"
)

func seededStore(t *testing.T) *storage.Store {
	t.Helper()
	ctx := context.Background()
	cur := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	st, err := storage.Open(ctx, filepath.Join(t.TempDir(), "context.db"),
		storage.WithClock(func() time.Time { cur = cur.Add(time.Minute); return cur }))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = st.ReplaceContext(ctx, models.KindProductContext, map[string]any{
		"name": "portal", "goals": []any{"fast", "local"}, "owner": map[string]any{"team": "core", "size": 3},
	})
	require.NoError(t, err)
	d, err := st.LogDecision(ctx, models.Decision{Summary: "Use SQLite", Rationale: "embedded"}, []string{"db", "arch"})
	require.NoError(t, err)
	_, err = st.LogDecision(ctx, models.Decision{Summary: "Quote search terms"}, nil)
	require.NoError(t, err)
	p, err := st.LogProgress(ctx, models.Progress{Status: "TODO", Description: "write exporter"}, nil)
	require.NoError(t, err)
	_, err = st.LogSystemPattern(ctx, models.SystemPattern{Name: "Repository", Description: "one store per workspace"}, nil)
	require.NoError(t, err)
	_, err = st.PutKeyed(ctx, models.KindGlossaryTerm, models.KeyedValue{Category: models.DefaultGlossaryCategory, Key: "FTS", Value: "full-text search"})
	require.NoError(t, err)
	_, err = st.PutKeyed(ctx, models.KindCustomData, models.KeyedValue{Category: "limits", Key: "export", Value: map[string]any{"b": 2, "a": 1}})
	require.NoError(t, err)
	_, err = st.Link(ctx, models.Link{
		SourceType: models.KindProgress, SourceID: p.ID,
		TargetType: models.KindDecision, TargetID: d.ID,
		RelationshipType: "implements", Description: "exporter uses the store",
	})
	require.NoError(t, err)
	return st
}

func TestMarkdownIsDeterministic(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t)

	snap1, err := st.Snapshot(ctx)
	require.NoError(t, err)
	first, err := Markdown(snap1)
	require.NoError(t, err)

	snap2, err := st.Snapshot(ctx)
	require.NoError(t, err)
	second, err := Markdown(snap2)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestMarkdownOrder(t *testing.T) {
	st := seededStore(t)
	snap, err := st.Snapshot(context.Background())
	require.NoError(t, err)
	doc, err := Markdown(snap)
	require.NoError(t, err)
	text := string(doc)

	sections := []string{
		"## Product Context", "## Active Context", "## Decisions", "## Progress",
		"## System Patterns", "## Glossary", "## Custom Data", "## Links",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(text, s)
		require.GreaterOrEqual(t, idx, 0, s)
		assert.Greater(t, idx, last, "%s out of order", s)
		last = idx
	}

	assert.Less(t, strings.Index(text, "Decision 1: Use SQLite"), strings.Index(text, "Decision 2: Quote search terms"))
	assert.Contains(t, text, "- tags: arch, db")
	assert.Contains(t, text, "a: 1\nb: 2\n")
	assert.Contains(t, text, "progress_entry 1 -[implements]-> decision 1: exporter uses the store")
}

func TestToFile(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t)
	ws := t.TempDir()

	res, err := ToFile(ctx, st, ws, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(filepath.Join(ws, DefaultDir, DefaultFile)), res.Path)

	data, err := os.ReadFile(filepath.FromSlash(res.Path))
	require.NoError(t, err)
	assert.Len(t, data, res.Bytes)

	again, err := ToFile(ctx, st, ws, "reports/out.md")
	require.NoError(t, err)
	other, err := os.ReadFile(filepath.FromSlash(again.Path))
	require.NoError(t, err)
	assert.Equal(t, data, other)
}
