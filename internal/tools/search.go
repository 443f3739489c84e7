package tools

import (
	"context"

	"github.com/mschulkind/context-portal/internal/models"
	"github.com/mschulkind/context-portal/internal/params"
	"github.com/mschulkind/context-portal/internal/storage"
)

const defaultSearchLimit int64 = 10

// Bounds of top_k in semantic_search_conport.
const (
	defaultTopK int64 = 5
	maxTopK     int64 = 25
)

func queryParam() params.Param {
	return params.Param{
		Name:        "query_term",
		Type:        params.String,
		Required:    true,
		Description: "Words to look for. Each word must match a whole word, case-insensitively.",
	}
}

// scopedSearch is a search restricted to one kind.
func scopedSearch(name, what string, kind models.Kind, withCategory bool) Op {
	ps := []params.Param{queryParam(), limitParam(defaultSearchLimit, "results")}
	if withCategory {
		ps = append(ps, params.Param{Name: "category_filter", Type: params.String, Description: "Only this category."})
	}
	return Op{
		Schema: params.Schema{
			Name:        name,
			Description: "Full-text search over " + what + ", best match first.",
			Params:      ps,
		},
		Handler: func(ctx context.Context, c *Call) (any, error) {
			ws, err := c.Workspace(ctx)
			if err != nil {
				return nil, err
			}
			return ws.Store.Search(ctx, c.Args.String("query_term"), storage.SearchOptions{
				Scope:    []models.Kind{kind},
				Category: c.Args.String("category_filter"),
				Limit:    c.Args.Int("limit"),
			})
		},
	}
}

func (t *Tools) searchOps() []Op {
	return []Op{
		scopedSearch("search_decisions_fts", "decision summaries, rationale and details", models.KindDecision, false),
		scopedSearch("search_system_patterns_fts", "system pattern names and descriptions", models.KindSystemPattern, false),
		scopedSearch("search_custom_data_value_fts", "custom data categories, keys and values", models.KindCustomData, true),
		scopedSearch("search_project_glossary_fts", "glossary terms and definitions", models.KindGlossaryTerm, false),
		{
			Schema: params.Schema{
				Name: "semantic_search_conport",
				Description: "Relevance search for a natural-language question: entries matching any of its words, " +
					"those matching more and rarer words first.",
				Params: []params.Param{
					{Name: "query_text", Type: params.String, Required: true, Description: "The question or phrase."},
					{Name: "top_k", Type: params.Integer, Default: defaultTopK, Min: params.Min(1), Max: params.Max(maxTopK), Description: "Number of results."},
					{Name: "filter_item_types", Type: params.StringList, Description: "Kinds to search. Defaults to every searchable kind."},
					{Name: "filter_tags_include_any", Type: params.StringList, Description: "Only items carrying at least one of these tags."},
					{Name: "filter_tags_include_all", Type: params.StringList, Description: "Only items carrying all of these tags."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				scope, err := parseScope(c.Args.Strings("filter_item_types"))
				if err != nil {
					return nil, err
				}
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.Search(ctx, c.Args.String("query_text"), storage.SearchOptions{
					Scope:   scope,
					Limit:   c.Args.Int("top_k"),
					AnyTerm: true,
					Tags: storage.TagFilter{
						IncludeAll: c.Args.Strings("filter_tags_include_all"),
						IncludeAny: c.Args.Strings("filter_tags_include_any"),
					},
				})
			},
		},
		{
			Schema: params.Schema{
				Name:        "search_conport",
				Description: "Full-text search across decisions, system patterns, glossary and custom data.",
				Params: []params.Param{
					queryParam(),
					{Name: "scope", Type: params.StringList, Description: "Kinds to search. Defaults to every searchable kind."},
					limitParam(defaultSearchLimit, "results"),
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				scope, err := parseScope(c.Args.Strings("scope"))
				if err != nil {
					return nil, err
				}
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.Search(ctx, c.Args.String("query_term"), storage.SearchOptions{
					Scope: scope,
					Limit: c.Args.Int("limit"),
				})
			},
		},
	}
}

func parseScope(names []string) ([]models.Kind, error) {
	var scope []models.Kind
	for _, s := range names {
		k, err := models.ParseItemKind(s)
		if err != nil {
			return nil, err
		}
		scope = append(scope, k)
	}
	return scope, nil
}
