package tools

import (
	"context"

	"github.com/mschulkind/context-portal/internal/models"
	"github.com/mschulkind/context-portal/internal/params"
	"github.com/mschulkind/context-portal/internal/storage"
)

// GlossaryTerm is how glossary entries are presented.
type GlossaryTerm struct {
	models.Envelope
	Category   string `json:"category"`
	Term       string `json:"term"`
	Definition any    `json:"definition"`
}

func glossaryView(e storage.KeyedEntry) GlossaryTerm {
	return GlossaryTerm{Envelope: e.Envelope, Category: e.Body.Category, Term: e.Body.Key, Definition: e.Body.Value}
}

func (t *Tools) keyedOps() []Op {
	return []Op{
		{
			Schema: params.Schema{
				Name:        "log_custom_data",
				Description: "Store structured data under (category, key). An existing entry is replaced and keeps its id.",
				Params: []params.Param{
					{Name: "category", Type: params.String, Required: true, Description: "Category of the entry."},
					{Name: "key", Type: params.String, Required: true, Description: "Key within the category."},
					{Name: "value", Type: params.Any, Required: true, Description: "Any JSON value."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.PutKeyed(ctx, models.KindCustomData, models.KeyedValue{
					Category: c.Args.String("category"),
					Key:      c.Args.String("key"),
					Value:    c.Args.Value("value"),
				})
			},
		},
		{
			Schema: params.Schema{
				Name:        "get_custom_data",
				Description: "Retrieve custom data, optionally narrowed to a category and key.",
				Params: []params.Param{
					{Name: "category", Type: params.String, Description: "Only this category."},
					{Name: "key", Type: params.String, Description: "Only this key."},
					limitParam(nil, "entries"),
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.GetKeyed(ctx, models.KindCustomData, storage.KeyedFilter{
					Category: c.Args.String("category"),
					Key:      c.Args.String("key"),
					Limit:    c.Args.Int("limit"),
				})
			},
		},
		{
			Schema: params.Schema{
				Name:        "delete_custom_data",
				Description: "Delete the custom data entry at (category, key).",
				Params: []params.Param{
					{Name: "category", Type: params.String, Required: true, Description: "Category of the entry."},
					{Name: "key", Type: params.String, Required: true, Description: "Key within the category."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				if err := ws.Store.DeleteKeyed(ctx, models.KindCustomData, c.Args.String("category"), c.Args.String("key")); err != nil {
					return nil, err
				}
				return Deleted{Deleted: true, Kind: string(models.KindCustomData)}, nil
			},
		},
		{
			Schema: params.Schema{
				Name:        "log_glossary_term",
				Description: "Define a project glossary term. Redefining a term keeps its id.",
				Params: []params.Param{
					{Name: "term", Type: params.String, Required: true, Description: "The term."},
					{Name: "definition", Type: params.String, Required: true, Description: "Its definition."},
					{Name: "category", Type: params.String, Default: models.DefaultGlossaryCategory, Description: "Glossary category."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				e, err := ws.Store.PutKeyed(ctx, models.KindGlossaryTerm, models.KeyedValue{
					Category: glossaryCategory(c.Args),
					Key:      c.Args.String("term"),
					Value:    c.Args.String("definition"),
				})
				if err != nil {
					return nil, err
				}
				return glossaryView(e), nil
			},
		},
		{
			Schema: params.Schema{
				Name:        "get_glossary_terms",
				Description: "Retrieve glossary terms, optionally narrowed to a category or term.",
				Params: []params.Param{
					{Name: "category", Type: params.String, Description: "Only this category."},
					{Name: "term", Type: params.String, Description: "Only this term."},
					limitParam(nil, "terms"),
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				entries, err := ws.Store.GetKeyed(ctx, models.KindGlossaryTerm, storage.KeyedFilter{
					Category: c.Args.String("category"),
					Key:      c.Args.String("term"),
					Limit:    c.Args.Int("limit"),
				})
				if err != nil {
					return nil, err
				}
				out := make([]GlossaryTerm, len(entries))
				for i, e := range entries {
					out[i] = glossaryView(e)
				}
				return out, nil
			},
		},
		{
			Schema: params.Schema{
				Name:        "delete_glossary_term",
				Description: "Delete a glossary term.",
				Params: []params.Param{
					{Name: "term", Type: params.String, Required: true, Description: "The term."},
					{Name: "category", Type: params.String, Default: models.DefaultGlossaryCategory, Description: "Glossary category."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				if err := ws.Store.DeleteKeyed(ctx, models.KindGlossaryTerm, glossaryCategory(c.Args), c.Args.String("term")); err != nil {
					return nil, err
				}
				return Deleted{Deleted: true, Kind: string(models.KindGlossaryTerm)}, nil
			},
		},
	}
}

// glossaryCategory treats an empty category like an absent one.
func glossaryCategory(a params.Args) string {
	if c := a.String("category"); c != "" {
		return c
	}
	return models.DefaultGlossaryCategory
}
