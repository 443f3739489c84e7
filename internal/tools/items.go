package tools

import (
	"context"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
	"github.com/mschulkind/context-portal/internal/params"
	"github.com/mschulkind/context-portal/internal/storage"
)

var errLinkedID = apperr.Invalid("linked_item_id is required with linked_item_type")

func tagFilter(a params.Args) storage.TagFilter {
	return storage.TagFilter{
		IncludeAll: a.Strings("tags_filter_include_all"),
		IncludeAny: a.Strings("tags_filter_include_any"),
	}
}

func (t *Tools) decisionOps() []Op {
	return []Op{
		{
			Schema: params.Schema{
				Name:        "log_decision",
				Description: "Log an architectural or implementation decision.",
				Params: []params.Param{
					{Name: "summary", Type: params.String, Required: true, Description: "Concise summary of the decision."},
					{Name: "rationale", Type: params.String, Description: "Why the decision was made."},
					{Name: "implementation_details", Type: params.String, Description: "How it will be or was implemented."},
					tagsParam(),
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.LogDecision(ctx, models.Decision{
					Summary:               c.Args.String("summary"),
					Rationale:             c.Args.String("rationale"),
					ImplementationDetails: c.Args.String("implementation_details"),
				}, c.Args.Strings("tags"))
			},
		},
		{
			Schema: params.Schema{
				Name:        "get_decisions",
				Description: "Retrieve logged decisions, most recent first.",
				Params:      append([]params.Param{limitParam(nil, "decisions")}, tagFilterParams()...),
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.GetDecisions(ctx, storage.ListOptions{Tags: tagFilter(c.Args), Limit: c.Args.Int("limit")})
			},
		},
		{
			Schema: params.Schema{
				Name:        "delete_decision_by_id",
				Description: "Delete a decision and the links touching it.",
				Params:      []params.Param{idParam("decision_id", "decision")},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				id := c.Args.Int("decision_id")
				if err := ws.Store.DeleteDecision(ctx, id); err != nil {
					return nil, err
				}
				return Deleted{Deleted: true, Kind: string(models.KindDecision), ID: id}, nil
			},
		},
		{
			Schema: params.Schema{
				Name:        "update_item_tags",
				Description: "Add or remove tags on a decision or system pattern.",
				Params: []params.Param{
					{Name: "item_type", Type: params.String, Required: true, Description: "decision or system_pattern."},
					idParam("item_id", "item"),
					{Name: "add_tags", Type: params.StringList, Description: "Tags to add."},
					{Name: "remove_tags", Type: params.StringList, Description: "Tags to remove."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				kind, err := models.ParseItemKind(c.Args.String("item_type"))
				if err != nil {
					return nil, err
				}
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				id := c.Args.Int("item_id")
				tags, err := ws.Store.UpdateTags(ctx, kind, id, c.Args.Strings("add_tags"), c.Args.Strings("remove_tags"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"item_type": kind, "item_id": id, "tags": tags}, nil
			},
		},
	}
}

func (t *Tools) progressOps() []Op {
	statusHelp := "One of TODO, IN_PROGRESS, DONE, BLOCKED."
	return []Op{
		{
			Schema: params.Schema{
				Name:        "log_progress",
				Description: "Log a progress entry, optionally under a parent and linked to another item.",
				Params: []params.Param{
					{Name: "status", Type: params.String, Required: true, Description: statusHelp},
					{Name: "description", Type: params.String, Required: true, Description: "What the entry is about."},
					{Name: "parent_id", Type: params.Integer, Min: params.Min(1), Description: "ID of the parent progress entry."},
					{Name: "linked_item_type", Type: params.String, Description: "Type of an item to link the entry to."},
					{Name: "linked_item_id", Type: params.Integer, Min: params.Min(1), Description: "ID of the item to link to."},
					{Name: "link_relationship_type", Type: params.String, Default: "relates_to_progress", Description: "Relationship of the link."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				var link *storage.ProgressLink
				if c.Args.String("linked_item_type") != "" || c.Args.Has("linked_item_id") {
					kind, err := models.ParseItemKind(c.Args.String("linked_item_type"))
					if err != nil {
						return nil, err
					}
					if !c.Args.Has("linked_item_id") {
						return nil, errLinkedID
					}
					link = &storage.ProgressLink{
						ItemType:         kind,
						ItemID:           c.Args.Int("linked_item_id"),
						RelationshipType: c.Args.String("link_relationship_type"),
					}
				}
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.LogProgress(ctx, models.Progress{
					Status:      c.Args.String("status"),
					Description: c.Args.String("description"),
					ParentID:    c.Args.OptionalInt("parent_id"),
				}, link)
			},
		},
		{
			Schema: params.Schema{
				Name:        "get_progress",
				Description: "Retrieve progress entries, most recent first.",
				Params: []params.Param{
					{Name: "status_filter", Type: params.String, Description: statusHelp},
					{Name: "parent_id_filter", Type: params.Integer, Min: params.Min(1), Description: "Only children of this entry."},
					limitParam(nil, "entries"),
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.GetProgress(ctx, storage.ProgressFilter{
					Status:   c.Args.String("status_filter"),
					ParentID: c.Args.OptionalInt("parent_id_filter"),
					Limit:    c.Args.Int("limit"),
				})
			},
		},
		{
			Schema: params.Schema{
				Name:        "update_progress",
				Description: "Update status, description or parent of a progress entry.",
				Params: []params.Param{
					idParam("progress_id", "progress entry"),
					{Name: "status", Type: params.String, Description: statusHelp},
					{Name: "description", Type: params.String, Description: "New description."},
					{Name: "parent_id", Type: params.Integer, Min: params.Min(1), Description: "New parent entry."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				var u storage.ProgressUpdate
				if c.Args.Has("status") {
					s := c.Args.String("status")
					u.Status = &s
				}
				if c.Args.Has("description") {
					d := c.Args.String("description")
					u.Description = &d
				}
				u.ParentID = c.Args.OptionalInt("parent_id")
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.UpdateProgress(ctx, c.Args.Int("progress_id"), u)
			},
		},
		{
			Schema: params.Schema{
				Name:        "delete_progress_by_id",
				Description: "Delete a progress entry. Its children keep existing without a parent.",
				Params:      []params.Param{idParam("progress_id", "progress entry")},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				id := c.Args.Int("progress_id")
				if err := ws.Store.DeleteProgress(ctx, id); err != nil {
					return nil, err
				}
				return Deleted{Deleted: true, Kind: string(models.KindProgress), ID: id}, nil
			},
		},
	}
}

func (t *Tools) patternOps() []Op {
	return []Op{
		{
			Schema: params.Schema{
				Name:        "log_system_pattern",
				Description: "Log a system or coding pattern used in the project.",
				Params: []params.Param{
					{Name: "name", Type: params.String, Required: true, Description: "Pattern name."},
					{Name: "description", Type: params.String, Description: "What the pattern is and where it applies."},
					tagsParam(),
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.LogSystemPattern(ctx, models.SystemPattern{
					Name:        c.Args.String("name"),
					Description: c.Args.String("description"),
				}, c.Args.Strings("tags"))
			},
		},
		{
			Schema: params.Schema{
				Name:        "get_system_patterns",
				Description: "Retrieve system patterns, most recent first.",
				Params:      append([]params.Param{limitParam(nil, "patterns")}, tagFilterParams()...),
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.GetSystemPatterns(ctx, storage.ListOptions{Tags: tagFilter(c.Args), Limit: c.Args.Int("limit")})
			},
		},
		{
			Schema: params.Schema{
				Name:        "delete_system_pattern_by_id",
				Description: "Delete a system pattern and the links touching it.",
				Params:      []params.Param{idParam("pattern_id", "system pattern")},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				id := c.Args.Int("pattern_id")
				if err := ws.Store.DeleteSystemPattern(ctx, id); err != nil {
					return nil, err
				}
				return Deleted{Deleted: true, Kind: string(models.KindSystemPattern), ID: id}, nil
			},
		},
	}
}
