package tools

import (
	"context"

	"github.com/mschulkind/context-portal/internal/models"
	"github.com/mschulkind/context-portal/internal/params"
	"github.com/mschulkind/context-portal/internal/storage"
)

func (t *Tools) linkOps() []Op {
	return []Op{
		{
			Schema: params.Schema{
				Name:        "link_conport_items",
				Description: "Create a directed, labelled link between two items.",
				Params: []params.Param{
					{Name: "source_item_type", Type: params.String, Required: true, Description: "Type of the source item."},
					idParam("source_item_id", "source item"),
					{Name: "target_item_type", Type: params.String, Required: true, Description: "Type of the target item."},
					idParam("target_item_id", "target item"),
					{Name: "relationship_type", Type: params.String, Required: true, Description: "Label such as implements or depends_on."},
					{Name: "description", Type: params.String, Description: "Optional note on the link."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				src, err := models.ParseItemKind(c.Args.String("source_item_type"))
				if err != nil {
					return nil, err
				}
				dst, err := models.ParseItemKind(c.Args.String("target_item_type"))
				if err != nil {
					return nil, err
				}
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.Link(ctx, models.Link{
					SourceType:       src,
					SourceID:         c.Args.Int("source_item_id"),
					TargetType:       dst,
					TargetID:         c.Args.Int("target_item_id"),
					RelationshipType: c.Args.String("relationship_type"),
					Description:      c.Args.String("description"),
				})
			},
		},
		{
			Schema: params.Schema{
				Name:        "get_linked_items",
				Description: "List the links touching an item, each with its direction relative to that item.",
				Params: []params.Param{
					{Name: "item_type", Type: params.String, Required: true, Description: "Type of the item."},
					idParam("item_id", "item"),
					{Name: "relationship_type_filter", Type: params.String, Description: "Only this relationship."},
					{Name: "linked_item_type_filter", Type: params.String, Description: "Only links whose other end has this type."},
					limitParam(nil, "links"),
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				kind, err := models.ParseItemKind(c.Args.String("item_type"))
				if err != nil {
					return nil, err
				}
				var other models.Kind
				if s := c.Args.String("linked_item_type_filter"); s != "" {
					if other, err = models.ParseItemKind(s); err != nil {
						return nil, err
					}
				}
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.GetLinked(ctx, kind, c.Args.Int("item_id"), storage.LinkFilter{
					RelationshipType: c.Args.String("relationship_type_filter"),
					LinkedItemType:   other,
					Limit:            c.Args.Int("limit"),
				})
			},
		},
	}
}
