package tools

import (
	"context"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
	"github.com/mschulkind/context-portal/internal/params"
	"github.com/mschulkind/context-portal/internal/storage"
)

func (t *Tools) contextOps() []Op {
	var ops []Op
	for _, c := range []struct {
		kind  models.Kind
		label string
		noun  string
	}{
		{models.KindProductContext, "product", "overall project goals, features and architecture"},
		{models.KindActiveContext, "active", "current focus, recent changes and open issues"},
	} {
		kind := c.kind
		ops = append(ops,
			Op{
				Schema: params.Schema{
					Name:        "get_" + c.label + "_context",
					Description: "Retrieve the " + c.label + " context (" + c.noun + "). Empty when never set.",
				},
				Handler: func(ctx context.Context, call *Call) (any, error) {
					ws, err := call.Workspace(ctx)
					if err != nil {
						return nil, err
					}
					return ws.Store.GetContext(ctx, kind)
				},
			},
			Op{
				Schema: params.Schema{
					Name: "update_" + c.label + "_context",
					Description: "Update the " + c.label + " context. Provide content to replace it wholesale, or " +
						"patch_content to merge keys (a value of \"" + storage.DeleteMarker + "\" removes the key).",
					Params: []params.Param{
						{Name: "content", Type: params.Object, Description: "Full replacement content."},
						{Name: "patch_content", Type: params.Object, Description: "Keys to merge into the current content."},
					},
				},
				Handler: func(ctx context.Context, call *Call) (any, error) {
					hasContent, hasPatch := call.Args.Has("content"), call.Args.Has("patch_content")
					if hasContent == hasPatch {
						return nil, apperr.Invalid("exactly one of content or patch_content must be given")
					}
					ws, err := call.Workspace(ctx)
					if err != nil {
						return nil, err
					}
					if hasContent {
						return ws.Store.ReplaceContext(ctx, kind, call.Args.Object("content"))
					}
					return ws.Store.PatchContext(ctx, kind, call.Args.Object("patch_content"))
				},
			},
		)
	}
	return ops
}
