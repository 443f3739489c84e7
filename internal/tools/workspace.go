package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mschulkind/context-portal/internal/config"
	"github.com/mschulkind/context-portal/internal/export"
	"github.com/mschulkind/context-portal/internal/params"
	"github.com/mschulkind/context-portal/internal/storage"
	"github.com/mschulkind/context-portal/internal/workspace"
)

// WorkspaceInfo is the result of get_workspace_info.
type WorkspaceInfo struct {
	WorkspaceID    workspace.ID     `json:"workspace_id,omitempty"`
	ResolveError   string           `json:"resolve_error,omitempty"`
	Store          *config.Location `json:"store,omitempty"`
	Detection      workspace.Report `json:"detection"`
	DetectionError string           `json:"detection_error,omitempty"`
	AutoDetect     bool             `json:"auto_detect"`
	DBPathOverride string           `json:"db_path_override,omitempty"`
}

// SchemaEntry describes one operation in get_conport_schema.
type SchemaEntry struct {
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

func (t *Tools) workspaceOps() []Op {
	return []Op{
		{
			Schema: params.Schema{
				Name:        "get_recent_activity_summary",
				Description: "Summarize items created or updated in the last hours_ago hours, grouped by kind.",
				Params: []params.Param{
					{Name: "hours_ago", Type: params.Integer, Default: int64(24), Min: params.Min(1), Max: params.Max(storage.MaxActivityHours), Description: "Size of the window in hours."},
					{Name: "limit_per_type", Type: params.Integer, Default: int64(5), Min: params.Min(1), Description: "Maximum items per kind."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return ws.Store.RecentActivity(ctx, c.Args.Int("hours_ago"), c.Args.Int("limit_per_type"))
			},
		},
		{
			Schema: params.Schema{
				Name:        "export_conport_to_markdown",
				Description: "Write the whole store as a markdown report. Unchanged data exports byte-identically.",
				Params: []params.Param{
					{Name: "output_path", Type: params.String, Description: "Report file. Relative paths resolve against the workspace."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				ws, err := c.Workspace(ctx)
				if err != nil {
					return nil, err
				}
				return export.ToFile(ctx, ws.Store, ws.ID.Path(), c.Args.String("output_path"))
			},
		},
		{
			Schema: params.Schema{
				Name:        "get_workspace_info",
				Description: "Explain which workspace and store a call would use and why.",
				Params: []params.Param{
					{Name: "start_path", Type: params.String, Description: "Where detection starts. Defaults to the configured start directory."},
				},
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				cfg := t.Session.Config()
				info := WorkspaceInfo{AutoDetect: cfg.AutoDetect, DBPathOverride: cfg.DBPath}

				start := c.Args.String("start_path")
				if start == "" {
					start = cfg.StartDir
				}
				_, rep, err := t.Session.Detector().FindRoot(start)
				info.Detection = rep
				if err != nil {
					info.DetectionError = err.Error()
				}

				id, err := t.Session.Resolve(c.Args.String(WorkspaceParam))
				if err != nil {
					info.ResolveError = err.Error()
					return info, nil
				}
				info.WorkspaceID = id
				loc, err := config.ResolveStoreLocation(cfg, id)
				if err != nil {
					info.ResolveError = err.Error()
					return info, nil
				}
				info.Store = &loc
				return info, nil
			},
		},
		{
			Schema: params.Schema{
				Name:        "get_conport_schema",
				Description: "List every operation with its declared arguments.",
			},
			Handler: func(ctx context.Context, c *Call) (any, error) {
				out := map[string]SchemaEntry{}
				for _, op := range t.Ops() {
					out[op.Schema.Name] = SchemaEntry{
						Description: op.Schema.Description,
						InputSchema: op.Schema.JSONSchema(),
					}
				}
				return out, nil
			},
		},
	}
}
