// Package tools defines the MCP operations of the server. Every operation is a
// declared argument schema plus a handler; the shared coercion pass in params
// runs before any handler sees its arguments.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/params"
	"github.com/mschulkind/context-portal/internal/session"
)

// WorkspaceParam is accepted by every operation.
const WorkspaceParam = "workspace_id"

// Call is one invocation after argument normalization.
type Call struct {
	Args params.Args

	tools *Tools
	ws    *session.Workspace
}

// Workspace opens the store of the workspace the call addresses.
func (c *Call) Workspace(ctx context.Context) (*session.Workspace, error) {
	if c.ws != nil {
		return c.ws, nil
	}
	ws, err := c.tools.Session.Open(ctx, c.Args.String(WorkspaceParam))
	if err != nil {
		return nil, err
	}
	c.ws = ws
	return ws, nil
}

// Handler runs an operation and returns its JSON-encodable result.
type Handler func(ctx context.Context, c *Call) (any, error)

// Op is one operation.
type Op struct {
	Schema  params.Schema
	Handler Handler
}

// Tools holds the operation table.
type Tools struct {
	Session *session.Session
	log     *zap.Logger
	ops     map[string]Op
}

// New builds the operation table.
func New(sess *session.Session, log *zap.Logger) *Tools {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tools{Session: sess, log: log, ops: map[string]Op{}}
	for _, group := range [][]Op{
		t.contextOps(),
		t.decisionOps(),
		t.progressOps(),
		t.patternOps(),
		t.keyedOps(),
		t.searchOps(),
		t.linkOps(),
		t.workspaceOps(),
	} {
		for _, op := range group {
			t.add(op)
		}
	}
	return t
}

func (t *Tools) add(op Op) {
	op.Schema.Params = append(op.Schema.Params, params.Param{
		Name:        WorkspaceParam,
		Type:        params.String,
		Description: "Workspace identity (absolute path). Detected when omitted.",
	})
	if _, dup := t.ops[op.Schema.Name]; dup {
		panic(fmt.Sprintf("tools: duplicate operation %q", op.Schema.Name))
	}
	t.ops[op.Schema.Name] = op
}

// Ops returns the operations sorted by name.
func (t *Tools) Ops() []Op {
	out := make([]Op, 0, len(t.ops))
	for _, op := range t.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Schema.Name < out[j].Schema.Name })
	return out
}

// Invoke normalizes bag and runs the named operation.
func (t *Tools) Invoke(ctx context.Context, name string, bag map[string]any) (any, error) {
	op, ok := t.ops[name]
	if !ok {
		return nil, apperr.Invalid("unknown operation %q", name)
	}
	args, err := op.Schema.Normalize(bag)
	if err != nil {
		return nil, err
	}
	return op.Handler(ctx, &Call{Args: args, tools: t})
}

// MCPHandler adapts the named operation to a raw MCP tool handler. Failures
// come back as tool results, never as protocol errors.
func (t *Tools) MCPHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		bag, err := params.Decode(req.Params.Arguments)
		if err == nil {
			var res any
			res, err = t.Invoke(ctx, name, bag)
			if err == nil {
				return toolJSON(res), nil
			}
		}
		t.log.Warn("tool failed",
			zap.String("tool", name),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err),
		)
		return toolFailure(err), nil
	}
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err)
	}
	return toolText(string(data))
}

// Failure is the body of a failed tool result.
type Failure struct {
	Error FailureDetail `json:"error"`
}

type FailureDetail struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

func toolFailure(err error) *mcp.CallToolResult {
	data, merr := json.Marshal(Failure{Error: FailureDetail{Kind: apperr.KindOf(err), Message: err.Error()}})
	if merr != nil {
		return toolError("%v", err)
	}
	res := toolText(string(data))
	res.IsError = true
	return res
}

// Deleted is the result of delete operations.
type Deleted struct {
	Deleted bool   `json:"deleted"`
	Kind    string `json:"kind"`
	ID      int64  `json:"id,omitempty"`
}

// --- shared parameter declarations ---

func limitParam(def any, what string) params.Param {
	return params.Param{
		Name:        "limit",
		Type:        params.Integer,
		Default:     def,
		Min:         params.Min(1),
		Description: "Maximum number of " + what + " to return.",
	}
}

func idParam(name, what string) params.Param {
	return params.Param{Name: name, Type: params.Integer, Required: true, Min: params.Min(1), Description: "ID of the " + what + "."}
}

func tagsParam() params.Param {
	return params.Param{Name: "tags", Type: params.StringList, Description: "Tags to attach."}
}

func tagFilterParams() []params.Param {
	return []params.Param{
		{Name: "tags_filter_include_all", Type: params.StringList, Description: "Only items carrying all of these tags."},
		{Name: "tags_filter_include_any", Type: params.StringList, Description: "Only items carrying at least one of these tags."},
	}
}
