package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/mschulkind/context-portal/internal/session"
	"github.com/mschulkind/context-portal/internal/tools"
)

// Version is reported to clients during initialization.
const Version = "0.3.0"

// New creates a fully configured MCP server with all tools registered.
//
// Tools are registered raw: their input schemas admit strings for integer
// arguments and the operation table coerces them, so the SDK's typed
// validation is bypassed on purpose.
func New(sess *session.Session, log *zap.Logger) *mcp.Server {
	if log == nil {
		log = zap.NewNop()
	}
	tl := tools.New(sess, log.Named("tools"))

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "context-portal",
		Version: Version,
	}, nil)

	for _, op := range tl.Ops() {
		srv.AddTool(&mcp.Tool{
			Name:        op.Schema.Name,
			Description: op.Schema.Description,
			InputSchema: op.Schema.JSONSchema(),
		}, tl.MCPHandler(op.Schema.Name))
	}
	log.Debug("tools registered", zap.Int("count", len(tl.Ops())))
	return srv
}
