package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cloudwego/eino/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
	"github.com/tanpawarit/aws-assistant/agent/tool"
)

const (
	serverName    = "aws-assistant"
	serverVersion = "1.0.0"
)

// New exposes every registry tool as an MCP tool. Calls go through
// invoker, so they get the same validation, retries and metrics as chat.
func New(descriptors []tool.Descriptor, invoker contractx.ToolInvoker) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithInstructions("Read-only inspection of AWS S3 buckets, IAM identities and EC2 instances."),
		server.WithRecovery(),
	)
	for _, d := range descriptors {
		s.AddTool(toolFor(d), handlerFor(invoker, d.Name))
	}
	return s
}

// ServeStdio blocks serving MCP on stdin/stdout until ctx ends.
func ServeStdio(ctx context.Context, s *server.MCPServer) error {
	return server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
}

func toolFor(d tool.Descriptor) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(d.Description),
		mcp.WithReadOnlyHintAnnotation(true),
	}

	names := make([]string, 0, len(d.Params))
	for name := range d.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := d.Params[name]
		if p == nil {
			continue
		}
		props := []mcp.PropertyOption{mcp.Description(p.Desc)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case schema.Integer, schema.Number:
			opts = append(opts, mcp.WithNumber(name, props...))
		case schema.Boolean:
			opts = append(opts, mcp.WithBoolean(name, props...))
		default:
			opts = append(opts, mcp.WithString(name, props...))
		}
	}
	return mcp.NewTool(d.Name, opts...)
}

func handlerFor(invoker contractx.ToolInvoker, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := invoker.Invoke(ctx, contractx.ToolRequest{Tool: name, Args: req.GetArguments()})
		if !result.OK {
			return mcpError(fmt.Sprintf("%s: %s", result.ErrorKind, result.Message)), nil
		}

		raw, err := json.MarshalIndent(result.Payload, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode result: %v", err)), nil
		}
		return mcpText(string(raw)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
