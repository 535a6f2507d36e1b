package contract

import "context"

// Interpreter is the language-model collaborator. Given the conversation so far
// and the tools on offer it either requests tool calls or answers.
// Transport or provider failures must be returned wrapped in ErrModelUnavailable.
type Interpreter interface {
	Complete(ctx context.Context, snapshot []Turn, tools []ToolSummary) (Decision, error)
}

// ToolInvoker never fails through its error channel for tool-level problems;
// those are carried in ToolResult.
type ToolInvoker interface {
	Invoke(ctx context.Context, req ToolRequest) ToolResult
	ListAll() []ToolSummary
}

type AuditSink interface {
	RecordInvocation(ctx context.Context, rec InvocationRecord) error
	Close() error
}
