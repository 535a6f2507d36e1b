package contract

import (
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
	RoleAssistant Role = "assistant"
)

// ErrorKind is the abstract category a failed tool or cloud call falls into.
type ErrorKind string

const (
	KindThrottled    ErrorKind = "throttled"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindTransient    ErrorKind = "transient"
	KindUnknown      ErrorKind = "unknown"
	KindInvalidInput ErrorKind = "invalid_input"
	KindToolNotFound ErrorKind = "tool_not_found"
)

type ToolRequest struct {
	CallID string         `json:"call_id,omitempty"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`

	// RawArgs and ArgsError are set when the model's arguments did not decode.
	// Such a request is answered with an invalid_input result and never invoked.
	RawArgs   string `json:"raw_args,omitempty"`
	ArgsError string `json:"args_error,omitempty"`
}

func (r ToolRequest) Malformed() bool {
	return r.ArgsError != ""
}

// ToolResult carries either a payload (OK) or an error kind with a message, never both.
type ToolResult struct {
	Tool      string    `json:"tool"`
	OK        bool      `json:"ok"`
	Payload   any       `json:"payload,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func Success(tool string, payload any) ToolResult {
	return ToolResult{Tool: tool, OK: true, Payload: payload}
}

func Failure(tool string, kind ErrorKind, message string) ToolResult {
	if kind == "" {
		kind = KindUnknown
	}
	return ToolResult{Tool: tool, ErrorKind: kind, Message: strings.TrimSpace(message)}
}

// ToolSummary is what the registry exposes about a tool to the model and to users.
type ToolSummary struct {
	Name        string
	Description string
	Info        *schema.ToolInfo
}

type Turn struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Content   string        `json:"content,omitempty"`
	ToolCalls []ToolRequest `json:"tool_calls,omitempty"`
	Call      *ToolRequest  `json:"call,omitempty"`
	Result    *ToolResult   `json:"result,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Decision is the interpreter's verdict for one cycle: tool calls to run, or a final answer.
type Decision struct {
	ToolCalls []ToolRequest
	Answer    string
}

func (d Decision) WantsTools() bool {
	return len(d.ToolCalls) > 0
}

type InvocationRecord struct {
	SessionID string
	CycleID   string
	Cycle     int
	Tool      string
	Args      map[string]any
	OK        bool
	ErrorKind ErrorKind
	Message   string
	Duration  time.Duration
	At        time.Time
}
