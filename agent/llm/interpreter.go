package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

const historyKey = "history"

// Interpreter asks a tool-calling chat model for the next step of a cycle.
// The compiled graph is cached per tool set.
type Interpreter struct {
	chatModel    einomodel.ToolCallingChatModel
	systemPrompt string
	vars         map[string]any

	mu       sync.Mutex
	toolsKey string
	runner   compose.Runnable[[]contractx.Turn, *schema.Message]
}

var _ contractx.Interpreter = (*Interpreter)(nil)

// NewInterpreter validates its inputs; graphs are compiled lazily on the
// first Complete. vars fill the FString placeholders of systemPrompt.
func NewInterpreter(chatModel einomodel.ToolCallingChatModel, systemPrompt string, vars map[string]any) (*Interpreter, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: system prompt", contractx.ErrPromptMissing)
	}
	copied := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		copied[k] = v
	}
	return &Interpreter{chatModel: chatModel, systemPrompt: systemPrompt, vars: copied}, nil
}

func (i *Interpreter) Complete(ctx context.Context, snapshot []contractx.Turn, tools []contractx.ToolSummary) (contractx.Decision, error) {
	runner, err := i.runnerFor(ctx, tools)
	if err != nil {
		return contractx.Decision{}, err
	}

	msg, err := runner.Invoke(ctx, snapshot)
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: %v", contractx.ErrModelUnavailable, err)
	}
	if msg == nil {
		return contractx.Decision{}, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}

	calls, err := toToolRequests(msg.ToolCalls)
	if err != nil {
		return contractx.Decision{}, err
	}
	if len(calls) > 0 {
		return contractx.Decision{ToolCalls: calls, Answer: strings.TrimSpace(msg.Content)}, nil
	}

	answer := strings.TrimSpace(msg.Content)
	if answer == "" {
		return contractx.Decision{}, fmt.Errorf("%w: model returned neither tool calls nor an answer", contractx.ErrSchemaViolation)
	}
	return contractx.Decision{Answer: answer}, nil
}

func (i *Interpreter) runnerFor(ctx context.Context, tools []contractx.ToolSummary) (compose.Runnable[[]contractx.Turn, *schema.Message], error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		if t.Info == nil {
			continue
		}
		infos = append(infos, t.Info)
		names = append(names, t.Info.Name)
	}
	key := strings.Join(names, ",")

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.runner != nil && i.toolsKey == key {
		return i.runner, nil
	}

	var chatModel einomodel.BaseChatModel = i.chatModel
	if len(infos) > 0 {
		bound, err := i.chatModel.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelUnavailable, err)
		}
		chatModel = bound
	}

	runner, err := compileInterpretGraph(ctx, chatModel, i.systemPrompt, i.vars)
	if err != nil {
		return nil, err
	}
	i.runner = runner
	i.toolsKey = key
	return runner, nil
}

func compileInterpretGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	vars map[string]any,
) (compose.Runnable[[]contractx.Turn, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder(historyKey, false),
	)

	graph := compose.NewGraph[[]contractx.Turn, *schema.Message]()
	if err := graph.AddLambdaNode("to_messages",
		compose.InvokableLambda(func(ctx context.Context, turns []contractx.Turn) (map[string]any, error) {
			in := make(map[string]any, len(vars)+1)
			for k, v := range vars {
				in[k] = v
			}
			in[historyKey] = toMessages(turns)
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add interpret node to_messages: %w", err)
	}
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add interpret prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add interpret model node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "to_messages"},
		{"to_messages", "prompt"},
		{"prompt", "model"},
		{"model", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("interpreter.complete"))
	if err != nil {
		return nil, fmt.Errorf("compile interpret graph: %w", err)
	}
	return runner, nil
}

// toMessages renders turns for the chat model. Eviction can leave a tool
// result without the assistant turn that requested it, or the reverse; such
// orphans are dropped because providers reject unmatched tool messages.
func toMessages(turns []contractx.Turn) []*schema.Message {
	answered := make(map[string]bool)
	for _, t := range turns {
		if t.Role == contractx.RoleTool && t.Call != nil && t.Call.CallID != "" {
			answered[t.Call.CallID] = true
		}
	}

	requested := make(map[string]bool)
	out := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case contractx.RoleUser:
			out = append(out, schema.UserMessage(t.Content))
		case contractx.RoleAssistant:
			if len(t.ToolCalls) == 0 {
				out = append(out, schema.AssistantMessage(t.Content, nil))
				continue
			}
			var calls []schema.ToolCall
			for _, c := range t.ToolCalls {
				if !answered[c.CallID] {
					continue
				}
				requested[c.CallID] = true
				calls = append(calls, schema.ToolCall{
					ID:       c.CallID,
					Type:     "function",
					Function: schema.FunctionCall{Name: c.Tool, Arguments: callArguments(c)},
				})
			}
			if len(calls) == 0 {
				if strings.TrimSpace(t.Content) != "" {
					out = append(out, schema.AssistantMessage(t.Content, nil))
				}
				continue
			}
			out = append(out, schema.AssistantMessage(t.Content, calls))
		case contractx.RoleTool:
			if t.Call == nil || !requested[t.Call.CallID] {
				continue
			}
			out = append(out, &schema.Message{
				Role:       schema.Tool,
				Content:    toolContent(t),
				ToolCallID: t.Call.CallID,
			})
		}
	}
	return out
}

func toolContent(t contractx.Turn) string {
	if t.Content != "" || t.Result == nil {
		return t.Content
	}
	raw, err := json.Marshal(t.Result)
	if err != nil {
		return t.Result.Message
	}
	return string(raw)
}

// callArguments replays what the model sent, including arguments that did not
// decode, so its next turn sees its own mistake.
func callArguments(c contractx.ToolRequest) string {
	if c.Malformed() {
		return c.RawArgs
	}
	return encodeArgs(c.Args)
}

func encodeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func toToolRequests(calls []schema.ToolCall) ([]contractx.ToolRequest, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	reqs := make([]contractx.ToolRequest, 0, len(calls))
	for _, call := range calls {
		tool := strings.TrimSpace(call.Function.Name)
		if tool == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		id := strings.TrimSpace(call.ID)
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		req := contractx.ToolRequest{CallID: id, Tool: tool, Args: map[string]any{}}

		// undecodable arguments stay with the call so the loop can answer it
		// with invalid_input instead of dropping the whole response
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			var args map[string]any
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				req.Args = nil
				req.RawArgs = rawArgs
				req.ArgsError = err.Error()
			} else if args != nil {
				req.Args = args
			}
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
