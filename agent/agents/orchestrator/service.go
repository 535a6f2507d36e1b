package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
	"github.com/tanpawarit/aws-assistant/agent/conversation"
	metricsx "github.com/tanpawarit/aws-assistant/pkg/metrics"
)

const (
	DefaultMaxCycles = 10

	// maxToolContent bounds the serialized result fed back to the model.
	maxToolContent = 16 << 10
)

const (
	outcomeAnswered      = "answered"
	outcomeMaxIterations = "max_iterations"
	outcomeToolNotFound  = "tool_not_found"
	outcomeModelError    = "model_error"
	outcomeCancelled     = "cancelled"
)

// A sentence end glued to the next sentence, e.g. "buckets.You".
var gluedSentence = regexp.MustCompile(`([a-z]{2})\.([A-Z][a-z])`)

type Config struct {
	SessionID string
	MaxCycles int
}

type Orchestrator struct {
	interpreter contractx.Interpreter
	tools       contractx.ToolInvoker
	history     *conversation.History
	audit       contractx.AuditSink
	metrics     *metricsx.Metrics
	logger      zerolog.Logger

	sessionID string
	maxCycles int

	running sync.Mutex
	now     func() time.Time
}

type Option func(*Orchestrator)

func WithAuditSink(sink contractx.AuditSink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.audit = sink
		}
	}
}

func WithMetrics(m *metricsx.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func New(
	interpreter contractx.Interpreter,
	tools contractx.ToolInvoker,
	history *conversation.History,
	cfg Config,
	opts ...Option,
) (*Orchestrator, error) {
	if interpreter == nil {
		return nil, errors.New("interpreter is required")
	}
	if tools == nil {
		return nil, errors.New("tool invoker is required")
	}
	if history == nil {
		return nil, errors.New("conversation history is required")
	}
	if cfg.MaxCycles < 0 {
		return nil, fmt.Errorf("%w: max cycles must be >= 1", contractx.ErrValidation)
	}

	maxCycles := cfg.MaxCycles
	if maxCycles == 0 {
		maxCycles = DefaultMaxCycles
	}
	sessionID := strings.TrimSpace(cfg.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	o := &Orchestrator{
		interpreter: interpreter,
		tools:       tools,
		history:     history,
		audit:       noopAuditSink{},
		logger:      log.Logger,
		sessionID:   sessionID,
		maxCycles:   maxCycles,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	o.logger = o.logger.With().Str("session_id", sessionID).Logger()
	return o, nil
}

func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

func (o *Orchestrator) MaxCycles() int {
	return o.maxCycles
}

// HandleQuery runs one query to an answer or a terminal failure. Tool failures
// are handed back to the model; only exceeding the cycle bound, a second
// request for an unknown tool, model failures and cancellation end the query
// early. Queries on one orchestrator never overlap.
func (o *Orchestrator) HandleQuery(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query is empty", contractx.ErrInvalidInput)
	}
	if !o.running.TryLock() {
		return "", contractx.ErrCycleInProgress
	}
	defer o.running.Unlock()

	q := &queryRun{
		o:       o,
		cycleID: uuid.NewString(),
	}
	q.logger = o.logger.With().Str("cycle_id", q.cycleID).Logger()

	answer, outcome, err := q.run(ctx, query)
	o.metrics.ObserveCycle(outcome, q.executed)
	if err != nil {
		q.logger.Warn().Err(err).Str("outcome", outcome).Int("tool_calls", q.executed).Msg("query ended without answer")
		return "", err
	}
	q.logger.Info().Str("outcome", outcome).Int("tool_calls", q.executed).Msg("query answered")
	return answer, nil
}

// queryRun is the state of one HandleQuery call.
type queryRun struct {
	o        *Orchestrator
	cycleID  string
	logger   zerolog.Logger
	executed int
	unknown  int
}

func (q *queryRun) run(ctx context.Context, query string) (string, string, error) {
	o := q.o
	o.history.Append(contractx.Turn{Role: contractx.RoleUser, Content: query})
	tools := o.tools.ListAll()

	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return "", outcomeCancelled, err
		}

		decision, err := o.interpreter.Complete(ctx, o.history.Snapshot(), tools)
		if err != nil {
			if ctx.Err() != nil {
				return "", outcomeCancelled, ctx.Err()
			}
			return "", outcomeModelError, err
		}

		if !decision.WantsTools() {
			answer := FixSpacing(decision.Answer)
			o.history.Append(contractx.Turn{Role: contractx.RoleAssistant, Content: answer})
			return answer, outcomeAnswered, nil
		}

		if cycle > o.maxCycles {
			return "", outcomeMaxIterations, fmt.Errorf("%w: %d cycles", contractx.ErrMaxIterationsExceeded, o.maxCycles)
		}

		for i := range decision.ToolCalls {
			if decision.ToolCalls[i].CallID == "" {
				decision.ToolCalls[i].CallID = "call_" + uuid.NewString()
			}
		}
		o.history.Append(contractx.Turn{
			Role:      contractx.RoleAssistant,
			Content:   decision.Answer,
			ToolCalls: decision.ToolCalls,
		})
		if err := q.execute(ctx, cycle, decision.ToolCalls); err != nil {
			return "", outcomeToolNotFound, err
		}
	}
}

// execute runs the cycle's tool calls in order and records their results.
func (q *queryRun) execute(ctx context.Context, cycle int, calls []contractx.ToolRequest) error {
	o := q.o
	var unknownTool string
	for _, call := range calls {
		start := o.now()
		var result contractx.ToolResult
		if call.Malformed() {
			result = contractx.Failure(call.Tool, contractx.KindInvalidInput, "arguments are not valid JSON: "+call.ArgsError)
		} else {
			result = o.tools.Invoke(ctx, call)
		}
		elapsed := o.now().Sub(start)
		q.executed++

		o.history.Append(contractx.Turn{
			Role:    contractx.RoleTool,
			Content: toolContent(result),
			Call:    &call,
			Result:  &result,
		})
		q.recordInvocation(ctx, cycle, call, result, elapsed)

		if result.ErrorKind == contractx.KindToolNotFound {
			unknownTool = call.Tool
		}
	}

	if unknownTool == "" {
		return nil
	}
	// the first unknown tool goes back to the model; a repeat ends the query
	q.unknown++
	if q.unknown > 1 {
		return fmt.Errorf("%w: %s", contractx.ErrToolNotFound, unknownTool)
	}
	return nil
}

func (q *queryRun) recordInvocation(ctx context.Context, cycle int, call contractx.ToolRequest, result contractx.ToolResult, elapsed time.Duration) {
	o := q.o
	evt := q.logger.Info()
	if !result.OK {
		evt = q.logger.Warn().Str("error_kind", string(result.ErrorKind))
	}
	evt.Int("cycle", cycle).
		Str("tool", call.Tool).
		Bool("ok", result.OK).
		Dur("duration", elapsed).
		Msg("tool executed")

	rec := contractx.InvocationRecord{
		SessionID: o.sessionID,
		CycleID:   q.cycleID,
		Cycle:     cycle,
		Tool:      call.Tool,
		Args:      call.Args,
		OK:        result.OK,
		ErrorKind: result.ErrorKind,
		Message:   result.Message,
		Duration:  elapsed,
		At:        startedAt(o.now(), elapsed),
	}
	if err := o.audit.RecordInvocation(ctx, rec); err != nil {
		q.logger.Warn().Err(err).Str("tool", call.Tool).Msg("audit record failed")
	}
}

func startedAt(end time.Time, elapsed time.Duration) time.Time {
	return end.Add(-elapsed).UTC()
}

func toolContent(result contractx.ToolResult) string {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"tool":%q,"ok":false,"error_kind":"unknown","message":"result could not be encoded"}`, result.Tool)
	}
	if len(raw) > maxToolContent {
		return string(raw[:maxToolContent]) + "... [truncated]"
	}
	return string(raw)
}

// FixSpacing inserts the missing space in "sentence.Next" joins that some
// models produce.
func FixSpacing(answer string) string {
	return strings.TrimSpace(gluedSentence.ReplaceAllString(answer, "$1. $2"))
}

type noopAuditSink struct{}

func (noopAuditSink) RecordInvocation(context.Context, contractx.InvocationRecord) error {
	return nil
}

func (noopAuditSink) Close() error {
	return nil
}
