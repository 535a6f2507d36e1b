package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tanpawarit/aws-assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/aws-assistant/agent/audit"
	"github.com/tanpawarit/aws-assistant/agent/awsclient"
	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
	"github.com/tanpawarit/aws-assistant/agent/conversation"
	"github.com/tanpawarit/aws-assistant/agent/llm"
	"github.com/tanpawarit/aws-assistant/agent/prompt"
	"github.com/tanpawarit/aws-assistant/agent/tool"
	chatmodelx "github.com/tanpawarit/aws-assistant/pkg/chatmodel"
)

var ErrAuditDisabled = errors.New("audit log is not configured")

const defaultRecentLimit = 20

type Config struct {
	SessionID string `envconfig:"SESSION_ID" split_words:"true"`
	MaxCycles int    `envconfig:"MAX_CYCLES" split_words:"true" default:"10"`
	MaxTurns  int    `envconfig:"MAX_TURNS" split_words:"true" default:"50"`
	AuditDSN  string `envconfig:"AUDIT_DSN" split_words:"true"`
}

func (c Config) Validate() error {
	if c.MaxCycles < 0 {
		return fmt.Errorf("%w: max cycles must be >= 1", contractx.ErrValidation)
	}
	if c.MaxTurns < 0 {
		return fmt.Errorf("%w: max turns must be >= 1", contractx.ErrValidation)
	}
	return nil
}

func (c Config) maxTurns() int {
	if c.MaxTurns == 0 {
		return conversation.DefaultMaxTurns
	}
	return c.MaxTurns
}

type recentReader interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]contractx.InvocationRecord, error)
}

// Session owns everything one operator conversation needs. Nothing in it is
// shared with other sessions.
type Session struct {
	toolbox      *Toolbox
	history      *conversation.History
	orchestrator *orchestrator.Orchestrator
	audit        contractx.AuditSink
	modelClient  *openaisdk.Client
	modelName    string
	logger       zerolog.Logger
}

func Open(ctx context.Context, cfg Config, awsCfg awsclient.Config, llmCfg llm.Config, opts ...Option) (*Session, error) {
	o := buildOptions(opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chatModel, modelClient, err := resolveChatModel(ctx, llmCfg, o)
	if err != nil {
		return nil, err
	}

	toolbox, err := newToolbox(ctx, awsCfg, o)
	if err != nil {
		return nil, err
	}

	prompts := prompt.LoadPromptSet()
	interpreter, err := llm.NewInterpreter(chatModel, prompts.System, map[string]any{"region": toolbox.Region()})
	if err != nil {
		return nil, err
	}

	history, err := conversation.New(cfg.maxTurns())
	if err != nil {
		return nil, err
	}

	sink, err := openAudit(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(interpreter, toolbox.Registry(), history,
		orchestrator.Config{SessionID: cfg.SessionID, MaxCycles: cfg.MaxCycles},
		orchestrator.WithAuditSink(sink),
		orchestrator.WithMetrics(o.metrics),
		orchestrator.WithLogger(o.logger),
	)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}

	s := &Session{
		toolbox:      toolbox,
		history:      history,
		orchestrator: orch,
		audit:        sink,
		modelClient:  modelClient,
		modelName:    strings.TrimSpace(llmCfg.Model),
		logger:       o.logger.With().Str("session_id", orch.SessionID()).Logger(),
	}
	s.logger.Info().
		Str("region", toolbox.Region()).
		Int("tools", toolbox.Registry().Len()).
		Int("max_cycles", orch.MaxCycles()).
		Msg("session opened")
	return s, nil
}

func resolveChatModel(ctx context.Context, llmCfg llm.Config, o options) (einomodel.ToolCallingChatModel, *openaisdk.Client, error) {
	if o.chatModel != nil {
		return o.chatModel, o.modelClient, nil
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, nil, err
	}
	conf := llmCfg.ChatModel()
	m, err := conf.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", contractx.ErrModelUnavailable, err)
	}
	return m, chatmodelx.NewClient(conf), nil
}

func openAudit(ctx context.Context, cfg Config, o options) (contractx.AuditSink, error) {
	if o.audit != nil {
		return o.audit, nil
	}
	dsn := strings.TrimSpace(cfg.AuditDSN)
	if dsn == "" {
		return audit.Noop{}, nil
	}
	sink, err := audit.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *Session) ID() string {
	return s.orchestrator.SessionID()
}

func (s *Session) Region() string {
	return s.toolbox.Region()
}

func (s *Session) Toolbox() *Toolbox {
	return s.toolbox
}

// Ask runs one query through the agent loop.
func (s *Session) Ask(ctx context.Context, query string) (string, error) {
	return s.orchestrator.HandleQuery(ctx, query)
}

func (s *Session) Commands() []tool.Category {
	return s.toolbox.Commands()
}

func (s *Session) Clear() {
	s.history.Clear()
	s.logger.Info().Msg("conversation cleared")
}

func (s *Session) Context() conversation.Summary {
	return s.history.Summarize()
}

// Recent returns this session's latest audited invocations, newest first.
func (s *Session) Recent(ctx context.Context, limit int) ([]contractx.InvocationRecord, error) {
	reader, ok := s.audit.(recentReader)
	if !ok {
		return nil, ErrAuditDisabled
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return reader.Recent(ctx, s.ID(), limit)
}

type ModelStatus struct {
	Model     string
	Reachable bool
	Message   string
	Latency   time.Duration
}

type Status struct {
	SessionID string
	Region    string
	Services  []awsclient.ProbeResult
	Model     ModelStatus
}

// Status probes every enabled service and the language model concurrently.
// Probes bypass retries and metrics.
func (s *Session) Status(ctx context.Context) Status {
	st := Status{SessionID: s.ID(), Region: s.Region()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st.Services = s.toolbox.Probe(gctx)
		return nil
	})
	g.Go(func() error {
		st.Model = s.probeModel(gctx)
		return nil
	})
	_ = g.Wait()
	return st
}

func (s *Session) probeModel(ctx context.Context) ModelStatus {
	start := time.Now()
	err := chatmodelx.Probe(ctx, s.modelClient, s.modelName)
	ms := ModelStatus{Model: s.modelName, Reachable: err == nil, Latency: time.Since(start)}
	if err != nil {
		ms.Message = err.Error()
	}
	return ms
}

func (s *Session) Close() error {
	return s.audit.Close()
}
