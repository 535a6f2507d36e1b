package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
	metricsx "github.com/tanpawarit/aws-assistant/pkg/metrics"
)

// Registry maps tool names to descriptors. It is filled once at startup and
// then only read.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Descriptor
	order   []string
	logger  zerolog.Logger
	metrics *metricsx.Metrics
}

type RegistryOption func(*Registry)

func WithRegistryLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithRegistryMetrics(m *metricsx.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:  make(map[string]Descriptor),
		logger: log.Logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Registry) Register(d Descriptor) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("%w: tool name is required", contractx.ErrValidation)
	}
	if d.Invoke == nil {
		return fmt.Errorf("%w: tool %s has no handler", contractx.ErrValidation, d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("%w: %s", contractx.ErrDuplicateTool, d.Name)
	}
	r.tools[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

func (r *Registry) Resolve(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[strings.TrimSpace(name)]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", contractx.ErrToolNotFound, name)
	}
	return d, nil
}

// ListAll returns summaries in registration order.
func (r *Registry) ListAll() []contractx.ToolSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contractx.ToolSummary, 0, len(r.order))
	for _, name := range r.order {
		d := r.tools[name]
		out = append(out, contractx.ToolSummary{Name: d.Name, Description: d.Description, Info: d.Info()})
	}
	return out
}

// Descriptors returns the registered descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Invoke resolves and runs a tool. It never fails outside the result: an
// unknown name yields a tool_not_found result and a panicking handler an
// unknown one.
func (r *Registry) Invoke(ctx context.Context, req contractx.ToolRequest) (result contractx.ToolResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = contractx.Failure(req.Tool, contractx.KindUnknown, fmt.Sprintf("tool panicked: %v", rec))
		}
		r.metrics.ObserveTool(req.Tool, result.OK)
		evt := r.logger.Debug()
		if !result.OK {
			evt = r.logger.Warn().Str("error_kind", string(result.ErrorKind))
		}
		evt.Str("tool", req.Tool).
			Bool("ok", result.OK).
			Dur("duration", time.Since(start)).
			Msg("tool invoked")
	}()

	d, err := r.Resolve(req.Tool)
	if err != nil {
		return contractx.Failure(req.Tool, contractx.KindToolNotFound, err.Error())
	}
	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	payload, err := d.Invoke(ctx, args)
	return resultFor(d.Name, payload, err)
}

var _ contractx.ToolInvoker = (*Registry)(nil)
