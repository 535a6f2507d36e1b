package assistant

import (
	"context"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/aws-assistant/agent/awsclient"
	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
	metricsx "github.com/tanpawarit/aws-assistant/pkg/metrics"
)

type options struct {
	logger      zerolog.Logger
	metrics     *metricsx.Metrics
	sleep       func(ctx context.Context, d time.Duration) error
	services    *awsclient.Services
	chatModel   einomodel.ToolCallingChatModel
	modelClient *openaisdk.Client
	audit       contractx.AuditSink
}

type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *metricsx.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSleep replaces the backoff sleep of every service client.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

// WithServices supplies the SDK clients instead of loading them from the
// default credential chain.
func WithServices(svcs awsclient.Services) Option {
	return func(o *options) {
		o.services = &svcs
	}
}

// WithChatModel supplies the tool-calling model instead of building one from
// llm.Config. client may be nil, in which case status reports the model as
// not probed.
func WithChatModel(m einomodel.ToolCallingChatModel, client *openaisdk.Client) Option {
	return func(o *options) {
		o.chatModel = m
		o.modelClient = client
	}
}

func WithAuditSink(sink contractx.AuditSink) Option {
	return func(o *options) {
		o.audit = sink
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: log.Logger}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
