package assistant

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tanpawarit/aws-assistant/agent/awsclient"
	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
	"github.com/tanpawarit/aws-assistant/agent/tool"
)

// Toolbox is the AWS-facing half of a session: one resilient client per
// enabled service and the tool registry built on top of them. serve-mcp uses
// it on its own, without a language model.
type Toolbox struct {
	region   string
	registry *tool.Registry
	probes   []func(ctx context.Context) awsclient.ProbeResult
}

func NewToolbox(ctx context.Context, awsCfg awsclient.Config, opts ...Option) (*Toolbox, error) {
	return newToolbox(ctx, awsCfg, buildOptions(opts))
}

func newToolbox(ctx context.Context, awsCfg awsclient.Config, o options) (*Toolbox, error) {
	if err := awsCfg.Validate(); err != nil {
		return nil, err
	}
	if len(awsCfg.EnabledServices()) == 0 {
		return nil, fmt.Errorf("%w: at least one aws service must be enabled", contractx.ErrValidation)
	}

	var svcs awsclient.Services
	if o.services != nil {
		svcs = *o.services
	} else {
		loaded, err := awsclient.NewServices(ctx, awsCfg)
		if err != nil {
			return nil, err
		}
		svcs = loaded
	}

	clientOpts := []awsclient.Option{
		awsclient.WithLogger(o.logger),
		awsclient.WithMetrics(o.metrics),
	}
	if o.sleep != nil {
		clientOpts = append(clientOpts, awsclient.WithSleep(o.sleep))
	}
	policy := awsCfg.Policy()

	tb := &Toolbox{region: strings.TrimSpace(awsCfg.Region)}
	var sets []tool.Set

	if awsCfg.S3Enabled && svcs.S3 != nil {
		c, err := awsclient.New(awsclient.ServiceS3, policy, clientOpts...)
		if err != nil {
			return nil, err
		}
		api := svcs.S3
		sets = append(sets, tool.NewS3Set(c, api))
		tb.probes = append(tb.probes, func(ctx context.Context) awsclient.ProbeResult {
			return awsclient.ProbeS3(ctx, c, api)
		})
	}
	if awsCfg.IAMEnabled && svcs.IAM != nil {
		c, err := awsclient.New(awsclient.ServiceIAM, policy, clientOpts...)
		if err != nil {
			return nil, err
		}
		api := svcs.IAM
		sets = append(sets, tool.NewIAMSet(c, api))
		tb.probes = append(tb.probes, func(ctx context.Context) awsclient.ProbeResult {
			return awsclient.ProbeIAM(ctx, c, api)
		})
	}
	if awsCfg.EC2Enabled && svcs.EC2 != nil {
		c, err := awsclient.New(awsclient.ServiceEC2, policy, clientOpts...)
		if err != nil {
			return nil, err
		}
		api := svcs.EC2
		sets = append(sets, tool.NewEC2Set(c, api))
		tb.probes = append(tb.probes, func(ctx context.Context) awsclient.ProbeResult {
			return awsclient.ProbeEC2(ctx, c, api)
		})
	}

	registry, err := tool.BuildRegistry(sets,
		tool.WithRegistryLogger(o.logger),
		tool.WithRegistryMetrics(o.metrics),
	)
	if err != nil {
		return nil, err
	}
	tb.registry = registry
	return tb, nil
}

func (t *Toolbox) Region() string {
	return t.region
}

func (t *Toolbox) Registry() *tool.Registry {
	return t.registry
}

// Commands lists the registered tools grouped for display.
func (t *Toolbox) Commands() []tool.Category {
	return tool.Categorize(t.registry.ListAll())
}

// Probe checks every enabled service concurrently. Results keep registration
// order.
func (t *Toolbox) Probe(ctx context.Context) []awsclient.ProbeResult {
	results := make([]awsclient.ProbeResult, len(t.probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range t.probes {
		g.Go(func() error {
			results[i] = p(gctx)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
