package awsclient

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
	metricsx "github.com/tanpawarit/aws-assistant/pkg/metrics"
)

const (
	ServiceS3  = "s3"
	ServiceIAM = "iam"
	ServiceEC2 = "ec2"
)

// jitterFraction bounds the random extra wait added to a backoff delay.
const jitterFraction = 0.25

// Client applies one RetryPolicy to every operation of one AWS service. It keeps
// no per-call state, so a session may share it between tools.
type Client struct {
	service string
	policy  RetryPolicy
	logger  zerolog.Logger
	metrics *metricsx.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func() float64
}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metricsx.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithSleep replaces the backoff wait; tests use it to record delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func New(service string, policy RetryPolicy, opts ...Option) (*Client, error) {
	service = strings.TrimSpace(service)
	if service == "" {
		return nil, errors.New("service name is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		service: service,
		policy:  policy,
		logger:  log.Logger,
		sleep:   sleepContext,
		jitter:  rand.Float64,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = c.logger.With().Str("service", service).Logger()
	return c, nil
}

func (c *Client) Service() string {
	return c.service
}

func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// probeClient is a single-attempt copy that records no metrics.
func (c *Client) probeClient() *Client {
	cp := *c
	cp.policy = NoRetryPolicy()
	cp.metrics = nil
	return &cp
}

// Do runs call under c's retry policy. Successful results are returned as-is.
// Failures are classified; non-retryable kinds and exhausted budgets return an
// *Error carrying the kind and the last provider error.
func Do[T any](ctx context.Context, c *Client, operation string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if call == nil {
		return zero, &Error{Service: c.service, Operation: operation, Kind: contractx.KindUnknown, Err: errNilCall}
	}

	for attempt := 1; ; attempt++ {
		out, err := call(ctx)
		if err == nil {
			c.record(zerolog.DebugLevel, operation, attempt, "ok", "", "", 0)
			return out, nil
		}

		kind := Classify(err)
		code := errorCode(err)
		retry := attempt // the retry this failure would lead to
		if retry > c.policy.retriesFor(kind) || ctx.Err() != nil {
			c.record(zerolog.WarnLevel, operation, attempt, "fail", kind, code, 0)
			return zero, &Error{
				Service:   c.service,
				Operation: operation,
				Kind:      kind,
				Code:      code,
				Attempts:  attempt,
				Err:       err,
			}
		}

		delay := c.backoff(retry)
		c.record(zerolog.InfoLevel, operation, attempt, "retry", kind, code, delay)
		c.metrics.ObserveRetry(c.service, string(kind))
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return zero, &Error{
				Service:   c.service,
				Operation: operation,
				Kind:      kind,
				Code:      code,
				Attempts:  attempt,
				Err:       errors.Join(err, sleepErr),
			}
		}
	}
}

func (c *Client) backoff(retry int) time.Duration {
	d := c.policy.Delay(retry)
	if c.policy.Jitter && d > 0 {
		d += time.Duration(float64(d) * jitterFraction * c.jitter())
		d = min(d, c.policy.MaxDelay)
	}
	return d
}

// record emits one diagnostic record per attempt. Request parameters are never
// logged; they may name users or carry tokens.
func (c *Client) record(
	level zerolog.Level,
	operation string,
	attempt int,
	outcome string,
	kind contractx.ErrorKind,
	code string,
	delay time.Duration,
) {
	c.metrics.ObserveAttempt(c.service, operation, outcome)

	evt := c.logger.WithLevel(level).
		Str("operation", operation).
		Int("attempt", attempt).
		Str("outcome", outcome)
	if kind != "" {
		evt = evt.Str("error_kind", string(kind))
	}
	if code != "" {
		evt = evt.Str("error_code", code)
	}
	if delay > 0 {
		evt = evt.Dur("delay", delay)
	}
	evt.Msg("aws call")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
