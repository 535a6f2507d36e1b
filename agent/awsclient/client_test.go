package awsclient

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestClient(t *testing.T, policy RetryPolicy, opts ...Option) (*Client, *sleepRecorder) {
	t.Helper()

	rec := &sleepRecorder{}
	opts = append([]Option{WithSleep(rec.sleep), WithLogger(zerolog.Nop())}, opts...)
	c, err := New(ServiceS3, policy, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, rec
}

// failing returns a call that fails with errs in order, then succeeds.
func failing(calls *int, errs ...error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		if *calls <= len(errs) {
			return "", errs[*calls-1]
		}
		return "done", nil
	}
}

func TestDoSuccessFirstAttempt(t *testing.T) {
	t.Parallel()

	c, rec := newTestClient(t, DefaultPolicy())
	calls := 0
	out, err := Do(context.Background(), c, "ListBuckets", failing(&calls))
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if out != "done" || calls != 1 {
		t.Fatalf("Do() = %q after %d calls, want done after 1", out, calls)
	}
	if len(rec.delays) != 0 {
		t.Fatalf("unexpected sleeps: %v", rec.delays)
	}
}

func TestDoThrottledThenSuccessBacksOffExponentially(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	policy.MaxRetries = 3
	policy.BaseDelay = time.Second
	policy.MaxDelay = 20 * time.Second
	c, rec := newTestClient(t, policy)

	calls := 0
	throttled := apiError("ThrottlingException")
	out, err := Do(context.Background(), c, "ListBuckets", failing(&calls, throttled, throttled, throttled))
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if out != "done" {
		t.Fatalf("Do() = %q, want done", out)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", rec.delays, want)
		}
	}
}

func TestDoThrottledExhaustsBudgetAndSurfacesLastError(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	policy.MaxRetries = 4
	policy.BaseDelay = time.Second
	policy.MaxDelay = 5 * time.Second
	c, rec := newTestClient(t, policy)

	calls := 0
	errs := []error{
		apiError("ThrottlingException"),
		apiError("ThrottlingException"),
		apiError("ThrottlingException"),
		apiError("ThrottlingException"),
		apiError("SlowDown"),
	}
	_, err := Do(context.Background(), c, "ListObjectsV2", failing(&calls, errs...))

	var awsErr *Error
	if !errors.As(err, &awsErr) {
		t.Fatalf("Do() error = %v, want *Error", err)
	}
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("Do() error = %v, want ErrThrottled", err)
	}
	if awsErr.Attempts != 5 || calls != 5 {
		t.Fatalf("attempts = %d calls = %d, want 5", awsErr.Attempts, calls)
	}
	if awsErr.Code != "SlowDown" {
		t.Fatalf("Code = %q, want last observed SlowDown", awsErr.Code)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", rec.delays, want)
		}
	}
	for i := 1; i < len(rec.delays); i++ {
		if rec.delays[i] < rec.delays[i-1] {
			t.Fatalf("delays not monotonic: %v", rec.delays)
		}
	}
}

func TestDoNeverRetriesUnauthorizedOrNotFound(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"AccessDenied", "NoSuchBucket", "NoSuchEntity", "ValidationError"} {
		c, rec := newTestClient(t, DefaultPolicy())
		calls := 0
		_, err := Do(context.Background(), c, "GetBucketAcl", failing(&calls, apiError(code), apiError(code)))
		if err == nil {
			t.Fatalf("%s: expected error", code)
		}
		if calls != 1 {
			t.Fatalf("%s: calls = %d, want 1", code, calls)
		}
		if len(rec.delays) != 0 {
			t.Fatalf("%s: unexpected sleeps %v", code, rec.delays)
		}
	}
}

func TestDoUnknownRetriedOnce(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, DefaultPolicy())
	calls := 0
	boom := errors.New("boom")
	_, err := Do(context.Background(), c, "ListUsers", failing(&calls, boom, boom, boom))
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("Do() error = %v, want ErrUnknown", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("Do() error = %v, want wrapped original", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestDoTransientRecovers(t *testing.T) {
	t.Parallel()

	c, rec := newTestClient(t, DefaultPolicy())
	calls := 0
	out, err := Do(context.Background(), c, "DescribeInstances", failing(&calls, apiError("ServiceUnavailable")))
	if err != nil || out != "done" {
		t.Fatalf("Do() = %q, %v", out, err)
	}
	if len(rec.delays) != 1 {
		t.Fatalf("delays = %v, want one", rec.delays)
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, DefaultPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, c, "ListBuckets", func(context.Context) (string, error) {
		calls++
		cancel()
		return "", apiError("ThrottlingException")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoJitterStaysWithinBounds(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	policy.Jitter = true
	policy.BaseDelay = time.Second
	policy.MaxDelay = 10 * time.Second
	c, rec := newTestClient(t, policy)
	c.jitter = func() float64 { return 1 }

	calls := 0
	_, _ = Do(context.Background(), c, "ListBuckets", failing(&calls, apiError("Throttling")))
	if len(rec.delays) != 1 {
		t.Fatalf("delays = %v", rec.delays)
	}
	if got, want := rec.delays[0], 1250*time.Millisecond; got != want {
		t.Fatalf("jittered delay = %s, want %s", got, want)
	}
}

func TestDoLogsEachAttemptWithoutParameters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	c, _ := newTestClient(t, DefaultPolicy(), WithLogger(logger))

	calls := 0
	secret := "AKIAEXAMPLESECRET"
	_, err := Do(context.Background(), c, "GetUser", func(ctx context.Context) (string, error) {
		return failing(&calls, apiError("ThrottlingException"))(ctx)
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %d, want 2: %s", len(lines), buf.String())
	}
	for _, want := range []string{`"service":"s3"`, `"operation":"GetUser"`, `"attempt":1`, `"outcome":"retry"`, `"error_kind":"throttled"`} {
		if !strings.Contains(lines[0], want) {
			t.Fatalf("first record %s missing %s", lines[0], want)
		}
	}
	if !strings.Contains(lines[1], `"outcome":"ok"`) {
		t.Fatalf("second record %s missing ok outcome", lines[1])
	}
	if strings.Contains(buf.String(), secret) {
		t.Fatal("log output leaked credential material")
	}
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	t.Parallel()

	bad := DefaultPolicy()
	bad.BaseDelay = time.Minute
	bad.MaxDelay = time.Second
	if _, err := New(ServiceS3, bad); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("New() error = %v, want ErrValidation", err)
	}

	bad = DefaultPolicy()
	bad.RetryableKinds = append(bad.RetryableKinds, contractx.KindUnauthorized)
	if _, err := New(ServiceS3, bad); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("New() error = %v, want ErrValidation", err)
	}

	if _, err := New("  ", DefaultPolicy()); err == nil {
		t.Fatal("expected error for empty service")
	}
}
