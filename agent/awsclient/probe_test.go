package awsclient

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
	metricsx "github.com/tanpawarit/aws-assistant/pkg/metrics"
)

type probeS3 struct {
	S3API
	err   error
	calls int
}

func (p *probeS3) ListBuckets(ctx context.Context, in *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &s3.ListBucketsOutput{}, nil
}

func TestProbeReachable(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, DefaultPolicy())
	api := &probeS3{}
	res := ProbeS3(context.Background(), c, api)
	if !res.Reachable || res.Service != ServiceS3 {
		t.Fatalf("unexpected probe result: %+v", res)
	}
}

func TestProbeMakesSingleAttemptAndRecordsNoMetrics(t *testing.T) {
	t.Parallel()

	m := metricsx.New(prometheus.NewRegistry())
	rec := &sleepRecorder{}
	c, err := New(ServiceS3, DefaultPolicy(), WithSleep(rec.sleep), WithLogger(zerolog.Nop()), WithMetrics(m))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	api := &probeS3{err: apiError("ThrottlingException")}

	res := ProbeS3(context.Background(), c, api)
	if res.Reachable {
		t.Fatal("expected unreachable")
	}
	if res.Kind != contractx.KindThrottled {
		t.Fatalf("Kind = %s, want throttled", res.Kind)
	}
	if api.calls != 1 || len(rec.delays) != 0 {
		t.Fatalf("calls = %d delays = %v, want single attempt", api.calls, rec.delays)
	}
	if c.Policy().MaxRetries != DefaultPolicy().MaxRetries {
		t.Fatal("probe changed the client's policy")
	}
}
