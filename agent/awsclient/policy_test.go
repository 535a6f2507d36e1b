package awsclient

import (
	"testing"
	"time"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

func TestPolicyDelayDoublesAndCaps(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 20 * time.Second}
	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 20 * time.Second, 20 * time.Second,
	}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Fatalf("Delay(%d) = %s, want %s", i+1, got, w)
		}
	}
	if got := p.Delay(0); got != 0 {
		t.Fatalf("Delay(0) = %s, want 0", got)
	}
	if got := p.Delay(200); got != 20*time.Second {
		t.Fatalf("Delay(200) = %s, want cap", got)
	}
}

func TestPolicyRetriesFor(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	p.MaxRetries = 5
	cases := map[contractx.ErrorKind]int{
		contractx.KindThrottled:    5,
		contractx.KindTransient:    5,
		contractx.KindUnknown:      1,
		contractx.KindUnauthorized: 0,
		contractx.KindNotFound:     0,
		contractx.KindInvalidInput: 0,
	}
	for kind, want := range cases {
		if got := p.retriesFor(kind); got != want {
			t.Errorf("retriesFor(%s) = %d, want %d", kind, got, want)
		}
	}

	p.RetryableKinds = []contractx.ErrorKind{contractx.KindThrottled}
	if got := p.retriesFor(contractx.KindTransient); got != 0 {
		t.Fatalf("retriesFor(transient) = %d, want 0 when not retryable", got)
	}
}

func TestConfigPolicy(t *testing.T) {
	t.Parallel()

	cfg := Config{Region: "eu-west-1", MaxRetries: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	p := cfg.Policy()
	if p.MaxRetries != 2 || p.BaseDelay != 500*time.Millisecond || p.MaxDelay != 4*time.Second {
		t.Fatalf("unexpected policy: %+v", p)
	}

	cfg.Region = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty region")
	}
}

func TestConfigEnabledServices(t *testing.T) {
	t.Parallel()

	cfg := Config{S3Enabled: true, EC2Enabled: true}
	got := cfg.EnabledServices()
	if len(got) != 2 || got[0] != ServiceS3 || got[1] != ServiceEC2 {
		t.Fatalf("EnabledServices() = %v", got)
	}
}
