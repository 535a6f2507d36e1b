package awsclient

import (
	"errors"
	"fmt"
	"slices"
	"time"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

// unknownRetryLimit caps retries for failures nobody could classify.
const unknownRetryLimit = 1

// RetryPolicy drives Do. MaxRetries counts retries after the first attempt, so a
// call makes at most MaxRetries+1 attempts.
type RetryPolicy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Jitter         bool
	RetryableKinds []contractx.ErrorKind
}

func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   20 * time.Second,
		RetryableKinds: []contractx.ErrorKind{
			contractx.KindThrottled,
			contractx.KindTransient,
			contractx.KindUnknown,
		},
	}
}

// NoRetryPolicy makes exactly one attempt.
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{}
}

func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0", contractx.ErrValidation)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("%w: retry delays must be >= 0", contractx.ErrValidation)
	}
	if p.BaseDelay > p.MaxDelay {
		return fmt.Errorf("%w: base delay %s exceeds max delay %s", contractx.ErrValidation, p.BaseDelay, p.MaxDelay)
	}
	for _, kind := range p.RetryableKinds {
		if neverRetried(kind) {
			return fmt.Errorf("%w: %s failures cannot be retried", contractx.ErrValidation, kind)
		}
	}
	return nil
}

// Delay is the wait before the given retry (1-based), without jitter:
// min(BaseDelay * 2^(retry-1), MaxDelay).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < retry; i++ {
		if d >= p.MaxDelay/2 {
			return p.MaxDelay
		}
		d *= 2
	}
	return min(d, p.MaxDelay)
}

// retriesFor is how many retries a failure of the given kind may get.
func (p RetryPolicy) retriesFor(kind contractx.ErrorKind) int {
	if neverRetried(kind) || !slices.Contains(p.RetryableKinds, kind) {
		return 0
	}
	if kind == contractx.KindUnknown {
		return min(p.MaxRetries, unknownRetryLimit)
	}
	return p.MaxRetries
}

func neverRetried(kind contractx.ErrorKind) bool {
	switch kind {
	case contractx.KindUnauthorized, contractx.KindNotFound, contractx.KindInvalidInput:
		return true
	default:
		return false
	}
}

var errNilCall = errors.New("nil operation")
