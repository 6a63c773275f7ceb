package rollout

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy bounds retries of transport-level failures. Application
// rejections are never retried.
type RetryPolicy struct {
	// Attempts counts the first try. Values below 1 are treated as 1.
	Attempts   uint
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// DefaultRetryPolicy is three attempts with 2s..10s exponential backoff.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, MinBackoff: 2 * time.Second, MaxBackoff: 10 * time.Second}

func (p RetryPolicy) normalized() RetryPolicy {
	// retry-go treats zero attempts as unlimited.
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.MinBackoff <= 0 {
		p.MinBackoff = 100 * time.Millisecond
	}
	if p.MaxBackoff < p.MinBackoff {
		p.MaxBackoff = p.MinBackoff
	}
	return p
}

// Do runs fn, retrying transport failures with exponential backoff until the
// attempts are spent or ctx is done. onRetry may be nil.
func (p RetryPolicy) Do(ctx context.Context, fn func() error, onRetry func(attempt uint, err error)) error {
	p = p.normalized()
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(p.Attempts),
		retry.Delay(p.MinBackoff),
		retry.MaxDelay(p.MaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsTransport),
	}
	if onRetry != nil {
		opts = append(opts, retry.OnRetry(onRetry))
	}
	return retry.Do(func() error {
		err := fn()
		if err != nil && !IsTransport(err) {
			return retry.Unrecoverable(err)
		}
		return err
	}, opts...)
}
