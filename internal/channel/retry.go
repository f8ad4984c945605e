package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/metrics"
)

// retrier runs one delivery with rate limiting and a bounded inner retry
// loop. Only transient transport errors are retried; a limiter rejection is
// not retried here at all, leaving it to the queue's longer-interval retry.
type retrier struct {
	channel   domain.Channel
	attempts  int
	baseDelay time.Duration
	limiter   *DestinationLimiter
}

func newRetrier(channel domain.Channel, attempts int, baseDelay time.Duration, limiter *DestinationLimiter) retrier {
	if attempts < 1 {
		attempts = 1
	}
	return retrier{channel: channel, attempts: attempts, baseDelay: baseDelay, limiter: limiter}
}

// do executes attempt up to the configured ceiling with exponential backoff
// between tries. attempt returns a provider message id on success.
func (r retrier) do(ctx context.Context, destination string, attempt func() (string, error)) *Result {
	if r.limiter != nil && !r.limiter.Allow(destination) {
		metrics.RateLimitedTotal.WithLabelValues(string(r.channel)).Inc()
		return &Result{
			Err: fmt.Errorf("%w: destination %s", domain.ErrRateLimited, destination),
		}
	}

	var lastErr error
	for i := 0; i < r.attempts; i++ {
		if i > 0 {
			backoff := r.baseDelay * time.Duration(1<<(i-1))
			select {
			case <-ctx.Done():
				return &Result{
					Err:      fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err()),
					Attempts: i,
				}
			case <-time.After(backoff):
			}
		}

		messageID, err := attempt()
		if err == nil {
			now := time.Now()
			return &Result{
				Success:     true,
				MessageID:   messageID,
				DeliveredAt: &now,
				Attempts:    i + 1,
			}
		}

		lastErr = err
		if !domain.IsTransient(err) || isPermanent(err) {
			return &Result{Err: err, Attempts: i + 1}
		}
	}

	return &Result{Err: lastErr, Attempts: r.attempts}
}
