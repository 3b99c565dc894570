package eventbus

import (
	"context"
	"time"

	"github.com/musig5344/ocasino/internal/domain"
)

// OnPermanentFailure is invoked once a handler wrapped by WithRetry has
// exhausted every attempt. Callers use this to persist the event to a
// dead-letter store and raise an operational alert (spec §4.6.4).
type OnPermanentFailure func(ctx context.Context, event domain.OutboxDraft, err error)

// WithRetry wraps a handler with bounded exponential backoff, grounded on
// the spec's AML failure-isolation requirement: a transient failure (store
// outage, bug) is retried a bounded number of times before the event is
// handed to onPermanentFailure. The wallet write that produced the event is
// never affected by a subscriber's retries or eventual failure.
func WithRetry(h Handler, maxAttempts int, baseDelay time.Duration, onPermanentFailure OnPermanentFailure) Handler {
	return func(ctx context.Context, event domain.OutboxDraft) error {
		var lastErr error
		delay := baseDelay
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			lastErr = h(ctx, event)
			if lastErr == nil {
				return nil
			}
			if attempt == maxAttempts {
				break
			}
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
			delay *= 2
		}
		if onPermanentFailure != nil {
			onPermanentFailure(ctx, event, lastErr)
		}
		return lastErr
	}
}
