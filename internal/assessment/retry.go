package assessment

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/noah-isme/kompas-go-api/pkg/ai"
)

// askWithRetry issues one reasoning request with a bounded retry budget.
// attempts is the total number of calls allowed. Only transient failures are
// retried; malformed replies fail immediately because resending the same
// prompt cannot fix them. Each attempt gets its own callTimeout while the
// parent context governs the whole loop.
func askWithRetry(ctx context.Context, asker ai.Asker, req ai.Request, attempts int, backoff, callTimeout time.Duration) (json.RawMessage, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepJittered(ctx, backoff, attempt); err != nil {
				break
			}
		}

		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, callTimeout)
		}
		raw, err := asker.Ask(callCtx, req)
		cancel()
		if err == nil {
			return raw, nil
		}

		lastErr = err
		if !ai.Retryable(err) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// sleepJittered waits base*2^(attempt-1) plus up to one extra base of random
// jitter, or returns early when the context dies.
func sleepJittered(ctx context.Context, base time.Duration, attempt int) error {
	if base <= 0 {
		return ctx.Err()
	}
	delay := base << (attempt - 1)
	delay += time.Duration(rand.Int63n(int64(base)))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
