package run

import (
	"context"
	"errors"
	"time"

	"conclave/internal/invoke"
)

// ErrAttemptTimeout marks an attempt that exceeded its deadline or was
// abandoned because the whole run got cancelled.
var ErrAttemptTimeout = errors.New("agent attempt timed out")

// runWithTimeout races one invocation against its deadline. On expiry the
// attempt's context is cancelled and the wait ends immediately; the
// invocation goroutine finishes on its own and its result is discarded.
// Cancellation is cooperative: the remote call may keep consuming provider
// resources after we stop waiting.
func runWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) (invoke.Result, error)) (invoke.Result, error) {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type attemptResult struct {
		res invoke.Result
		err error
	}
	done := make(chan attemptResult, 1)
	go func() {
		res, err := fn(attemptCtx)
		done <- attemptResult{res, err}
	}()

	select {
	case r := <-done:
		// The invoker may surface its context's cancellation as its own
		// error; normalize that to a timeout.
		if r.err != nil && attemptCtx.Err() != nil {
			return invoke.Result{}, ErrAttemptTimeout
		}
		return r.res, r.err
	case <-attemptCtx.Done():
		return invoke.Result{}, ErrAttemptTimeout
	}
}
