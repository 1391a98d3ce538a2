// Package wait provides cancellable suspension used between automation
// steps.
package wait

import (
	"context"
	"time"
)

// For suspends the caller for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when cancelled and nil otherwise. Non-positive
// durations return immediately.
func For(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
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

// Until polls cond every interval until it reports true, ctx is done, or
// timeout elapses. A timeout yields context.DeadlineExceeded.
func Until(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if err := For(ctx, interval); err != nil {
			return err
		}
	}
}
