package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	scanerrors "archscan/internal/errors"
)

// call runs fn with fault isolation. Errors without a code become INSPECTOR_FAULT,
// panics become INSPECTOR_PANIC. With a timeout configured, fn runs on its own
// goroutine; when the deadline passes call returns abandoned=true and the goroutine is
// left to finish on a cancelled context.
func (e *Engine) call(ctx context.Context, fn func(context.Context) error) (abandoned bool, err error) {
	timeout := e.cfg.InvocationTimeout
	if timeout <= 0 {
		return false, protect(ctx, fn)
	}

	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- protect(ictx, fn)
	}()

	select {
	case err := <-done:
		return false, err
	case <-ictx.Done():
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		return true, scanerrors.Newf(scanerrors.InvocationTimeout, "invocation exceeded %s", timeout)
	}
}

func protect(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = scanerrors.NewScanError(scanerrors.InspectorPanic, fmt.Sprintf("panic: %v", p), nil, nil).
				WithDetails(map[string]string{"stack": string(debug.Stack())})
		}
	}()

	if err := fn(ctx); err != nil {
		if scanerrors.CodeOf(err) == "" {
			return scanerrors.Wrap(scanerrors.InspectorFault, "inspector failed", err)
		}
		return err
	}
	return nil
}
