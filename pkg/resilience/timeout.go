package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/errors"
)

// WithTimeout runs fn under a context bounded by timeout. When the deadline
// passes first, the returned error wraps ErrTimeout; fn is expected to notice
// the cancelled context and return soon after.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(tctx) }()

	select {
	case err := <-done:
		return err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w after %v", name, apperrors.ErrTimeout, timeout)
	}
}
