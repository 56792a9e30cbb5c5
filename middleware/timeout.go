package middleware

import (
	"context"
	"log/slog"
)

// Timeout returns middleware that enforces a per-step execution deadline.
// If the step has a non-zero Timeout, a context.WithTimeout wraps the handler
// call. When the deadline is exceeded the context is cancelled and the
// handler should return context.DeadlineExceeded.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, s *StepInfo, next Handler) error {
		if s.Timeout > 0 {
			logger.Debug("step timeout set",
				slog.String("step", s.Name),
				slog.Duration("timeout", s.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
