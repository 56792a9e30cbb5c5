package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs step start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, s *StepInfo, next Handler) error {
		logger.Info("step started",
			slog.String("step", s.Name),
			slog.String("workflow_id", s.WorkflowID),
			slog.String("attempt_id", s.AttemptID.String()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("step failed",
				slog.String("step", s.Name),
				slog.String("workflow_id", s.WorkflowID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("step completed",
				slog.String("step", s.Name),
				slog.String("workflow_id", s.WorkflowID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
