package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/satishbabariya/litesql/internal/core/query/domain"
	"github.com/satishbabariya/litesql/internal/core/result"
	"github.com/satishbabariya/litesql/internal/core/value"
)

// MiddlewareFunc is the middleware function signature.
type MiddlewareFunc func(ctx context.Context, params MiddlewareParams, next MiddlewareNext) MiddlewareResult

// MiddlewareNext is the function to call to continue the middleware chain.
type MiddlewareNext func(ctx context.Context) MiddlewareResult

// MiddlewareParams describes the statement about to run.
type MiddlewareParams struct {
	// SQL is the statement text.
	SQL string

	// Params are the bound parameters in placeholder order.
	Params []value.Value

	// Command is the statement kind.
	Command domain.Command

	// ConnID is the connection the statement runs on.
	ConnID uint64

	// Depth is the transaction depth of the connection when the statement started.
	Depth int

	// StartTime is when the statement started.
	StartTime time.Time
}

// MiddlewareResult contains the outcome of a statement.
type MiddlewareResult struct {
	// Result is the raw engine result.
	Result *result.Result

	// Error is any error that occurred.
	Error error

	// Duration is how long the statement took.
	Duration time.Duration
}

// chain wraps final with middlewares; the first registered runs outermost.
func chain(middlewares []MiddlewareFunc, params MiddlewareParams, final MiddlewareNext) MiddlewareNext {
	next := final
	for i := len(middlewares) - 1; i >= 0; i-- {
		mw := middlewares[i]
		inner := next
		next = func(ctx context.Context) MiddlewareResult {
			return mw(ctx, params, inner)
		}
	}
	return next
}

// LogMiddleware creates a middleware that logs statements.
func LogMiddleware(logger *slog.Logger) MiddlewareFunc {
	return func(ctx context.Context, params MiddlewareParams, next MiddlewareNext) MiddlewareResult {
		res := next(ctx)

		if res.Error != nil {
			logger.Error("statement failed",
				"sql", params.SQL,
				"command", params.Command,
				"conn", params.ConnID,
				"duration", res.Duration,
				"error", res.Error,
			)
		} else {
			logger.Info("statement completed",
				"sql", params.SQL,
				"command", params.Command,
				"conn", params.ConnID,
				"duration", res.Duration,
			)
		}

		return res
	}
}

// TimeoutMiddleware bounds how long a statement may wait before it is issued, including
// busy retries. A statement already running on the engine is not interrupted.
func TimeoutMiddleware(timeout time.Duration) MiddlewareFunc {
	return func(ctx context.Context, params MiddlewareParams, next MiddlewareNext) MiddlewareResult {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return next(ctx)
	}
}
