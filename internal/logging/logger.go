// Package logging configures structured logging with log/slog.
//
// Loggers obtained through FromContext carry the chi request ID and the
// authenticated actor, so every entry emitted while handling a request can be
// correlated and attributed.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/adboard/marketplace/internal/core"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns a logger enriched with request context.
//
// When the context carries a chi RequestID the returned logger includes
// request_id in all entries; when it carries an authenticated actor the
// logger includes actor as well.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if actor := core.ActorFromContext(ctx); actor != "" {
		logger = logger.With("actor", actor)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
// Useful for operation-scoped loggers that carry consistent context through
// a multi-step process, such as a batch commit:
//
//	log := logging.WithFields(ctx, "batch_id", batchID, "entity_type", et.Key)
//	log.Info("commit started")
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
