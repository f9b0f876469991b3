package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// FromContext extracts the logger from context
// If no logger is found, returns a disabled logger (no-op)
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// WithComponent creates a child logger with a component field
func WithComponent(ctx context.Context, component string) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Str("component", component).Logger()
	return WithContext(ctx, childLogger)
}

// WithScreenKey creates a child logger with a screen_key field
func WithScreenKey(ctx context.Context, key string) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Str("screen_key", key).Logger()
	return WithContext(ctx, childLogger)
}

// WithEndpoint creates a child logger with an endpoint field
func WithEndpoint(ctx context.Context, endpoint string) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Str("endpoint", endpoint).Logger()
	return WithContext(ctx, childLogger)
}
