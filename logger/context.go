package logger

import (
	"context"
	"strconv"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields.
// Values stored under these keys are added to every record logged with the context.
const (
	// ContextKeySessionID identifies the live session handle.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyGeneration is the lifecycle generation that owns the session.
	ContextKeyGeneration contextKey = "generation"

	// ContextKeyGameMode identifies the game mode being played.
	ContextKeyGameMode contextKey = "game_mode"

	// ContextKeyComponent identifies the subsystem (capture, playback, live, ...).
	ContextKeyComponent contextKey = "component"
)

var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyGeneration,
	ContextKeyGameMode,
	ContextKeyComponent,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithGeneration returns a new context with the lifecycle generation set.
func WithGeneration(ctx context.Context, gen uint64) context.Context {
	return context.WithValue(ctx, ContextKeyGeneration, strconv.FormatUint(gen, 10))
}

// WithGameMode returns a new context with the game mode set.
func WithGameMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, ContextKeyGameMode, mode)
}

// WithComponent returns a new context with the component name set.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, ContextKeyComponent, component)
}

// LoggingFields holds all standard logging context fields.
type LoggingFields struct {
	SessionID  string
	Generation string
	GameMode   string
	Component  string
}

// WithLoggingContext sets every non-empty field of fields on ctx.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	if fields.SessionID != "" {
		ctx = WithSessionID(ctx, fields.SessionID)
	}
	if fields.Generation != "" {
		ctx = context.WithValue(ctx, ContextKeyGeneration, fields.Generation)
	}
	if fields.GameMode != "" {
		ctx = WithGameMode(ctx, fields.GameMode)
	}
	if fields.Component != "" {
		ctx = WithComponent(ctx, fields.Component)
	}
	return ctx
}

// ExtractLoggingFields extracts all logging fields from a context.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	var fields LoggingFields
	fields.SessionID, _ = ctx.Value(ContextKeySessionID).(string)
	fields.Generation, _ = ctx.Value(ContextKeyGeneration).(string)
	fields.GameMode, _ = ctx.Value(ContextKeyGameMode).(string)
	fields.Component, _ = ctx.Value(ContextKeyComponent).(string)
	return fields
}
