package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const (
	loggerKey contextKey = iota
	requestIDKey
)

// WithLogger stores logger in ctx. A nil logger stores the default one.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// Ctx returns the logger carried by ctx, or the default logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return Default()
}

// WithRequestID stores the request id in ctx and adds it to the context logger.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return withStr(ctx, "request_id", requestID)
}

// RequestID returns the request id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithFields adds structured fields to the context logger.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	logger := Ctx(ctx).With().Fields(fields).Logger()
	return WithLogger(ctx, &logger)
}

// WithKnowledgeBase scopes the context logger to a knowledge base.
func WithKnowledgeBase(ctx context.Context, kbID string) context.Context {
	return withStr(ctx, "kb_id", kbID)
}

// WithDocument scopes the context logger to a single document.
func WithDocument(ctx context.Context, docID string) context.Context {
	return withStr(ctx, "doc_id", docID)
}

// WithOperation names the library operation in every log line.
func WithOperation(ctx context.Context, operation string) context.Context {
	return withStr(ctx, "operation", operation)
}

func withStr(ctx context.Context, key, value string) context.Context {
	logger := Ctx(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, &logger)
}
