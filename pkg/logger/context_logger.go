package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	signerKey
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithSigner(ctx context.Context, signer string) context.Context {
	return context.WithValue(ctx, signerKey, signer)
}

func SignerFromContext(ctx context.Context) string {
	s, _ := ctx.Value(signerKey).(string)
	return s
}

// ContextLogger adds request_id, signer and trace_id from the context to
// every line.
type ContextLogger struct {
	logger *zap.Logger
}

func NewContextLogger(logger *zap.Logger) *ContextLogger {
	return &ContextLogger{
		logger: logger,
	}
}

func (cl *ContextLogger) WithContext(ctx context.Context) *zap.Logger {
	fields := make([]zapcore.Field, 0, 3)

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if s := SignerFromContext(ctx); s != "" {
		fields = append(fields, zap.String("signer", s))
	}

	if len(fields) == 0 {
		return cl.logger
	}
	return cl.logger.With(fields...)
}

// Sugar is WithContext for components that log with key/value pairs.
func (cl *ContextLogger) Sugar(ctx context.Context) *zap.SugaredLogger {
	return cl.WithContext(ctx).Sugar()
}

func (cl *ContextLogger) LogRequest(ctx context.Context, method, path string, statusCode int, durationMs int64) {
	cl.WithContext(ctx).Info("http_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMs),
	)
}

func (cl *ContextLogger) LogError(ctx context.Context, err error, message string, fields ...zapcore.Field) {
	cl.WithContext(ctx).With(zap.Error(err)).Error(message, fields...)
}
