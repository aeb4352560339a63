package observability

import (
	"context"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hanko-field/orders/internal/platform/requestctx"
)

// NewLogger builds the JSON logger used by the orders API. Field names follow Cloud Logging's
// structured payload (severity, message, timestamp). ORDERS_LOG_LEVEL wins over LOG_LEVEL.
func NewLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	for _, key := range []string{"ORDERS_LOG_LEVEL", "LOG_LEVEL"} {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			continue
		}
		if err := level.UnmarshalText([]byte(strings.ToLower(raw))); err == nil {
			break
		}
	}

	encoder := zap.NewProductionEncoderConfig()
	encoder.MessageKey = "message"
	encoder.TimeKey = "timestamp"
	encoder.LevelKey = "severity"
	encoder.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encoder.EncodeLevel = zapcore.CapitalLevelEncoder

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.EncoderConfig = encoder
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	return cfg.Build(zap.Fields(zap.String("service", "orders-api")))
}

// WithLogger injects the logger into the provided context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// EventLogger adapts zap to the event-style logging hooks used by services. The request logger on
// ctx wins over fallback so events inherit request and trace fields.
func EventLogger(fallback *zap.Logger) func(context.Context, string, map[string]any) {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = fallback
		}

		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		zapFields := make([]zap.Field, 0, len(fields)+1)
		zapFields = append(zapFields, zap.String("event", event))
		for _, k := range keys {
			zapFields = append(zapFields, zap.Any(k, fields[k]))
		}
		if ce := logger.Check(eventLevel(event, fields), event); ce != nil {
			ce.Write(zapFields...)
		}
	}
}

func eventLevel(event string, fields map[string]any) zapcore.Level {
	if _, ok := fields["error"]; ok {
		return zapcore.WarnLevel
	}
	lowered := strings.ToLower(event)
	if strings.Contains(lowered, "failed") || strings.Contains(lowered, "error") {
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}
