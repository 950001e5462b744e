package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OTelHandler is a slog.Handler that emits records through the global
// OpenTelemetry logger provider.
type OTelHandler struct {
	logger log.Logger
	opts   *slog.HandlerOptions
	attrs  []log.KeyValue
	group  string
}

func NewOTelHandler(opts *slog.HandlerOptions) *OTelHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	return &OTelHandler{
		logger: global.GetLoggerProvider().Logger("groupdesk.slog"),
		opts:   opts,
	}
}

func (h *OTelHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.Level != nil {
		return level >= h.opts.Level.Level()
	}
	return level >= slog.LevelInfo
}

func (h *OTelHandler) Handle(ctx context.Context, record slog.Record) error {
	logRecord := log.Record{}
	logRecord.SetTimestamp(record.Time)
	logRecord.SetBody(log.StringValue(record.Message))
	logRecord.SetSeverity(convertSlogLevel(record.Level))
	logRecord.SetSeverityText(record.Level.String())

	if span := oteltrace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		logRecord.AddAttributes(
			log.String("trace_id", spanCtx.TraceID().String()),
			log.String("span_id", spanCtx.SpanID().String()),
		)
	}

	if h.opts.AddSource && record.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{record.PC})
		f, _ := fs.Next()
		if f.File != "" {
			logRecord.AddAttributes(
				log.String("code.filepath", f.File),
				log.String("code.function", f.Function),
				log.Int("code.lineno", f.Line),
			)
		}
	}

	logRecord.AddAttributes(h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		logRecord.AddAttributes(h.convertSlogAttr(attr))
		return true
	})

	h.logger.Emit(ctx, logRecord)
	return nil
}

func (h *OTelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]log.KeyValue(nil), h.attrs...)
	for _, attr := range attrs {
		next.attrs = append(next.attrs, h.convertSlogAttr(attr))
	}
	return &next
}

func (h *OTelHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		next.group = h.group + "." + name
	} else {
		next.group = name
	}
	return &next
}

func convertSlogLevel(level slog.Level) log.Severity {
	switch {
	case level >= slog.LevelError:
		return log.SeverityError
	case level >= slog.LevelWarn:
		return log.SeverityWarn
	case level >= slog.LevelInfo:
		return log.SeverityInfo
	default:
		return log.SeverityDebug
	}
}

func (h *OTelHandler) convertSlogAttr(attr slog.Attr) log.KeyValue {
	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	value := attr.Value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		return log.String(key, value.String())
	case slog.KindInt64:
		return log.Int64(key, value.Int64())
	case slog.KindUint64:
		return log.Int64(key, int64(value.Uint64()))
	case slog.KindFloat64:
		return log.Float64(key, value.Float64())
	case slog.KindBool:
		return log.Bool(key, value.Bool())
	case slog.KindDuration:
		return log.Int64(key, value.Duration().Nanoseconds())
	case slog.KindTime:
		return log.String(key, value.Time().Format(time.RFC3339))
	default:
		return log.String(key, value.String())
	}
}
