package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"groupdesk/internal/config"
	"groupdesk/internal/telemetry"

	"github.com/lmittmann/tint"
)

// New builds the process logger and installs it as the slog default.
// Production logs are JSON on stdout; development logs are coloured via tint.
// Records are also sent to OpenTelemetry when telemetry is enabled.
func New(cfg config.Config) *slog.Logger {
	level := ParseLevel(cfg.Server.LogLevel)

	var console slog.Handler
	if cfg.IsProduction() {
		console = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		})
	} else {
		console = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		})
	}

	handler := console
	if cfg.Telemetry.Enabled {
		handler = NewMultiHandler(
			telemetry.NewOTelHandler(&slog.HandlerOptions{Level: level, AddSource: true}),
			console,
		)
	}

	logger := slog.New(handler).With(
		"service", cfg.Telemetry.ServiceName,
		"version", cfg.Telemetry.ServiceVersion,
		"environment", string(cfg.Server.Environment),
	)
	slog.SetDefault(logger)

	return logger
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MultiHandler sends records to multiple handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			// A failing sink must not drop the record for the others.
			_ = handler.Handle(ctx, record.Clone())
		}
	}
	return nil
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		newHandlers = append(newHandlers, handler.WithAttrs(attrs))
	}
	return &MultiHandler{handlers: newHandlers}
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		newHandlers = append(newHandlers, handler.WithGroup(name))
	}
	return &MultiHandler{handlers: newHandlers}
}

// Discard returns a logger that drops everything below error, for tests.
func Discard(w io.Writer) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelError}))
}
