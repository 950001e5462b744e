package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var infoBuf, errorBuf bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(h).With("service", "groupdesk")

	log.Info("user upserted", "address", "0xabc")
	log.Error("upsert failed")

	assert.Contains(t, infoBuf.String(), "user upserted")
	assert.Contains(t, infoBuf.String(), "service=groupdesk")
	assert.Contains(t, infoBuf.String(), "upsert failed")
	assert.NotContains(t, errorBuf.String(), "user upserted")
	assert.Contains(t, errorBuf.String(), "upsert failed")

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestDiscard(t *testing.T) {
	var buf bytes.Buffer
	log := Discard(&buf)
	log.Info("hidden")
	log.Error("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
