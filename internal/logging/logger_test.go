package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "parseLevel(%q)", in)
	}
}

func TestContextWith_Accumulates(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	SetupWriter(&buf, "info", "json")

	ctx := ContextWith(context.Background(), "session_id", "abc")
	ctx = ContextWith(ctx, "row", 4)
	FromContext(ctx).Info("scored")

	out := buf.String()
	assert.Contains(t, out, `"session_id":"abc"`)
	assert.Contains(t, out, `"row":4`)
}
