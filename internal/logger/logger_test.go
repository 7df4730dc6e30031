package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" INFO ": zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"fatal":  zapcore.FatalLevel,
		"Panic":  zapcore.PanicLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got, s)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextLogger checks that names and fields travel with the context.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(zapcore.DebugLevel, &buf))
	ctx = WithName(ctx, "build-dist")
	ctx = WithKV(ctx, "target", "x86_64-unknown-linux-gnu")

	InfoKV(ctx, "Packaging", "step", "stage")
	Debug(ctx, "details")

	out := buf.String()
	require.Contains(t, out, "build-dist")
	require.Contains(t, out, "Packaging")
	require.Contains(t, out, `"target": "x86_64-unknown-linux-gnu"`)
	require.Contains(t, out, `"step": "stage"`)
	require.Contains(t, out, "details")
}

// TestFromContextFallsBack returns the global logger for bare contexts.
func TestFromContextFallsBack(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}
