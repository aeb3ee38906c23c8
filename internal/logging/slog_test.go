package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerRespectsLevelFilter(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.UseColor = false
	opts.SlogOpts.Level = slog.LevelWarn
	log := slog.New(NewPrettyHandler(&buf, &opts))

	log.Info("should not appear")
	require.Empty(buf.String())

	log.Warn("should appear")
	require.Contains(buf.String(), "should appear")
	require.Contains(buf.String(), "WARN")
}

func TestHandlerWritesMessageAndAttrs(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.UseColor = false
	opts.ShowSource = false
	log := slog.New(NewPrettyHandler(&buf, &opts))

	log.With("component", "test").Info("hello", "n", 42)

	out := buf.String()
	require.Contains(out, "hello")
	require.Contains(out, `"component": "test"`)
	require.Contains(out, `"n": 42`)
}

func TestWithGroupNestsAttributes(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.UseColor = false
	opts.ShowSource = false
	base := NewPrettyHandler(&buf, &opts)

	grouped := base.WithGroup("peer").WithAttrs([]slog.Attr{slog.Int("id", 7)})
	require.NoError(grouped.Handle(context.Background(), slog.Record{Message: "connected"}))

	require.Contains(buf.String(), "connected")
	require.Contains(buf.String(), `"peer"`)
	require.Contains(buf.String(), `"id": 7`)
}

func TestNewReturnsStderrBackedLogger(t *testing.T) {
	require := require.New(t)

	log := New()
	require.NotNil(log)
}
