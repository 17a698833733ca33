// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandler_Enabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		zerologLevel zerolog.Level
		slogLevel    slog.Level
		want         bool
	}{
		{"debug logger enables debug", zerolog.DebugLevel, slog.LevelDebug, true},
		{"info logger disables debug", zerolog.InfoLevel, slog.LevelDebug, false},
		{"info logger enables warn", zerolog.InfoLevel, slog.LevelWarn, true},
		{"error logger disables warn", zerolog.ErrorLevel, slog.LevelWarn, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := NewSlogHandlerWithLogger(zerolog.New(nil).Level(tt.zerologLevel))
			if got := handler.Enabled(context.Background(), tt.slogLevel); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSlogHandler_Handle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))

	slogger.Warn("service restarted", "service", "http-server", "attempt", 3)

	output := buf.String()
	for _, want := range []string{`"level":"warn"`, `"message":"service restarted"`, `"service":"http-server"`, `"attempt":3`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSlogHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf))).
		With("tree", "root").
		WithGroup("supervisor")

	slogger.Info("event", "name", "badger-gc")

	output := buf.String()
	if !strings.Contains(output, `"supervisor.tree":"root"`) && !strings.Contains(output, `"tree":"root"`) {
		t.Errorf("expected pre-configured attribute, got: %s", output)
	}
	if !strings.Contains(output, `"supervisor.name":"badger-gc"`) {
		t.Errorf("expected grouped key, got: %s", output)
	}
}

func TestSlogHandler_WithGroup_Empty(t *testing.T) {
	t.Parallel()

	handler := NewSlogHandlerWithLogger(zerolog.New(nil))
	if got := handler.WithGroup(""); got != handler {
		t.Error("WithGroup(\"\") should return the same handler")
	}
}

func TestAddAttr_AllTypes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))

	slogger.Info("types",
		slog.String("s", "v"),
		slog.Int64("i", -5),
		slog.Uint64("u", 7),
		slog.Float64("f", 1.5),
		slog.Bool("b", true),
		slog.Duration("d", time.Second),
		slog.Group("g", slog.String("inner", "x")),
	)

	output := buf.String()
	for _, want := range []string{`"s":"v"`, `"i":-5`, `"u":7`, `"f":1.5`, `"b":true`, `"g.inner":"x"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewSlogLogger(t *testing.T) {
	t.Parallel()

	if NewSlogLogger() == nil {
		t.Fatal("NewSlogLogger() = nil")
	}
}
