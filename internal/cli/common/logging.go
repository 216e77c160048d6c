package common

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/cuihairu/gamelib/internal/config"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogger installs the process slog default and bridges the std log
// package to the same writer. format: console|text|json; level:
// debug|info|warn|error. A non-empty file switches output to a rotating file.
func SetupLogger(cfg config.Log) *slog.Logger {
	var w io.Writer = os.Stderr
	if strings.TrimSpace(cfg.File) != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	}
	return setup(w, cfg.Level, cfg.Format)
}

func setup(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
		log.SetFlags(0)
	} else {
		h = slog.NewTextHandler(w, opts)
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}
	logger := slog.New(&countHandler{next: h})
	slog.SetDefault(logger)
	log.SetOutput(w)
	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ---- counters for log levels ----

var cntDebug, cntInfo, cntWarn, cntError atomic.Int64

type countHandler struct{ next slog.Handler }

func (c *countHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return c.next.Enabled(ctx, lvl)
}

func (c *countHandler) Handle(ctx context.Context, rec slog.Record) error {
	switch {
	case rec.Level >= slog.LevelError:
		cntError.Add(1)
	case rec.Level >= slog.LevelWarn:
		cntWarn.Add(1)
	case rec.Level >= slog.LevelInfo:
		cntInfo.Add(1)
	default:
		cntDebug.Add(1)
	}
	return c.next.Handle(ctx, rec)
}

func (c *countHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &countHandler{next: c.next.WithAttrs(attrs)}
}

func (c *countHandler) WithGroup(name string) slog.Handler {
	return &countHandler{next: c.next.WithGroup(name)}
}

// LogCounters returns the number of records logged per level since start.
func LogCounters() map[string]int64 {
	d, i, w, e := cntDebug.Load(), cntInfo.Load(), cntWarn.Load(), cntError.Load()
	return map[string]int64{"debug": d, "info": i, "warn": w, "error": e, "total": d + i + w + e}
}
