// Package logging builds the process logger and records run provenance.
package logging

// #region imports
import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// #endregion

// #region levels

// LevelSuperDebug sits below slog.LevelDebug and traces every role call.
const LevelSuperDebug = slog.Level(-8)

// ParseLevel maps a level name onto a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "debug":
		return slog.LevelDebug, nil
	case "superdebug", "trace":
		return LevelSuperDebug, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func levelName(l slog.Level) string {
	if l == LevelSuperDebug {
		return "SUPERDEBUG"
	}
	return l.String()
}

// #endregion

// #region setup

// Config selects level and sinks for Setup.
type Config struct {
	Level   string
	File    string // append-only; empty disables the file sink
	Console io.Writer
}

// Setup returns a text logger writing to the console and, when configured,
// to a log file. The returned closer releases the file.
func Setup(cfg Config) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	closer := func() error { return nil }

	var writers []io.Writer
	if cfg.Console != nil {
		writers = append(writers, cfg.Console)
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f.Close
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(l))
				}
			}
			return a
		},
	})
	return slog.New(handler), closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SuperDebug logs at LevelSuperDebug.
func SuperDebug(ctx context.Context, log *slog.Logger, msg string, args ...any) {
	log.Log(ctx, LevelSuperDebug, msg, args...)
}

// #endregion
