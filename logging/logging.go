// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"

	"github.com/wevote/wevote-server/cliparse"
)

// New builds a logger from the settings: text on stdout for console,
// JSON through a rotating lumberjack file for file.
func New(s cliparse.LoggerSettings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(s.LogLevel)}

	if s.LogType == cliparse.LogTypeFile {
		writer := &lumberjack.Logger{
			Filename:   s.FilePath,
			MaxSize:    s.MaxSize,
			MaxBackups: s.MaxBackups,
			MaxAge:     s.MaxAge,
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(writer, opts))
	}

	return NewWithWriter(os.Stdout, s.LogLevel)
}

// NewWithWriter returns a text logger writing to w
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Setup installs the configured logger as the slog default, so package
// level slog calls throughout the server pick it up.
func Setup(s cliparse.LoggerSettings) *slog.Logger {
	logger := New(s)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a configured level name to a slog level. Unknown
// names fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case cliparse.LogLevelDebug:
		return slog.LevelDebug
	case cliparse.LogLevelWarning, "warn":
		return slog.LevelWarn
	case cliparse.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
