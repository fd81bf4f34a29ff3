// Package logger builds the process loggers: the application logger on
// stdout and the rotating operational channel that receives audit entries
// which could not be persisted.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options mirrors the logging part of config.Config.
type Options struct {
	Level      string
	OpsFile    string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns the JSON application logger writing to w.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// NewOps returns the operational logger and a closer for its file. Entries
// are always logged at info and above whatever the application level is.
func NewOps(opts Options) (*slog.Logger, io.Closer) {
	var w io.WriteCloser = nopCloser{os.Stderr}
	if opts.OpsFile != "" {
		w = &lumberjack.Logger{
			Filename:   opts.OpsFile,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
	}
	l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return l.With("channel", "ops"), w
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
