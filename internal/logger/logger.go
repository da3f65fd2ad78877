// Package logger builds the Agent's structured zerolog.Logger, with
// optional syslog delivery and rotated-file fallback.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how log output is written.
type Config struct {
	// Path, when set, writes rotated log files here instead of stderr.
	Path       string
	Level      string
	Console    bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Syslog requests delivery to the local syslog daemon. It takes
	// precedence over Path; if the daemon cannot be reached, output goes
	// to Path (or stderr) instead.
	Syslog bool
}

// New builds a zerolog.Logger per cfg. Every caller in this Agent threads
// the returned logger through constructor injection rather than a package
// global, so there is no Get()/global-singleton here.
func New(cfg Config) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	writer, err := resolveWriter(cfg)
	if err != nil {
		return zerolog.Logger{}, err
	}

	var zlog zerolog.Logger
	if cfg.Console {
		zlog = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	} else {
		zlog = zerolog.New(writer).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zlog.Level(level), nil
}

func resolveWriter(cfg Config) (io.Writer, error) {
	if cfg.Syslog {
		if w, err := newSyslogWriter(); err == nil {
			return w, nil
		}
		// Fall through to file/stderr if the syslog daemon is unreachable;
		// a device without syslogd running shouldn't lose its log output.
	}
	if cfg.Path == "" {
		return os.Stderr, nil
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logger: create log directory %s: %w", dir, err)
		}
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}, nil
}

// WithComponent tags every event from the returned logger with a
// "component" field, the same convention the dispatcher/engine/mtp
// packages use to distinguish log streams.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
