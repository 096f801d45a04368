// ABOUTME: zerolog setup shared by the CLI
// ABOUTME: Console output for streaming mode, rotating file output always
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level string

	// File is the log file path; empty disables file output
	File string

	// Console mirrors logs to stdout. Off while the TUI owns the terminal.
	Console bool

	// Out replaces stdout for console output
	Out io.Writer
}

// Setup builds the process logger, installs it as log.Logger and returns a
// closer for the file output
func Setup(cfg Config) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if cfg.Console {
		out := cfg.Out
		if out == nil {
			out = os.Stdout
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"})
	}

	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
		}
		writers = append(writers, file)
		closer = file
	}

	var logger zerolog.Logger
	if len(writers) == 0 {
		logger = zerolog.Nop()
	} else {
		logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
			Level(level).
			With().
			Timestamp().
			Logger()
	}

	zerolog.DurationFieldUnit = time.Millisecond
	log.Logger = logger
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
