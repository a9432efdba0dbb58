package main

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// newLogger builds the console logger. Verbosity counts -v flags:
// 0 WARN, 1 INFO, 2 DEBUG, 3+ TRACE.
func newLogger(w io.Writer, verbosity int) zerolog.Logger {
	level := zerolog.WarnLevel
	switch {
	case verbosity == 1:
		level = zerolog.InfoLevel
	case verbosity == 2:
		level = zerolog.DebugLevel
	case verbosity >= 3:
		level = zerolog.TraceLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
	}).Level(level).With().Timestamp().Logger()
	if verbosity >= 2 {
		logger = logger.With().Caller().Logger()
	}
	return logger
}
