package main

import (
	"io"
	"log/slog"
	"os"
)

// newLogHandler selects the log format and level from ENABLE_JSON_LOGGING and ENABLE_DEBUG_LOGGING.
func newLogHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if EnvDebugLogging.IsSet() {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	if EnvJSONLogging.IsSet() {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func configureLogging() {
	slog.SetDefault(slog.New(newLogHandler(os.Stderr)))
	slog.Debug("debug logging enabled, translated cypher will be logged")
}
