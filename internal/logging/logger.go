package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs a JSON logger on stdout and returns its handler so callers
// can fan it out later with Install.
func Setup(appEnv string) slog.Handler {
	handler := NewJSONHandler(os.Stdout, appEnv)
	slog.SetDefault(slog.New(handler))
	return handler
}

// NewJSONHandler logs INFO and above, or DEBUG in development.
func NewJSONHandler(w io.Writer, appEnv string) slog.Handler {
	level := slog.LevelInfo
	if appEnv == "development" {
		level = slog.LevelDebug
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// Install replaces the default logger with one writing to every handler.
func Install(handlers ...slog.Handler) {
	slog.SetDefault(slog.New(NewMultiHandler(handlers...)))
}
