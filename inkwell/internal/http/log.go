package http

import (
	"log/slog"
	"net/http"

	"inkwell.dev/inkwell/internal/auth"
)

// Logger records incoming requests.
type Logger interface {
	Log(r *http.Request)
}

type defaultRequestLogger struct {
	*slog.Logger
}

// Log never includes the token itself, only whether the request carried one.
func (l defaultRequestLogger) Log(r *http.Request) {
	l.LogAttrs(r.Context(), slog.LevelInfo, "http request",
		slog.String("http_method", r.Method),
		slog.String("http_url", r.URL.String()),
		slog.String("http_remote_addr", r.RemoteAddr),
		slog.Bool("has_token", auth.HasToken(r.Context())),
	)
}
