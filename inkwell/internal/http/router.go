package http

import (
	"log/slog"
	"net/http"
)

// RouteMap binds mux patterns (e.g. "/status", "GET /playground") to handlers.
type RouteMap map[string]http.Handler

// HandleFunc adds fn to the map under pattern.
func (routes RouteMap) HandleFunc(pattern string, fn func(http.ResponseWriter, *http.Request)) {
	routes[pattern] = http.HandlerFunc(fn)
}

// Handle adds h to the map under pattern, replacing any previous handler.
func (routes RouteMap) Handle(pattern string, h http.Handler) {
	routes[pattern] = h
}

// An Option adjusts a Server before it starts handling requests.
type Option func(*Server)

// NewServer mounts routes on a fresh mux.
func NewServer(routes RouteMap, options ...Option) *Server {
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.Handle(pattern, h)
	}

	srv := &Server{mux: mux}
	for _, opt := range options {
		opt(srv)
	}
	return srv
}

// WithRequestLogging logs every request to logger before it is routed.
func WithRequestLogging(logger *slog.Logger) Option {
	return func(srv *Server) {
		srv.Logger = defaultRequestLogger{logger}
	}
}
