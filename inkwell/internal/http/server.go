package http

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"inkwell.dev/inkwell/internal/auth"
)

// Server routes Inkwell HTTP traffic. Every request carries its Authorization header
// into the handler's context.
type Server struct {
	Logger

	mux *http.ServeMux
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r = r.WithContext(auth.ContextFromRequest(r))

	route := unmatchedRoute
	if _, pattern := srv.mux.Handler(r); pattern != "" {
		route = pattern
	}

	if srv.Logger != nil {
		srv.Log(r)
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		metricRequests.WithLabelValues(route, r.Method, statusClass(rec.status)).Inc()
		metricRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	}()

	srv.mux.ServeHTTP(rec, r)
}

// statusRecorder remembers the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Flush supports streaming transports.
func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack supports websocket upgrades. A hijacked connection is recorded as 101.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not support hijacking", rec.ResponseWriter)
	}
	rec.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}
