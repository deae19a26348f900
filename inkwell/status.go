package main

import (
	"context"
	"log/slog"
	"net/http"

	"inkwell.dev/inkwell/internal/neo4jgraphql"
)

// Bodies returned by the status handler.
const (
	OKStatusText          = "RUNNING"
	UnavailableStatusText = "DATABASE UNAVAILABLE"
)

type connectivityVerifier interface {
	VerifyConnectivity(ctx context.Context) error
}

// newStatusHandler reports whether Inkwell can serve requests. Databases able to verify
// connectivity are checked on every request.
func newStatusHandler(db neo4jgraphql.Database) http.HandlerFunc {
	verifier, _ := db.(connectivityVerifier)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if verifier != nil {
			if err := verifier.VerifyConnectivity(r.Context()); err != nil {
				slog.WarnContext(r.Context(), "status check failed to reach database", "err", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				if _, err := w.Write([]byte(UnavailableStatusText)); err != nil {
					panic(err)
				}
				return
			}
		}
		if _, err := w.Write([]byte(OKStatusText)); err != nil {
			panic(err)
		}
	})
}
