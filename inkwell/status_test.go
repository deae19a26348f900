package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell.dev/inkwell/internal/neo4jgraphql"
	"inkwell.dev/inkwell/internal/neo4jgraphql/neo4jgraphqltest"
)

type verifyingDatabase struct {
	neo4jgraphql.Database
	err error
}

func (db verifyingDatabase) VerifyConnectivity(context.Context) error {
	return db.err
}

func TestStatusHandler(t *testing.T) {
	tests := []struct {
		name     string
		db       neo4jgraphql.Database
		wantCode int
		wantBody string
	}{
		{
			name:     "NoVerifier",
			db:       neo4jgraphqltest.New(),
			wantCode: http.StatusOK,
			wantBody: OKStatusText,
		},
		{
			name:     "Reachable",
			db:       verifyingDatabase{Database: neo4jgraphqltest.New()},
			wantCode: http.StatusOK,
			wantBody: OKStatusText,
		},
		{
			name:     "Unreachable",
			db:       verifyingDatabase{Database: neo4jgraphqltest.New(), err: errors.New("connection refused")},
			wantCode: http.StatusServiceUnavailable,
			wantBody: UnavailableStatusText,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := newStatusHandler(tc.db)

			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, "/status", nil))

			body, err := io.ReadAll(w.Body)
			require.NoError(t, err)
			assert.Equal(t, tc.wantCode, w.Code)
			assert.Equal(t, tc.wantBody, string(body))
		})
	}
}
