package http_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell.dev/inkwell/internal/auth"
	inkwellhttp "inkwell.dev/inkwell/internal/http"
)

func TestServerForwardsAuthorization(t *testing.T) {
	// Test Cases
	tests := []struct {
		name   string
		header string
		set    bool

		wantToken *string
	}{
		{
			name:      "Bearer",
			header:    "Bearer abc123",
			set:       true,
			wantToken: ptr("Bearer abc123"),
		},
		{
			name:      "Raw",
			header:    "abc123",
			set:       true,
			wantToken: ptr("abc123"),
		},
		{
			name:      "Missing",
			wantToken: nil,
		},
	}

	// Run Tests
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got auth.RequestContext
			var found bool
			srv := inkwellhttp.NewServer(inkwellhttp.RouteMap{
				"/": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					got, found = auth.FromContext(r.Context())
				}),
			})

			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.set {
				r.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, r)

			require.True(t, found)
			assert.Equal(t, tc.wantToken, got.Token)
		})
	}
}

func TestServerRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	routes := inkwellhttp.RouteMap{}
	routes.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte("RUNNING"))
		require.NoError(t, err)
	})
	srv := inkwellhttp.NewServer(routes, inkwellhttp.WithRequestLogging(logger))

	r := httptest.NewRequest(http.MethodGet, "/status", nil)
	r.Header.Set("Authorization", "Bearer secret-token-value")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RUNNING", string(body))

	logs := buf.String()
	assert.Contains(t, logs, "http_url=/status")
	assert.Contains(t, logs, "has_token=true")
	assert.NotContains(t, logs, "secret-token-value")
}

func TestServerNotFound(t *testing.T) {
	srv := inkwellhttp.NewServer(inkwellhttp.RouteMap{
		"/status": http.NotFoundHandler(),
	})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func ptr(s string) *string {
	return &s
}
