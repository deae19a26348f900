package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell.dev/inkwell/internal/auth"
)

func TestContextFromRequest(t *testing.T) {
	// Test Cases
	tests := []struct {
		name    string
		headers map[string]string

		wantToken   string
		wantPresent bool
	}{
		{
			name:        "Bearer",
			headers:     map[string]string{"Authorization": "Bearer abc123"},
			wantToken:   "Bearer abc123",
			wantPresent: true,
		},
		{
			name:        "NoScheme",
			headers:     map[string]string{"Authorization": "abc123"},
			wantToken:   "abc123",
			wantPresent: true,
		},
		{
			name:        "Untrimmed",
			headers:     map[string]string{"Authorization": "  Bearer   abc123 "},
			wantToken:   "  Bearer   abc123 ",
			wantPresent: true,
		},
		{
			name:        "Empty",
			headers:     map[string]string{"Authorization": ""},
			wantToken:   "",
			wantPresent: true,
		},
		{
			name:        "Missing",
			headers:     map[string]string{"X-Other": "value"},
			wantPresent: false,
		},
	}

	// Run Tests
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tc.headers {
				r.Header[k] = []string{v}
			}

			ctx := auth.ContextFromRequest(r)
			rc, ok := auth.FromContext(ctx)
			require.True(t, ok)

			token, present := auth.TokenFromContext(ctx)
			assert.Equal(t, tc.wantPresent, present)
			assert.Equal(t, tc.wantPresent, auth.HasToken(ctx))
			if !tc.wantPresent {
				assert.Nil(t, rc.Token)
				return
			}
			require.NotNil(t, rc.Token)
			assert.Equal(t, tc.wantToken, *rc.Token)
			assert.Equal(t, tc.wantToken, token)
		})
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := auth.FromContext(context.Background())
	assert.False(t, ok)

	token, ok := auth.TokenFromContext(context.Background())
	assert.False(t, ok)
	assert.Empty(t, token)
}
