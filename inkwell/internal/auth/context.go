// Package auth carries the caller's authorization token through request contexts.
//
// Tokens are never parsed or verified here. The GraphQL mapping layer receives the
// header value exactly as the client sent it.
package auth

import (
	"context"
	"net/http"
)

// HeaderAuthorization is the request header forwarded to the execution layer.
const HeaderAuthorization = "Authorization"

// ctxKey is used to manage values stored inside of context, it is unexported to limit modifications of these values to this package.
type ctxKey struct{}

// RequestContext is the per-request value handed to the execution layer.
type RequestContext struct {
	// Token is the verbatim Authorization header, nil if the request did not supply one.
	Token *string
}

// ContextFromRequest returns a copy of the request context associated with a RequestContext
// built from the request headers.
func ContextFromRequest(r *http.Request) context.Context {
	var rc RequestContext
	if values, ok := r.Header[http.CanonicalHeaderKey(HeaderAuthorization)]; ok && len(values) > 0 {
		token := values[0]
		rc.Token = &token
	}
	return NewContext(r.Context(), rc)
}

// NewContext returns a copy of parent context with the given RequestContext associated with it.
func NewContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext returns the RequestContext associated with the provided context.
func FromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(ctxKey{}).(RequestContext)
	return rc, ok
}

// TokenFromContext returns the raw token associated with the provided context, if any.
func TokenFromContext(ctx context.Context) (string, bool) {
	rc, ok := FromContext(ctx)
	if !ok || rc.Token == nil {
		return "", false
	}
	return *rc.Token, true
}

// HasToken returns true if the context carries an Authorization header value.
func HasToken(ctx context.Context) bool {
	_, ok := TokenFromContext(ctx)
	return ok
}
