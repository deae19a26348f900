package neo4jgraphql

import (
	"errors"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

var (
	// ErrForbidden is reported when an authorization rule rejects a node.
	ErrForbidden = errors.New("Forbidden")

	// ErrUnauthenticated is reported when a rule applies but the caller has no valid token.
	ErrUnauthenticated = errors.New("Unauthenticated")
)

// Codes set in the extensions of GraphQL errors.
const (
	CodeForbidden       = "FORBIDDEN"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

// toGQLError converts an error raised while resolving the field at path.
func toGQLError(err error, path ast.Path) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		if gqlErr.Path == nil {
			gqlErr.Path = path
		}
		return gqlErr
	}

	code := CodeInternal
	switch {
	case errors.Is(err, ErrForbidden):
		code = CodeForbidden
		err = ErrForbidden
	case errors.Is(err, ErrUnauthenticated):
		code = CodeUnauthenticated
		err = ErrUnauthenticated
	}
	return &gqlerror.Error{
		Err:        err,
		Message:    err.Error(),
		Path:       path,
		Extensions: map[string]any{"code": code},
	}
}
