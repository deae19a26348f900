package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/debug"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/ast"

	"inkwell.dev/inkwell/internal/auth"
)

const (
	websocketKeepAlive = 10 * time.Second
	queryCacheSize     = 1000
	persistedCacheSize = 100
)

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // The API is token authorized, not cookie authorized
	},
}

// newGraphQLHandler serves the executable schema over POST, GET, multipart and websockets.
func newGraphQLHandler(schema graphql.ExecutableSchema, debugEnabled bool) *handler.Server {
	srv := handler.New(schema)

	srv.AddTransport(transport.Websocket{
		Upgrader:              websocketUpgrader,
		InitFunc:              websocketInit,
		KeepAlivePingInterval: websocketKeepAlive,
		ErrorFunc: func(ctx context.Context, err error) {
			slog.DebugContext(ctx, "graphql websocket error", "err", err)
		},
	})
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.AddTransport(transport.MultipartForm{})

	srv.SetQueryCache(lru.New[*ast.QueryDocument](queryCacheSize))
	srv.Use(extension.Introspection{})
	srv.Use(extension.AutomaticPersistedQuery{
		Cache: lru.New[string](persistedCacheSize),
	})

	srv.AroundResponses(graphqlWithMetrics)
	if debugEnabled {
		srv.Use(&debug.Tracer{})
	}
	return srv
}

// websocketInit forwards the Authorization value of the connection_init payload, verbatim,
// when the upgrade request carried no header. Browsers cannot set headers on websockets.
func websocketInit(ctx context.Context, payload transport.InitPayload) (context.Context, *transport.InitPayload, error) {
	if auth.HasToken(ctx) {
		return ctx, nil, nil
	}
	if token := payload.Authorization(); token != "" {
		ctx = auth.NewContext(ctx, auth.RequestContext{Token: &token})
	}
	return ctx, nil, nil
}
