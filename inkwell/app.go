package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	inkwellhttp "inkwell.dev/inkwell/internal/http"
	"inkwell.dev/inkwell/internal/neo4jgraphql"
)

// Version of Inkwell being run
const Version = "v0.0.1"

func newApp(ctx context.Context, options ...func(*Config)) (app *cli.App) {
	app = cli.NewApp()
	app.Name = "inkwell"
	app.Description = "GraphQL API for posts and their authors, backed by Neo4j"
	app.Version = Version
	app.Action = cli.ActionFunc(func(*cli.Context) error {
		return run(ctx, options...)
	})
	app.Commands = []cli.Command{
		{
			Name:  "schema",
			Usage: "Print the derived GraphQL schema without connecting to the database",
			Action: func(c *cli.Context) error {
				cfg := newConfig(options...)
				sdl, err := printSchema(cfg)
				if err != nil {
					return fmt.Errorf("failed to derive graphql schema: %w", err)
				}
				_, err = fmt.Fprint(c.App.Writer, sdl)
				return err
			},
		},
	}
	return
}

func newConfig(options ...func(*Config)) *Config {
	cfg := &Config{}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

func run(ctx context.Context, options ...func(*Config)) error {
	srv, err := NewServer(ctx, options...)
	if err != nil {
		return err
	}

	if srv.cfg.IsTestRunAndExitEnabled() {
		slog.InfoContext(ctx, "startup completed, exiting")
		return srv.Close()
	}
	defer srv.Close()
	return srv.Run(ctx)
}

// Server responsible for handling Inkwell requests.
type Server struct {
	HTTP        *http.Server
	MetricsHTTP *http.Server

	cfg    *Config
	db     neo4jgraphql.Database
	schema *neo4jgraphql.Schema
}

// NewServer initializes an Inkwell server. Startup is strictly sequential and stops at the
// first failure, so a Server is only returned once its schema is complete.
func NewServer(ctx context.Context, options ...func(*Config)) (*Server, error) {
	// Initialize Config
	cfg := newConfig(options...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Create Database Handle
	db, err := cfg.Connect()
	if err != nil {
		return nil, err
	}

	// Derive GraphQL Schema
	schema, err := deriveSchema(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	// Initialize Test Data
	if cfg.IsTestDataEnabled() {
		if err := createTestData(ctx, db, cfg.AuthorizationKey()); err != nil {
			return nil, err
		}
	}

	// Create GraphQL Handler
	gqlSrv := newGraphQLHandler(schema, cfg.IsDebugEnabled())

	// Setup HTTP Handler
	router := inkwellhttp.NewServer(
		inkwellhttp.RouteMap{
			"/":           gqlSrv,
			"/playground": playground.Handler("Inkwell", "/"),
			"/status":     newStatusHandler(db),
		},
		inkwellhttp.WithRequestLogging(slog.Default()),
	)

	// Configure HTTP Server
	if cfg.srv == nil {
		cfg.srv = &http.Server{Addr: EnvHTTPListenAddr.String()}
	}
	cfg.srv.Handler = router

	// Configure Metrics HTTP Server
	var metricsHTTP *http.Server
	if cfg.IsMetricsEnabled() {
		slog.WarnContext(ctx, "metrics http endpoint enabled")
		metricsHTTP = &http.Server{
			Addr:    EnvHTTPMetricsListenAddr.String(),
			Handler: promhttp.Handler(),
		}
	}

	return &Server{
		HTTP:        cfg.srv,
		MetricsHTTP: metricsHTTP,
		cfg:         cfg,
		db:          db,
		schema:      schema,
	}, nil
}

// Run binds the configured address and serves until a listener fails.
func (srv *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %w", srv.HTTP.Addr, err)
	}
	return srv.Serve(ctx, ln)
}

// Serve GraphQL traffic on the provided listener, and metrics if enabled.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	slog.InfoContext(ctx, fmt.Sprintf("Server ready at %s", serverURL(ln.Addr())))

	group, ctx := errgroup.WithContext(ctx)
	if srv.MetricsHTTP != nil {
		group.Go(func() error {
			slog.InfoContext(ctx, "metrics http server listening", "addr", srv.MetricsHTTP.Addr)
			if err := srv.MetricsHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("stopped metrics http server: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		if err := srv.HTTP.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("stopped http server: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close the listeners and the database driver.
func (srv *Server) Close() error {
	var errs []error
	if srv.MetricsHTTP != nil {
		errs = append(errs, srv.MetricsHTTP.Close())
	}
	errs = append(errs, srv.HTTP.Close())
	if closer, ok := srv.db.(interface{ Close(context.Context) error }); ok {
		errs = append(errs, closer.Close(context.Background()))
	}
	return errors.Join(errs...)
}

func serverURL(addr net.Addr) string {
	port := "4444"
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = fmt.Sprint(tcp.Port)
	}
	return fmt.Sprintf("http://localhost:%s/", port)
}

// Schema served by the server.
func (srv *Server) Schema() *neo4jgraphql.Schema {
	return srv.schema
}
