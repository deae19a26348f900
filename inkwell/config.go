package main

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"inkwell.dev/inkwell/internal/neo4jdb"
	"inkwell.dev/inkwell/internal/neo4jgraphql"
)

var (
	// EnvEnableTestData if set will populate the database with test data.
	// EnvEnableTestRunAndExit will start the application, but exit immediately after.
	// EnvDebugLogging will emit verbose debug logs, including every translated Cypher statement.
	// EnvJSONLogging will emit logs in JSON format for easier parsing by log aggregators.
	EnvEnableTestData       = EnvBool{"ENABLE_TEST_DATA"}
	EnvEnableTestRunAndExit = EnvBool{"ENABLE_TEST_RUN_AND_EXIT"}
	EnvDebugLogging         = EnvBool{"ENABLE_DEBUG_LOGGING"}
	EnvJSONLogging          = EnvBool{"ENABLE_JSON_LOGGING"}

	// EnvHTTPListenAddr sets the address (ip:port) for the GraphQL HTTP server to bind to.
	// EnvHTTPMetricsListenAddr sets the address (ip:port) for the HTTP metrics server to bind to.
	EnvHTTPListenAddr        = EnvString{"HTTP_LISTEN_ADDR", "0.0.0.0:4444"}
	EnvHTTPMetricsListenAddr = EnvString{"HTTP_METRICS_LISTEN_ADDR", "127.0.0.1:8080"}

	// EnvNeo4jURI is the URI of the Neo4j server (e.g. neo4j://localhost:7687).
	// EnvNeo4jUsername is the user to authenticate as.
	// EnvNeo4jPassword is the password of the user.
	// EnvNeo4jDatabase selects the database to use, the server default if unset.
	// EnvNeo4jMaxConnectionPoolSize bounds the connections kept open to each server.
	EnvNeo4jURI                   = EnvString{"NEO4J_URI", ""}
	EnvNeo4jUsername              = EnvString{"NEO4J_USERNAME", ""}
	EnvNeo4jPassword              = EnvSecret{"NEO4J_PASSWORD", ""}
	EnvNeo4jDatabase              = EnvString{"NEO4J_DATABASE", ""}
	EnvNeo4jMaxConnectionPoolSize = EnvInteger{"NEO4J_MAX_CONNECTION_POOL_SIZE", 100}

	// EnvSchemaOutputPath is where the derived schema is written on startup.
	// EnvAuthorizationKey is the secret authorization tokens are verified with.
	EnvSchemaOutputPath = EnvString{"SCHEMA_OUTPUT_PATH", "schema.graphql"}
	EnvAuthorizationKey = EnvSecret{"AUTHORIZATION_KEY", "secret"}

	// EnvEnableMetrics enables the /metrics endpoint and HTTP server. It is unauthenticated and should be used carefully.
	EnvEnableMetrics = EnvBool{"ENABLE_METRICS"}
)

// Neo4jConfig holds the connection parameters of the database.
type Neo4jConfig struct {
	URI      string `env:"NEO4J_URI" validate:"required,url"`
	Username string `env:"NEO4J_USERNAME" validate:"required"`
	Password string `env:"NEO4J_PASSWORD" validate:"required"`
	Database string `env:"NEO4J_DATABASE"`

	MaxConnectionPoolSize int `env:"NEO4J_MAX_CONNECTION_POOL_SIZE" validate:"gte=0"`
}

// Config holds information that controls the behaviour of Inkwell
type Config struct {
	srv *http.Server

	neo4j neo4jConfigState
	db    neo4jgraphql.Database

	schemaPath       string
	authorizationKey string
}

type neo4jConfigState struct {
	configured bool
	Neo4jConfig
}

// ErrNeo4jNotConfigured occurs when no database connection parameters were provided.
var ErrNeo4jNotConfigured = errors.New("neo4j connection is not configured")

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// Validate the connection parameters, reporting every invalid value by its environment variable.
func (c Neo4jConfig) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate neo4j config: %w", err)
	}

	var errs error
	for _, fieldErr := range fieldErrs {
		switch fieldErr.Tag() {
		case "required":
			errs = multierror.Append(errs, fmt.Errorf("missing required configuration %q", fieldErr.Field()))
		case "url":
			errs = multierror.Append(errs, fmt.Errorf("invalid configuration %q: %q is not a valid URI", fieldErr.Field(), fieldErr.Value()))
		default:
			errs = multierror.Append(errs, fmt.Errorf("invalid configuration %q: failed %q validation", fieldErr.Field(), fieldErr.Tag()))
		}
	}
	return errs
}

// Validate the config before anything is connected or served.
func (cfg *Config) Validate() error {
	if cfg.db != nil {
		return nil
	}
	if !cfg.neo4j.configured {
		return ErrNeo4jNotConfigured
	}
	return cfg.neo4j.Validate()
}

// Connect to the database using the validated connection parameters.
// The connection is not verified until first use.
func (cfg *Config) Connect() (neo4jgraphql.Database, error) {
	if cfg.db != nil {
		return cfg.db, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var options []neo4jdb.Option
	if cfg.neo4j.Database != "" {
		options = append(options, neo4jdb.WithDatabaseName(cfg.neo4j.Database))
	}
	if cfg.neo4j.MaxConnectionPoolSize > 0 {
		options = append(options, neo4jdb.WithMaxConnectionPoolSize(cfg.neo4j.MaxConnectionPoolSize))
	}
	db, err := neo4jdb.Open(cfg.neo4j.URI, cfg.neo4j.Username, cfg.neo4j.Password, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// SchemaOutputPath returns the path the derived schema is written to.
func (cfg *Config) SchemaOutputPath() string {
	if cfg.schemaPath != "" {
		return cfg.schemaPath
	}
	return EnvSchemaOutputPath.String()
}

// AuthorizationKey returns the secret used to verify authorization tokens.
func (cfg *Config) AuthorizationKey() string {
	if cfg.authorizationKey != "" {
		return cfg.authorizationKey
	}
	return EnvAuthorizationKey.String()
}

// IsMetricsEnabled returns true if the /metrics http endpoint has been enabled.
func (cfg *Config) IsMetricsEnabled() bool {
	return EnvEnableMetrics.IsSet()
}

// IsDebugEnabled returns true if a value for the "ENABLE_DEBUG_LOGGING" environment variable is set.
func (cfg *Config) IsDebugEnabled() bool {
	return EnvDebugLogging.IsSet()
}

// IsTestDataEnabled returns true if a value for the "ENABLE_TEST_DATA" environment variable is set.
func (cfg *Config) IsTestDataEnabled() bool {
	return EnvEnableTestData.IsSet()
}

// IsTestRunAndExitEnabled returns true if a value for the "ENABLE_TEST_RUN_AND_EXIT" environment variable is set.
func (cfg *Config) IsTestRunAndExitEnabled() bool {
	return EnvEnableTestRunAndExit.IsSet()
}

// ConfigureHTTPServerFromEnv enables the configuration of the Inkwell HTTP server. The handler field will be
// overwritten with Inkwell's HTTP handler when Inkwell is run.
func ConfigureHTTPServerFromEnv(options ...func(*http.Server)) func(*Config) {
	return ConfigureHTTPServer(EnvHTTPListenAddr.String(), options...)
}

// ConfigureHTTPServer configures the Inkwell HTTP server to listen on the provided address.
func ConfigureHTTPServer(address string, options ...func(*http.Server)) func(*Config) {
	srv := &http.Server{
		Addr: address,
	}
	for _, opt := range options {
		opt(srv)
	}
	return func(cfg *Config) {
		cfg.srv = srv
	}
}

// ConfigureNeo4jFromEnv sets the database connection parameters from the environment.
// Values are validated when Inkwell starts.
func ConfigureNeo4jFromEnv() func(*Config) {
	return func(cfg *Config) {
		cfg.neo4j = neo4jConfigState{
			configured: true,
			Neo4jConfig: Neo4jConfig{
				URI:      EnvNeo4jURI.Required(),
				Username: EnvNeo4jUsername.Required(),
				Password: EnvNeo4jPassword.Required(),
				Database: EnvNeo4jDatabase.Required(),

				MaxConnectionPoolSize: EnvNeo4jMaxConnectionPoolSize.Int(),
			},
		}
	}
}

// ConfigureNeo4j sets the database connection parameters.
func ConfigureNeo4j(neo4jCfg Neo4jConfig) func(*Config) {
	return func(cfg *Config) {
		cfg.neo4j = neo4jConfigState{configured: true, Neo4jConfig: neo4jCfg}
	}
}

// ConfigureDatabase sets the provided Database as the main interface for DB access.
func ConfigureDatabase(db neo4jgraphql.Database) func(*Config) {
	return func(cfg *Config) {
		cfg.db = db
	}
}

// ConfigureSchemaOutput sets the path the derived schema is written to.
func ConfigureSchemaOutput(path string) func(*Config) {
	return func(cfg *Config) {
		cfg.schemaPath = path
	}
}

// ConfigureAuthorizationKey sets the secret authorization tokens are verified with.
func ConfigureAuthorizationKey(key string) func(*Config) {
	return func(cfg *Config) {
		cfg.authorizationKey = key
	}
}
