package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
)

// redacted replaces the defaults of secrets in logs.
const redacted = "[REDACTED]"

// lookupEnv returns the value of the variable, or false when it is unset or empty.
func lookupEnv(key string) (string, bool) {
	val := os.Getenv(key)
	return val, val != ""
}

func warnDefault(key, typ string, def any) {
	slog.Warn("missing configuration, using default value", "env_var", key, "type", typ, "default", def)
}

// EnvBool is a flag enabled by any non-empty value, conventionally VAR=1.
// Flags are always disabled by default.
type EnvBool struct {
	Key string
}

// String value of the flag.
func (env EnvBool) String() string {
	return strconv.FormatBool(env.IsSet())
}

// IsSet reports whether the flag is enabled.
func (env EnvBool) IsSet() bool {
	if _, ok := lookupEnv(env.Key); ok {
		return true
	}
	warnDefault(env.Key, "bool", false)
	return false
}

// IsUnset reports whether the flag is disabled.
func (env EnvBool) IsUnset() bool {
	return !env.IsSet()
}

// EnvString is a string setting with a default.
type EnvString struct {
	Key     string
	Default string
}

// String value of the variable, or the default when unset.
func (env EnvString) String() string {
	if val, ok := lookupEnv(env.Key); ok {
		return val
	}
	warnDefault(env.Key, "string", env.Default)
	return env.Default
}

// Required value of the variable. No default applies; an unset variable yields "" and
// is reported when the configuration is validated.
func (env EnvString) Required() string {
	val, _ := lookupEnv(env.Key)
	return val
}

// EnvSecret is a string setting whose default is never logged.
type EnvSecret struct {
	Key     string
	Default string
}

// String value of the variable, or the default when unset.
func (env EnvSecret) String() string {
	if val, ok := lookupEnv(env.Key); ok {
		return val
	}
	def := env.Default
	if def != "" {
		def = redacted
	}
	warnDefault(env.Key, "secret", def)
	return env.Default
}

// Required value of the variable, see EnvString.Required.
func (env EnvSecret) Required() string {
	val, _ := lookupEnv(env.Key)
	return val
}

// EnvInteger is an integer setting with a default.
type EnvInteger struct {
	Key     string
	Default int
}

// Int parsed from the variable, or the default when unset. Malformed values are fatal.
func (env EnvInteger) Int() int {
	raw, ok := lookupEnv(env.Key)
	if !ok {
		warnDefault(env.Key, "int", env.Default)
		return env.Default
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("[FATAL] invalid integer value (%q) provided for %s: %v", raw, env.Key, err)
	}
	return val
}
