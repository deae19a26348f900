package main

import (
	"bytes"
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

// captureLogs redirects the default logger for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		name      string
		env       EnvBool
		osValue   string
		wantValue bool
	}{
		{
			name:      "Set",
			env:       EnvBool{"INKWELL_TEST_BOOL"},
			osValue:   "1",
			wantValue: true,
		},
		{
			name:      "AnyValue",
			env:       EnvBool{"INKWELL_TEST_BOOL"},
			osValue:   "false",
			wantValue: true,
		},
		{
			name:      "Unset",
			env:       EnvBool{"INKWELL_TEST_BOOL"},
			osValue:   "",
			wantValue: false,
		},
	}

	// Run Tests
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env.Key, tc.osValue)

			assert.Equal(t, tc.wantValue, tc.env.IsSet())
			assert.Equal(t, !tc.wantValue, tc.env.IsUnset())
			assert.Equal(t, strconv.FormatBool(tc.wantValue), tc.env.String())
		})
	}
}

func TestEnvString(t *testing.T) {
	// Test Cases
	tests := []struct {
		name string

		env          EnvString
		osValue      string
		wantValue    string
		wantRequired string
	}{
		{
			name:         "Set",
			env:          EnvString{"INKWELL_TEST_STRING", ""},
			osValue:      "VALUE_SET",
			wantValue:    "VALUE_SET",
			wantRequired: "VALUE_SET",
		},
		{
			name:      "Unset",
			env:       EnvString{"INKWELL_TEST_STRING", ""},
			osValue:   "",
			wantValue: "",
		},
		{
			name:      "Default",
			env:       EnvString{"INKWELL_TEST_STRING", "BLAH_BLAH"},
			osValue:   "",
			wantValue: "BLAH_BLAH",
		},
		{
			name:         "RequiredIgnoresDefault",
			env:          EnvString{"INKWELL_TEST_STRING", "fallback"},
			osValue:      "bolt://localhost:7687",
			wantValue:    "bolt://localhost:7687",
			wantRequired: "bolt://localhost:7687",
		},
	}

	// Run Tests
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env.Key, tc.osValue)

			assert.Equal(t, tc.wantValue, tc.env.String())
			assert.Equal(t, tc.wantRequired, tc.env.Required())
		})
	}
}

func TestEnvSecret(t *testing.T) {
	env := EnvSecret{"INKWELL_TEST_SECRET", "hunter2"}

	t.Run("Default", func(t *testing.T) {
		logs := captureLogs(t)
		t.Setenv(env.Key, "")

		assert.Equal(t, "hunter2", env.String())
		assert.Empty(t, env.Required())
		assert.Contains(t, logs.String(), redacted)
		assert.NotContains(t, logs.String(), "hunter2")
	})

	t.Run("Set", func(t *testing.T) {
		t.Setenv(env.Key, "s3cr3t")

		assert.Equal(t, "s3cr3t", env.String())
		assert.Equal(t, "s3cr3t", env.Required())
	})
}

func TestEnvInteger(t *testing.T) {
	// Test Cases
	tests := []struct {
		name string

		env       EnvInteger
		osValue   string
		wantValue int
	}{
		{
			name:      "Set",
			env:       EnvInteger{"INKWELL_TEST_INT", 0},
			osValue:   "123",
			wantValue: 123,
		},
		{
			name:      "Unset",
			env:       EnvInteger{"INKWELL_TEST_INT", 0},
			osValue:   "",
			wantValue: 0,
		},
		{
			name:      "Default",
			env:       EnvInteger{"INKWELL_TEST_INT", 456},
			osValue:   "",
			wantValue: 456,
		},
	}

	// Run Tests
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env.Key, tc.osValue)

			assert.Equal(t, tc.wantValue, tc.env.Int())
		})
	}
}
