package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_RedactsSensitiveKeys(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("login", "password", "hunter2", "notify_email", "ops@example.com", "case_number", "SA-20240101-ABC123")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "[REDACTED]", fields["password"])
	require.Equal(t, "[REDACTED]", fields["notify_email"])
	require.Equal(t, "SA-20240101-ABC123", fields["case_number"])
}

func TestLogger_WithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With("correlation_id", "corr-1")

	l.Warn("degraded")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "corr-1", entries[0].ContextMap()["correlation_id"])
}

func TestSanitizeKVs_OddLength(t *testing.T) {
	out := sanitizeKVs([]any{"a", 1, "dangling"})
	require.Equal(t, []any{"a", 1, "dangling"}, out)
}

func TestNew_Modes(t *testing.T) {
	l, err := New("production")
	require.NoError(t, err)
	require.NotNil(t, l)

	l, err = New("")
	require.NoError(t, err)
	require.NotNil(t, l)
}
