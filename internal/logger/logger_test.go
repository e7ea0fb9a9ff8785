package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyHandlerRedactsSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "debug", "pretty")

	log.With("component", "session").Info("session resolved", "token", "T1-secret", "Authorization", "Bearer T1-secret", "user_id", 7)

	out := buf.String()
	assert.Contains(t, out, "session resolved")
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "user_id")
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "T1-secret")
}

func TestJSONHandlerRedactsSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "info", "json")
	log.Info("login submitted", "email", "a@x.com", "password", "secret1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "a@x.com", line["email"])
	assert.Equal(t, redacted, line["password"])
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "warn", "pretty")
	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestWithGroupPrefixesKeys(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil)).WithGroup("api")
	log.Info("call", "path", "/auth/me")

	assert.Contains(t, buf.String(), "api.path")
}

func TestPrettyHandlerFlattensNestedGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))
	log.Info("remote call",
		slog.Group("request", slog.String("authorization", "Bearer T9"), slog.String("route", "/auth/me")),
		"reason", "token rejected",
	)

	out := buf.String()
	assert.Contains(t, out, "request.route")
	assert.Contains(t, out, "request.authorization")
	assert.NotContains(t, out, "T9")
	assert.Contains(t, out, `"token rejected"`)
}
