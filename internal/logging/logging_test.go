package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "warn"})
	log.Info("dropped")
	log.Warn("kept", Int("entity", 3))

	out := buf.String()
	require.NotContains(t, out, "dropped")
	require.Contains(t, out, "kept")
	require.Contains(t, out, "entity=3")
}

func TestJSONFormatAndRunID(t *testing.T) {
	var buf bytes.Buffer
	log, id := WithRunID(NewWithWriter(&buf, Config{Level: "debug", Format: "json"}))
	require.Len(t, id, 36)

	log.Debug("tick", Float64("t", 1.5), Bool("stopped", false))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "tick", line["msg"])
	require.Equal(t, id, line["run_id"])
	require.Equal(t, 1.5, line["t"])
	require.Equal(t, false, line["stopped"])
}

func TestWithRunID_NilBase(t *testing.T) {
	log, id := WithRunID(nil)
	require.NotNil(t, log)
	require.NotEmpty(t, id)
	log.Error("ignored", Err(nil))

	_, other := WithRunID(Noop())
	require.NotEqual(t, id, other)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	cfg := ConfigFromEnv(Config{Level: "info", Format: "text", AddSource: true})
	require.Equal(t, Config{Level: "error", Format: "json", AddSource: true}, cfg)

	t.Setenv("LOG_LEVEL", "")
	require.Equal(t, "debug", ConfigFromEnv(Config{Level: "debug"}).Level)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"DEBUG": "DEBUG", "warning": "WARN", "error": "ERROR", "": "INFO", "bogus": "INFO"} {
		require.Equal(t, want, strings.ToUpper(parseLevel(in).Level().String()), in)
	}
}
