package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"sparkclean/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testApp = config.AppConfig{Name: "sparkclean", Environment: "test", Version: "1.2.3"}

func TestFileOutputCarriesAppFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	logger, closer, err := New(config.LoggingConfig{Level: "warn", Output: "file", FilePath: path}, testApp)
	require.NoError(t, err)
	require.NotNil(t, closer)

	logger.Info().Msg("filtered")
	logger.Warn().Str("component", "outbox").Msg("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "sparkclean", entry["app"])
	assert.Equal(t, "test", entry["env"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "outbox", entry["component"])
}

func TestOutputs(t *testing.T) {
	for _, cfg := range []config.LoggingConfig{
		{},
		{Output: "stderr", Level: "debug"},
		{Output: "stdout", Format: "console"},
		{Level: "nonsense"},
	} {
		logger, closer, err := New(cfg, testApp)
		require.NoError(t, err, "%+v", cfg)
		assert.NotNil(t, logger)
		assert.Nil(t, closer)
	}

	logger, _, err := New(config.LoggingConfig{Level: "nonsense"}, testApp)
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	_, _, err = New(config.LoggingConfig{Output: "file"}, testApp)
	assert.Error(t, err)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	Component(&base, "realtime").Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"realtime"`)

	nop := Component(nil, "x")
	assert.NotPanics(t, func() { nop.Info().Msg("dropped") })
}
