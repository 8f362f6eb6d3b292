package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, parseLevel("production", "WARN"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("production", ""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("development", ""))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("development", "error"))
}

func TestProductionLoggerWritesJSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	logger := newWithWriter("production", "info", &buf)
	logger.Info().Str("user_id", "u-1").Msg("login succeeded")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "production", line["env"])
	assert.Equal(t, "u-1", line["user_id"])
	assert.Equal(t, "login succeeded", line["message"])
}
